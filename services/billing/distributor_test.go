package billing

import (
	"context"
	"testing"

	"clinicore/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPatient(t *testing.T, patients *fakePatientRepo) string {
	t.Helper()
	p := models.Patient{ID: "pat-1", Name: "Ana Souza", DefaultSpecialty: "physiotherapy"}
	require.NoError(t, patients.Insert(context.Background(), &p))
	return p.ID
}

func seedPackage(t *testing.T, svc *DefaultBillingService, patients *fakePatientRepo, totalSessions int, sessionValue float64) *models.TherapyPackage {
	t.Helper()
	patientID := seedPatient(t, patients)
	pkg, err := svc.CreatePackage(context.Background(), CreatePackageInput{
		PatientID:     patientID,
		DoctorID:      "doc-1",
		Specialty:     "physiotherapy",
		TotalSessions: totalSessions,
		SessionValue:  sessionValue,
		StartDate:     "2026-03-02",
		Time:          "14:00",
	})
	require.NoError(t, err)
	return pkg
}

func TestDistribute_ValidationErrors(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	_, err := svc.Distribute(context.Background(), "whatever", 0, "pix", "rec-1")
	assert.True(t, IsValidation(err))

	_, err = svc.Distribute(context.Background(), "whatever", -10, "pix", "rec-1")
	assert.True(t, IsValidation(err))

	_, err = svc.Distribute(context.Background(), "whatever", 100, "", "rec-1")
	assert.True(t, IsValidation(err))
}

func TestDistribute_PackageNotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService()

	_, err := svc.Distribute(context.Background(), "missing", 100, "pix", "rec-1")
	assert.True(t, IsNotFound(err))
}

func TestDistribute_PartialCoverage(t *testing.T) {
	svc, repo, _, patients, _ := newTestService()
	pkg := seedPackage(t, svc, patients, 4, 100)

	result, err := svc.Distribute(context.Background(), pkg.ID, 250, "pix", "rec-1")
	require.NoError(t, err)

	assert.Equal(t, 250.0, result.TotalPaid)
	assert.Equal(t, 150.0, result.Balance)
	assert.Equal(t, 400.0, result.TotalValue)
	assert.Equal(t, models.FinancialPartiallyPaid, result.FinancialStatus)
	assert.Equal(t, 250.0, result.AmountApplied)
	assert.Equal(t, 0.0, result.Overpayment)

	sessions, err := repo.ListPackageSessions(context.Background(), pkg.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 4)

	// FIFO by date: two fully paid, one partial, one untouched.
	assert.Equal(t, models.PaymentPaid, sessions[0].PaymentStatus)
	assert.Equal(t, models.PaymentPaid, sessions[1].PaymentStatus)
	assert.Equal(t, models.PaymentPartial, sessions[2].PaymentStatus)
	assert.Equal(t, 50.0, sessions[2].PartialAmount)
	assert.Equal(t, models.PaymentPending, sessions[3].PaymentStatus)

	// Visual flags follow the outstanding package balance.
	assert.Equal(t, models.VisualOK, sessions[0].VisualFlag)
	assert.Equal(t, models.VisualPartial, sessions[2].VisualFlag)
	assert.Equal(t, models.VisualBlocked, sessions[3].VisualFlag)
}

func TestDistribute_AppointmentPropagation(t *testing.T) {
	svc, repo, appts, patients, _ := newTestService()
	pkg := seedPackage(t, svc, patients, 3, 100)

	_, err := svc.Distribute(context.Background(), pkg.ID, 150, "card", "rec-1")
	require.NoError(t, err)

	sessions, err := repo.ListPackageSessions(context.Background(), pkg.ID)
	require.NoError(t, err)

	paidAppt, err := appts.GetByID(context.Background(), sessions[0].AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, models.ApptPaymentPackagePaid, paidAppt.PaymentStatus)
	assert.NotEmpty(t, paidAppt.History)

	partialAppt, err := appts.GetByID(context.Background(), sessions[1].AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, models.ApptPaymentPartial, partialAppt.PaymentStatus)
}

func TestDistribute_OverpaymentNeverDrivesBalanceNegative(t *testing.T) {
	svc, repo, _, patients, _ := newTestService()
	pkg := seedPackage(t, svc, patients, 2, 100)

	result, err := svc.Distribute(context.Background(), pkg.ID, 350, "pix", "rec-1")
	require.NoError(t, err)

	assert.Equal(t, 200.0, result.AmountApplied)
	assert.Equal(t, 150.0, result.Overpayment)
	assert.Equal(t, 0.0, result.Balance)
	assert.Equal(t, models.FinancialPaid, result.FinancialStatus)

	stored, err := repo.GetPackageByID(context.Background(), pkg.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stored.Balance, 0.0)
	assert.Equal(t, 200.0, stored.TotalPaid)
}

func TestDistribute_FullyPaidPackageIsZeroEffect(t *testing.T) {
	svc, repo, _, patients, _ := newTestService()
	pkg := seedPackage(t, svc, patients, 2, 100)

	_, err := svc.Distribute(context.Background(), pkg.ID, 200, "pix", "rec-1")
	require.NoError(t, err)

	result, err := svc.Distribute(context.Background(), pkg.ID, 80, "pix", "rec-1")
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.AmountApplied)
	assert.Equal(t, 80.0, result.Overpayment)
	assert.Equal(t, 0, result.SessionsTouched)

	stored, err := repo.GetPackageByID(context.Background(), pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, stored.TotalPaid)
}

func TestDistribute_SequentialPaymentsAccumulate(t *testing.T) {
	svc, repo, _, patients, _ := newTestService()
	pkg := seedPackage(t, svc, patients, 3, 100)

	_, err := svc.Distribute(context.Background(), pkg.ID, 120, "pix", "rec-1")
	require.NoError(t, err)
	result, err := svc.Distribute(context.Background(), pkg.ID, 180, "pix", "rec-1")
	require.NoError(t, err)

	assert.Equal(t, 300.0, result.TotalPaid)
	assert.Equal(t, models.FinancialPaid, result.FinancialStatus)

	sessions, err := repo.ListPackageSessions(context.Background(), pkg.ID)
	require.NoError(t, err)
	for i := range sessions {
		assert.Equal(t, models.PaymentPaid, sessions[i].PaymentStatus)
		assert.Equal(t, models.VisualOK, sessions[i].VisualFlag)
	}

	payments, err := repo.ListPackagePayments(context.Background(), pkg.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	for _, p := range payments {
		assert.Equal(t, models.ServicePackageSession, p.ServiceType)
		assert.Equal(t, models.PaymentRecordPaid, p.Status)
	}
}

func TestRefreshAggregates_IdempotentRecomputation(t *testing.T) {
	svc, repo, _, patients, _ := newTestService()
	pkg := seedPackage(t, svc, patients, 4, 100)

	_, err := svc.Distribute(context.Background(), pkg.ID, 250, "pix", "rec-1")
	require.NoError(t, err)

	stored, err := repo.GetPackageByID(context.Background(), pkg.ID)
	require.NoError(t, err)
	sessions, err := repo.ListPackageSessions(context.Background(), pkg.ID)
	require.NoError(t, err)

	// Recomputing from session sums twice with no intervening writes must
	// be a fixed point. This is what makes retried transactions safe.
	require.NoError(t, svc.refreshAggregates(context.Background(), stored, sessions))
	first := stored.TotalPaid
	require.NoError(t, svc.refreshAggregates(context.Background(), stored, sessions))
	assert.Equal(t, first, stored.TotalPaid)
	assert.Equal(t, 250.0, stored.TotalPaid)
}

func TestDistribute_ProjectionSyncInvoked(t *testing.T) {
	svc, _, _, patients, sync := newTestService()
	pkg := seedPackage(t, svc, patients, 4, 100)

	before := len(sync.sessions)
	_, err := svc.Distribute(context.Background(), pkg.ID, 250, "pix", "rec-1")
	require.NoError(t, err)

	assert.Contains(t, sync.packages, pkg.ID)
	// Two paid, one partial, one flag-only change: all projected.
	assert.GreaterOrEqual(t, len(sync.sessions)-before, 3)
}
