package billing

import (
	"context"

	appointmentRepo "clinicore/database/repository/appointment"
	billingRepo "clinicore/database/repository/billing"
	patientRepo "clinicore/database/repository/patient"
	"clinicore/database/txn"
	"clinicore/models"

	"go.uber.org/zap"
)

// EventSync is the slice of the projection synchronizer the billing service
// needs. Syncs run after the source transaction commits; their failures are
// logged and queued for reconciliation, never rolled back into the source.
type EventSync interface {
	SyncPackage(ctx context.Context, pkg *models.TherapyPackage) error
	SyncSession(ctx context.Context, s *models.TherapySession) error
	SyncAppointment(ctx context.Context, a *models.Appointment) error
	DeleteEvent(ctx context.Context, originalID string, typ models.EventType) error
}

// Service is the billing core: payment distribution, the package/session
// lifecycle and their cascades.
type Service interface {
	Distribute(ctx context.Context, packageID string, amount float64, method, actor string) (*DistributionResult, error)
	GetPackage(ctx context.Context, id string) (*PackageDetail, error)
	CreatePackage(ctx context.Context, input CreatePackageInput) (*models.TherapyPackage, error)
	CancelPackage(ctx context.Context, id, actor string) error
	DeletePackage(ctx context.Context, id string) error

	CompleteSession(ctx context.Context, sessionID, actor string) error
	CancelSession(ctx context.Context, sessionID string, confirmedAbsence bool, actor string) error
	RestoreSession(ctx context.Context, sessionID, actor string) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, actor string) error
}

// PackageDetail is a package with its sessions and payments populated.
type PackageDetail struct {
	Package  models.TherapyPackage   `json:"package"`
	Sessions []models.TherapySession `json:"sessions"`
	Payments []models.Payment        `json:"payments"`
}

// DefaultBillingService implements Service.
type DefaultBillingService struct {
	Repo         billingRepo.Repository
	Appointments appointmentRepo.Repository
	Patients     patientRepo.Repository
	Txn          *txn.Coordinator
	Events       EventSync
	Logger       *zap.Logger
}

func (s *DefaultBillingService) GetPackage(ctx context.Context, id string) (*PackageDetail, error) {
	pkg, err := s.Repo.GetPackageByID(ctx, id)
	if err != nil {
		if err == billingRepo.ErrNotFound {
			return nil, &NotFoundError{Resource: "package", ID: id}
		}
		return nil, err
	}
	sessions, err := s.Repo.ListPackageSessions(ctx, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.Repo.ListPackagePayments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PackageDetail{Package: *pkg, Sessions: sessions, Payments: payments}, nil
}

// refreshAggregates recomputes a package's financial and progress facts from
// its sessions, inside the caller's transaction. Aggregates are always
// derived from the authoritative per-session sums, never incremented, so a
// retried transaction can never double-count.
func (s *DefaultBillingService) refreshAggregates(ctx context.Context, pkg *models.TherapyPackage, sessions []models.TherapySession) error {
	total, err := s.Repo.SumPartialAmounts(ctx, pkg.ID)
	if err != nil {
		return err
	}

	done := 0
	for i := range sessions {
		if sessions[i].Status == models.SessionCompleted {
			done++
		}
	}

	pkg.TotalPaid = total
	balance := pkg.TotalValue - total
	if balance < 0 {
		// An excess here means money was applied beyond 100% coverage
		// somewhere upstream; the distributor prevents it, so log loudly.
		s.Logger.Error("package balance would go negative, flooring to zero",
			zap.String("package_id", pkg.ID),
			zap.Float64("total_paid", total),
			zap.Float64("total_value", pkg.TotalValue))
		balance = 0
	}
	pkg.Balance = balance
	pkg.FinancialStatus = models.ResolveFinancialStatus(total, pkg.TotalValue)
	pkg.SessionsDone = done
	applyProgress(pkg)
	return nil
}

// applyProgress moves a package along active → in_progress → finished, and
// rolls an auto-finished package back when sessions are un-completed.
// Canceled is terminal here; cancellation is an explicit operation.
func applyProgress(pkg *models.TherapyPackage) {
	if pkg.Status == models.PackageCanceled {
		return
	}
	switch {
	case pkg.SessionsDone >= pkg.TotalSessions:
		pkg.Status = models.PackageFinished
	case pkg.SessionsDone > 0:
		pkg.Status = models.PackageInProgress
	default:
		pkg.Status = models.PackageActive
	}
}

// syncAfterCommit projects the given entities, logging failures without
// affecting the already-committed source mutation. The synchronizer itself
// falls back to the reconciliation queue when its retries are exhausted.
func (s *DefaultBillingService) syncAfterCommit(ctx context.Context, pkg *models.TherapyPackage, sessions []models.TherapySession, appts []models.Appointment) {
	if s.Events == nil {
		return
	}
	if pkg != nil {
		if err := s.Events.SyncPackage(ctx, pkg); err != nil {
			s.Logger.Error("package projection sync failed", zap.String("package_id", pkg.ID), zap.Error(err))
		}
	}
	for i := range sessions {
		if err := s.Events.SyncSession(ctx, &sessions[i]); err != nil {
			s.Logger.Error("session projection sync failed", zap.String("session_id", sessions[i].ID), zap.Error(err))
		}
	}
	for i := range appts {
		if err := s.Events.SyncAppointment(ctx, &appts[i]); err != nil {
			s.Logger.Error("appointment projection sync failed", zap.String("appointment_id", appts[i].ID), zap.Error(err))
		}
	}
}
