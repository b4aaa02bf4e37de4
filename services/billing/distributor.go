package billing

import (
	"context"
	"errors"
	"time"

	billingRepo "clinicore/database/repository/billing"
	"clinicore/models"
	"clinicore/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DistributionResult is what a payment distribution reports back to the
// billing endpoint.
type DistributionResult struct {
	PackageID       string                 `json:"package_id"`
	PaymentID       string                 `json:"payment_id"`
	TotalPaid       float64                `json:"total_paid"`
	Balance         float64                `json:"balance"`
	TotalValue      float64                `json:"total_value"`
	FinancialStatus models.FinancialStatus `json:"financial_status"`
	AmountApplied   float64                `json:"amount_applied"`
	// Overpayment is the portion of the amount that exceeded the total
	// outstanding coverage. It is reported as a credit condition, never
	// silently applied beyond 100% session coverage.
	Overpayment     float64 `json:"overpayment"`
	SessionsTouched int     `json:"sessions_touched"`
}

// Distribute applies an incoming payment across a package's outstanding
// sessions, earliest due date first, and recomputes the package aggregates
// from the persisted per-session sums. The whole unit runs inside one
// transaction under the retry coordinator; every attempt reloads the
// package and its sessions so a retry starts from the latest committed
// state.
func (s *DefaultBillingService) Distribute(ctx context.Context, packageID string, amount float64, method, actor string) (*DistributionResult, error) {
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if method == "" {
		return nil, &ValidationError{Field: "method", Message: "payment method is required"}
	}
	amount = utils.RoundMoney(amount)

	var (
		result       *DistributionResult
		syncPkg      *models.TherapyPackage
		syncSessions []models.TherapySession
		syncAppts    []models.Appointment
	)

	err := s.Txn.WithRetry(ctx, func(ctx context.Context) error {
		// Reset per attempt; partial state from an aborted attempt must
		// never leak into a retry.
		result = nil
		syncPkg, syncSessions, syncAppts = nil, nil, nil

		pkg, err := s.Repo.GetPackageByID(ctx, packageID)
		if err != nil {
			if errors.Is(err, billingRepo.ErrNotFound) {
				return &NotFoundError{Resource: "package", ID: packageID}
			}
			return err
		}

		sessions, err := s.Repo.ListPackageSessions(ctx, packageID)
		if err != nil {
			return err
		}

		payable := 0
		for i := range sessions {
			if sessions[i].Payable() {
				payable++
			}
		}
		if payable == 0 {
			// Degenerate distribution: the package is fully covered or has
			// no active sessions. Not an error; the full amount surfaces as
			// an overpayment credit.
			s.Logger.Warn("distribution with no payable sessions",
				zap.String("package_id", packageID),
				zap.Float64("amount", amount))
		}

		outcome := allocate(sessions, amount)

		now := time.Now().UTC()
		for _, i := range outcome.Touched {
			sessions[i].PendingSync = true
			sessions[i].UpdatedAt = now
		}

		// Aggregates come from the authoritative sum of what is persisted,
		// so the per-session writes go first.
		for _, i := range outcome.Touched {
			if err := s.Repo.UpdateSession(ctx, &sessions[i]); err != nil {
				return err
			}
		}
		if err := s.refreshAggregates(ctx, pkg, sessions); err != nil {
			return err
		}

		// The visual flag depends on the package balance, so it is resolved
		// for every live session once the new aggregates are known.
		touched := make(map[int]bool, len(outcome.Touched))
		for _, i := range outcome.Touched {
			touched[i] = true
		}
		for i := range sessions {
			sess := &sessions[i]
			if sess.Status == models.SessionCanceled {
				continue
			}
			flag := ResolveVisualFlag(sess.PaymentStatus, pkg, sess.PartialAmount)
			if flag == sess.VisualFlag && !touched[i] {
				continue
			}
			sess.VisualFlag = flag
			sess.PendingSync = true
			sess.UpdatedAt = now
			if err := s.Repo.UpdateSession(ctx, sess); err != nil {
				return err
			}
			if !touched[i] {
				touched[i] = true
				outcome.Touched = append(outcome.Touched, i)
			}
		}

		// Propagate financial truth to the linked appointments.
		for _, i := range outcome.Touched {
			sess := &sessions[i]
			if sess.AppointmentID == "" {
				continue
			}
			appt, err := s.Appointments.GetByID(ctx, sess.AppointmentID)
			if err != nil {
				return err
			}
			appt.PaymentStatus = ResolveAppointmentPaymentStatus(sess.PaymentStatus, true)
			appt.AppendHistory("payment_distributed", string(appt.PaymentStatus), actor)
			appt.PendingSync = true
			appt.UpdatedAt = now
			if err := s.Appointments.Update(ctx, appt); err != nil {
				return err
			}
			syncAppts = append(syncAppts, *appt)
		}

		payment := &models.Payment{
			ID:          uuid.NewString(),
			Amount:      amount,
			Method:      method,
			Status:      models.PaymentRecordPaid,
			ServiceType: models.ServicePackageSession,
			PackageID:   pkg.ID,
			PatientID:   pkg.PatientID,
			CreatedAt:   now,
		}
		if err := s.Repo.InsertPayment(ctx, payment); err != nil {
			return err
		}

		pkg.PaymentIDs = append(pkg.PaymentIDs, payment.ID)
		pkg.LastPaymentAt = &now
		pkg.PendingSync = true
		pkg.UpdatedAt = now
		if err := s.Repo.UpdatePackage(ctx, pkg); err != nil {
			return err
		}

		for _, i := range outcome.Touched {
			syncSessions = append(syncSessions, sessions[i])
		}
		syncPkg = pkg
		result = &DistributionResult{
			PackageID:       pkg.ID,
			PaymentID:       payment.ID,
			TotalPaid:       pkg.TotalPaid,
			Balance:         pkg.Balance,
			TotalValue:      pkg.TotalValue,
			FinancialStatus: pkg.FinancialStatus,
			AmountApplied:   outcome.Applied,
			Overpayment:     outcome.Leftover,
			SessionsTouched: len(outcome.Touched),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Overpayment > 0 {
		s.Logger.Warn("distribution produced overpayment credit",
			zap.String("package_id", packageID),
			zap.Float64("overpayment", result.Overpayment))
	}

	s.syncAfterCommit(ctx, syncPkg, syncSessions, syncAppts)
	return result, nil
}
