package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingRepo "clinicore/database/repository/billing"
	"clinicore/models"
)

// loadSession maps repository not-found onto the service error taxonomy.
func (s *DefaultBillingService) loadSession(ctx context.Context, id string) (*models.TherapySession, error) {
	sess, err := s.Repo.GetSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, billingRepo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "session", ID: id}
		}
		return nil, err
	}
	return sess, nil
}

// CompleteSession marks a session completed and adjusts the owning package's
// progress, auto-finishing it when the last session is done.
func (s *DefaultBillingService) CompleteSession(ctx context.Context, sessionID, actor string) error {
	return s.transitionSession(ctx, sessionID, models.SessionCompleted, actor)
}

// UpdateSessionStatus applies a lifecycle edit. A completed session moved
// back to a non-completed status decrements the package's done count and
// rolls an auto-finished package back to its in-flight state.
func (s *DefaultBillingService) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, actor string) error {
	if status == models.SessionCanceled {
		return &ValidationError{Field: "status", Message: "cancellation must go through the cancel operation"}
	}
	return s.transitionSession(ctx, sessionID, status, actor)
}

func (s *DefaultBillingService) transitionSession(ctx context.Context, sessionID string, status models.SessionStatus, actor string) error {
	var (
		syncPkg      *models.TherapyPackage
		syncSessions []models.TherapySession
		syncAppts    []models.Appointment
	)

	err := s.Txn.WithRetry(ctx, func(ctx context.Context) error {
		syncPkg, syncSessions, syncAppts = nil, nil, nil

		sess, err := s.loadSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status == models.SessionCanceled {
			return &ValidationError{Field: "status", Message: "canceled sessions can only be restored"}
		}
		if sess.Status == status {
			return nil
		}

		now := time.Now().UTC()
		sess.Status = status
		sess.PendingSync = true
		sess.UpdatedAt = now
		if err := s.Repo.UpdateSession(ctx, sess); err != nil {
			return err
		}

		var pkg *models.TherapyPackage
		if sess.PackageID != "" {
			pkg, err = s.Repo.GetPackageByID(ctx, sess.PackageID)
			if err != nil {
				return err
			}
			sessions, err := s.Repo.ListPackageSessions(ctx, sess.PackageID)
			if err != nil {
				return err
			}
			if err := s.refreshAggregates(ctx, pkg, sessions); err != nil {
				return err
			}
			pkg.PendingSync = true
			pkg.UpdatedAt = now
			if err := s.Repo.UpdatePackage(ctx, pkg); err != nil {
				return err
			}
		}

		if sess.AppointmentID != "" {
			appt, err := s.Appointments.GetByID(ctx, sess.AppointmentID)
			if err != nil {
				return err
			}
			appt.OperationalStatus = ResolveOperationalStatus(sess.Status, sess.ConfirmedAbsence)
			appt.ClinicalStatus = ResolveClinicalStatus(sess.Status, sess.ConfirmedAbsence)
			appt.AppendHistory("session_"+string(status), string(appt.OperationalStatus), actor)
			appt.PendingSync = true
			appt.UpdatedAt = now
			if err := s.Appointments.Update(ctx, appt); err != nil {
				return err
			}
			syncAppts = append(syncAppts, *appt)
		}

		syncPkg = pkg
		syncSessions = append(syncSessions, *sess)
		return nil
	})
	if err != nil {
		return err
	}

	s.syncAfterCommit(ctx, syncPkg, syncSessions, syncAppts)
	return nil
}

// CancelSession snapshots the session's financial state, applies the
// cancellation and adjusts the package aggregates. Payment status is left
// untouched so an undo can restore it exactly.
func (s *DefaultBillingService) CancelSession(ctx context.Context, sessionID string, confirmedAbsence bool, actor string) error {
	var (
		syncPkg      *models.TherapyPackage
		syncSessions []models.TherapySession
		syncAppts    []models.Appointment
	)

	err := s.Txn.WithRetry(ctx, func(ctx context.Context) error {
		syncPkg, syncSessions, syncAppts = nil, nil, nil

		sess, err := s.loadSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status == models.SessionCanceled {
			return &ValidationError{Field: "status", Message: "session is already canceled"}
		}

		now := time.Now().UTC()
		sess.Original = &models.SessionSnapshot{
			Status:        sess.Status,
			PaymentStatus: sess.PaymentStatus,
			IsPaid:        sess.IsPaid,
			VisualFlag:    sess.VisualFlag,
			PartialAmount: sess.PartialAmount,
		}
		sess.Status = models.SessionCanceled
		sess.ConfirmedAbsence = &confirmedAbsence
		sess.PendingSync = true
		sess.UpdatedAt = now
		if err := s.Repo.UpdateSession(ctx, sess); err != nil {
			return err
		}

		var pkg *models.TherapyPackage
		if sess.PackageID != "" {
			pkg, err = s.Repo.GetPackageByID(ctx, sess.PackageID)
			if err != nil {
				return err
			}
			sessions, err := s.Repo.ListPackageSessions(ctx, sess.PackageID)
			if err != nil {
				return err
			}
			if err := s.refreshAggregates(ctx, pkg, sessions); err != nil {
				return err
			}
			pkg.PendingSync = true
			pkg.UpdatedAt = now
			if err := s.Repo.UpdatePackage(ctx, pkg); err != nil {
				return err
			}
		}

		if sess.AppointmentID != "" {
			appt, err := s.Appointments.GetByID(ctx, sess.AppointmentID)
			if err != nil {
				return err
			}
			appt.OperationalStatus = ResolveOperationalStatus(sess.Status, sess.ConfirmedAbsence)
			appt.ClinicalStatus = ResolveClinicalStatus(sess.Status, sess.ConfirmedAbsence)
			appt.AppendHistory("session_canceled", string(appt.OperationalStatus), actor)
			appt.PendingSync = true
			appt.UpdatedAt = now
			if err := s.Appointments.Update(ctx, appt); err != nil {
				return err
			}
			syncAppts = append(syncAppts, *appt)
		}

		syncPkg = pkg
		syncSessions = append(syncSessions, *sess)
		return nil
	})
	if err != nil {
		return err
	}

	s.syncAfterCommit(ctx, syncPkg, syncSessions, syncAppts)
	return nil
}

// RestoreSession undoes a cancellation, reproducing the pre-cancellation
// financial state exactly from the captured snapshot.
func (s *DefaultBillingService) RestoreSession(ctx context.Context, sessionID, actor string) error {
	var (
		syncPkg      *models.TherapyPackage
		syncSessions []models.TherapySession
		syncAppts    []models.Appointment
	)

	err := s.Txn.WithRetry(ctx, func(ctx context.Context) error {
		syncPkg, syncSessions, syncAppts = nil, nil, nil

		sess, err := s.loadSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status != models.SessionCanceled {
			return &ValidationError{Field: "status", Message: "only canceled sessions can be restored"}
		}
		if sess.Original == nil {
			return &ValidationError{Field: "original", Message: fmt.Sprintf("session %s has no cancellation snapshot", sessionID)}
		}

		now := time.Now().UTC()
		snap := sess.Original
		sess.Status = snap.Status
		sess.PaymentStatus = snap.PaymentStatus
		sess.IsPaid = snap.IsPaid
		sess.VisualFlag = snap.VisualFlag
		sess.PartialAmount = snap.PartialAmount
		sess.ConfirmedAbsence = nil
		sess.Original = nil
		sess.PendingSync = true
		sess.UpdatedAt = now
		if err := s.Repo.UpdateSession(ctx, sess); err != nil {
			return err
		}

		var pkg *models.TherapyPackage
		if sess.PackageID != "" {
			pkg, err = s.Repo.GetPackageByID(ctx, sess.PackageID)
			if err != nil {
				return err
			}
			sessions, err := s.Repo.ListPackageSessions(ctx, sess.PackageID)
			if err != nil {
				return err
			}
			if err := s.refreshAggregates(ctx, pkg, sessions); err != nil {
				return err
			}
			pkg.PendingSync = true
			pkg.UpdatedAt = now
			if err := s.Repo.UpdatePackage(ctx, pkg); err != nil {
				return err
			}
		}

		if sess.AppointmentID != "" {
			appt, err := s.Appointments.GetByID(ctx, sess.AppointmentID)
			if err != nil {
				return err
			}
			appt.OperationalStatus = ResolveOperationalStatus(sess.Status, sess.ConfirmedAbsence)
			appt.ClinicalStatus = ResolveClinicalStatus(sess.Status, sess.ConfirmedAbsence)
			appt.AppendHistory("session_restored", string(appt.OperationalStatus), actor)
			appt.PendingSync = true
			appt.UpdatedAt = now
			if err := s.Appointments.Update(ctx, appt); err != nil {
				return err
			}
			syncAppts = append(syncAppts, *appt)
		}

		syncPkg = pkg
		syncSessions = append(syncSessions, *sess)
		return nil
	})
	if err != nil {
		return err
	}

	s.syncAfterCommit(ctx, syncPkg, syncSessions, syncAppts)
	return nil
}
