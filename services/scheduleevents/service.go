package scheduleevents

import (
	"context"
	"errors"
	"fmt"

	appointmentRepo "clinicore/database/repository/appointment"
	billingRepo "clinicore/database/repository/billing"
	patientRepo "clinicore/database/repository/patient"
	scheduleRepo "clinicore/database/repository/schedule"
	"clinicore/database/txn"
	"clinicore/models"

	"go.uber.org/zap"
)

// DefaultSyncService implements Service. Upserts are wrapped by the same
// retry coordinator as the source mutations: a package creation writes
// dozens of sessions and appointments in a burst, and their projections
// conflict just as readily.
type DefaultSyncService struct {
	Schedule     scheduleRepo.Repository
	Billing      billingRepo.Repository
	Appointments appointmentRepo.Repository
	Patients     patientRepo.Repository
	Txn          *txn.Coordinator
	Outbox       OutboxEnqueuer
	Logger       *zap.Logger
}

func (s *DefaultSyncService) SyncAppointment(ctx context.Context, a *models.Appointment) error {
	patient := s.lookupPatient(ctx, a.PatientID)
	pkg := s.lookupPackage(ctx, a.PackageID)

	ev := deriveAppointmentEvent(a, pkg, patient)
	if err := s.upsert(ctx, ev, a.ID, models.EventAppointment); err != nil {
		return err
	}
	if err := s.Appointments.ClearPendingSync(ctx, a.ID); err != nil {
		s.Logger.Warn("could not clear appointment pending-sync marker", zap.String("appointment_id", a.ID), zap.Error(err))
	}

	// An appointment created from a package session carries less financial
	// detail than the session itself; re-project the session so the most
	// granular truth always wins.
	if a.SessionID != "" && a.PackageID != "" {
		sess, err := s.Billing.GetSessionByID(ctx, a.SessionID)
		if err != nil {
			if errors.Is(err, billingRepo.ErrNotFound) {
				return nil
			}
			return err
		}
		return s.SyncSession(ctx, sess)
	}
	return nil
}

func (s *DefaultSyncService) SyncSession(ctx context.Context, sess *models.TherapySession) error {
	patient := s.lookupPatient(ctx, sess.PatientID)
	pkg := s.lookupPackage(ctx, sess.PackageID)

	var appt *models.Appointment
	if sess.AppointmentID != "" {
		var err error
		appt, err = s.Appointments.GetByID(ctx, sess.AppointmentID)
		if err != nil && !errors.Is(err, appointmentRepo.ErrNotFound) {
			return err
		}
	}

	ev := deriveSessionEvent(sess, appt, pkg, patient)
	if err := s.upsert(ctx, ev, sess.ID, models.EventSession); err != nil {
		return err
	}
	if err := s.Billing.ClearSessionPendingSync(ctx, sess.ID); err != nil {
		s.Logger.Warn("could not clear session pending-sync marker", zap.String("session_id", sess.ID), zap.Error(err))
	}
	return nil
}

func (s *DefaultSyncService) SyncPackage(ctx context.Context, pkg *models.TherapyPackage) error {
	patient := s.lookupPatient(ctx, pkg.PatientID)
	sessions, err := s.Billing.ListPackageSessions(ctx, pkg.ID)
	if err != nil {
		return err
	}

	ev := derivePackageEvent(pkg, sessions, patient)
	if err := s.upsert(ctx, ev, pkg.ID, models.EventPackage); err != nil {
		return err
	}
	if err := s.Billing.ClearPackagePendingSync(ctx, pkg.ID); err != nil {
		s.Logger.Warn("could not clear package pending-sync marker", zap.String("package_id", pkg.ID), zap.Error(err))
	}
	return nil
}

// Sync reloads the source entity and projects it. Sources deleted since the
// sync was queued resolve by deleting the stale projection row.
func (s *DefaultSyncService) Sync(ctx context.Context, originalID string, typ models.EventType) error {
	switch typ {
	case models.EventAppointment:
		a, err := s.Appointments.GetByID(ctx, originalID)
		if err != nil {
			if errors.Is(err, appointmentRepo.ErrNotFound) {
				return s.DeleteEvent(ctx, originalID, typ)
			}
			return err
		}
		return s.SyncAppointment(ctx, a)
	case models.EventSession:
		sess, err := s.Billing.GetSessionByID(ctx, originalID)
		if err != nil {
			if errors.Is(err, billingRepo.ErrNotFound) {
				return s.DeleteEvent(ctx, originalID, typ)
			}
			return err
		}
		return s.SyncSession(ctx, sess)
	case models.EventPackage:
		pkg, err := s.Billing.GetPackageByID(ctx, originalID)
		if err != nil {
			if errors.Is(err, billingRepo.ErrNotFound) {
				return s.DeleteEvent(ctx, originalID, typ)
			}
			return err
		}
		return s.SyncPackage(ctx, pkg)
	default:
		return fmt.Errorf("unknown event type %q", typ)
	}
}

func (s *DefaultSyncService) DeleteEvent(ctx context.Context, originalID string, typ models.EventType) error {
	return s.Txn.WithRetry(ctx, func(ctx context.Context) error {
		return s.Schedule.Delete(ctx, originalID, typ)
	})
}

// upsert performs the transactional projection write and, when retries are
// exhausted, hands the sync to the reconciliation outbox before surfacing
// the failure.
func (s *DefaultSyncService) upsert(ctx context.Context, ev *models.ScheduleEvent, originalID string, typ models.EventType) error {
	err := s.Txn.WithRetry(ctx, func(ctx context.Context) error {
		return s.Schedule.Upsert(ctx, ev)
	})
	if err == nil {
		return nil
	}
	if txn.IsConflictExhausted(err) && s.Outbox != nil {
		if qErr := s.Outbox.EnqueueSync(originalID, typ); qErr != nil {
			s.Logger.Error("failed to enqueue projection reconciliation",
				zap.String("original_id", originalID),
				zap.String("type", string(typ)),
				zap.Error(qErr))
		} else {
			s.Logger.Warn("projection sync deferred to reconciliation queue",
				zap.String("original_id", originalID),
				zap.String("type", string(typ)))
		}
	}
	return err
}

func (s *DefaultSyncService) lookupPatient(ctx context.Context, id string) *models.Patient {
	if id == "" {
		return nil
	}
	patient, err := s.Patients.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, patientRepo.ErrNotFound) {
			s.Logger.Warn("patient lookup failed during sync", zap.String("patient_id", id), zap.Error(err))
		}
		return nil
	}
	return patient
}

func (s *DefaultSyncService) lookupPackage(ctx context.Context, id string) *models.TherapyPackage {
	if id == "" {
		return nil
	}
	pkg, err := s.Billing.GetPackageByID(ctx, id)
	if err != nil {
		if !errors.Is(err, billingRepo.ErrNotFound) {
			s.Logger.Warn("package lookup failed during sync", zap.String("package_id", id), zap.Error(err))
		}
		return nil
	}
	return pkg
}
