package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	billingRepo "clinicore/database/repository/billing"
	patientRepo "clinicore/database/repository/patient"
	"clinicore/models"
	"clinicore/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// CreatePackageInput is what selling a therapy plan needs.
type CreatePackageInput struct {
	PatientID     string  `json:"patient_id" binding:"required"`
	DoctorID      string  `json:"doctor_id" binding:"required"`
	Specialty     string  `json:"specialty"`
	TotalSessions int     `json:"total_sessions" binding:"required"`
	SessionValue  float64 `json:"session_value" binding:"required"`
	StartDate     string  `json:"start_date" binding:"required"` // "2006-01-02"
	Time          string  `json:"time" binding:"required"`       // "15:04"
	// IntervalDays is the spacing between generated sessions; weekly when 0.
	IntervalDays int `json:"interval_days"`
}

func (in *CreatePackageInput) validate() error {
	if in.TotalSessions < 1 {
		return &ValidationError{Field: "total_sessions", Message: "must be at least 1"}
	}
	if in.SessionValue < 0.01 {
		return &ValidationError{Field: "session_value", Message: "must be at least 0.01"}
	}
	if _, err := time.Parse(dateLayout, in.StartDate); err != nil {
		return &ValidationError{Field: "start_date", Message: "expected YYYY-MM-DD"}
	}
	if _, err := time.Parse("15:04", in.Time); err != nil {
		return &ValidationError{Field: "time", Message: "expected HH:MM"}
	}
	if in.IntervalDays < 0 {
		return &ValidationError{Field: "interval_days", Message: "must not be negative"}
	}
	return nil
}

// CreatePackage sells a therapy plan: the package plus one session and one
// appointment per occurrence, all in one transaction. Package creation can
// write dozens of documents in a burst, which is exactly the conflict shape
// the retry coordinator exists for.
func (s *DefaultBillingService) CreatePackage(ctx context.Context, input CreatePackageInput) (*models.TherapyPackage, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if _, err := s.Patients.GetByID(ctx, input.PatientID); err != nil {
		if errors.Is(err, patientRepo.ErrNotFound) {
			return nil, &NotFoundError{Resource: "patient", ID: input.PatientID}
		}
		return nil, err
	}

	interval := input.IntervalDays
	if interval == 0 {
		interval = 7
	}
	start, _ := time.Parse(dateLayout, input.StartDate)

	var (
		pkg          *models.TherapyPackage
		syncSessions []models.TherapySession
		syncAppts    []models.Appointment
	)

	err := s.Txn.WithRetry(ctx, func(ctx context.Context) error {
		syncSessions, syncAppts = nil, nil
		now := time.Now().UTC()

		pkg = &models.TherapyPackage{
			ID:              uuid.NewString(),
			PatientID:       input.PatientID,
			DoctorID:        input.DoctorID,
			Specialty:       input.Specialty,
			TotalSessions:   input.TotalSessions,
			SessionValue:    utils.RoundMoney(input.SessionValue),
			TotalValue:      utils.MulMoney(input.SessionValue, input.TotalSessions),
			FinancialStatus: models.FinancialUnpaid,
			Status:          models.PackageActive,
			PendingSync:     true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		pkg.Balance = pkg.TotalValue

		for n := 0; n < input.TotalSessions; n++ {
			date := start.AddDate(0, 0, n*interval).Format(dateLayout)

			taken, err := s.Appointments.SlotTaken(ctx, input.PatientID, input.DoctorID, date, input.Time, "")
			if err != nil {
				return err
			}
			if taken {
				return &ValidationError{
					Field:   "start_date",
					Message: fmt.Sprintf("slot %s %s is already booked for this patient and doctor", date, input.Time),
				}
			}

			sess := models.TherapySession{
				ID:            uuid.NewString(),
				PackageID:     pkg.ID,
				PatientID:     input.PatientID,
				DoctorID:      input.DoctorID,
				Specialty:     input.Specialty,
				Date:          date,
				Time:          input.Time,
				SessionValue:  pkg.SessionValue,
				PaymentStatus: models.PaymentPending,
				VisualFlag:    models.VisualPending,
				Status:        models.SessionScheduled,
				PendingSync:   true,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			appt := models.Appointment{
				ID:                uuid.NewString(),
				PatientID:         input.PatientID,
				DoctorID:          input.DoctorID,
				Specialty:         input.Specialty,
				Date:              date,
				Time:              input.Time,
				SessionID:         sess.ID,
				PackageID:         pkg.ID,
				Value:             pkg.SessionValue,
				OperationalStatus: models.OperationalScheduled,
				ClinicalStatus:    models.ClinicalPending,
				PaymentStatus:     models.ApptPaymentPending,
				PendingSync:       true,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			appt.AppendHistory("created", string(models.OperationalScheduled), "system")
			sess.AppointmentID = appt.ID

			if err := s.Repo.InsertSession(ctx, &sess); err != nil {
				return err
			}
			if err := s.Appointments.Insert(ctx, &appt); err != nil {
				return err
			}
			pkg.SessionIDs = append(pkg.SessionIDs, sess.ID)
			syncSessions = append(syncSessions, sess)
			syncAppts = append(syncAppts, appt)
		}

		return s.Repo.InsertPackage(ctx, pkg)
	})
	if err != nil {
		return nil, err
	}

	s.syncAfterCommit(ctx, pkg, syncSessions, syncAppts)
	return pkg, nil
}

// CancelPackage cancels a package and its not-yet-completed sessions.
// Finished packages are immutable.
func (s *DefaultBillingService) CancelPackage(ctx context.Context, id, actor string) error {
	var (
		syncPkg      *models.TherapyPackage
		syncSessions []models.TherapySession
		syncAppts    []models.Appointment
	)

	err := s.Txn.WithRetry(ctx, func(ctx context.Context) error {
		syncPkg, syncSessions, syncAppts = nil, nil, nil

		pkg, err := s.Repo.GetPackageByID(ctx, id)
		if err != nil {
			if errors.Is(err, billingRepo.ErrNotFound) {
				return &NotFoundError{Resource: "package", ID: id}
			}
			return err
		}
		if pkg.Status == models.PackageFinished {
			return &ValidationError{Field: "status", Message: "finished packages cannot be canceled"}
		}
		if pkg.Status == models.PackageCanceled {
			return nil
		}

		now := time.Now().UTC()
		sessions, err := s.Repo.ListPackageSessions(ctx, id)
		if err != nil {
			return err
		}
		noAbsence := false
		for i := range sessions {
			sess := &sessions[i]
			if sess.Status == models.SessionCompleted || sess.Status == models.SessionCanceled {
				continue
			}
			sess.Original = &models.SessionSnapshot{
				Status:        sess.Status,
				PaymentStatus: sess.PaymentStatus,
				IsPaid:        sess.IsPaid,
				VisualFlag:    sess.VisualFlag,
				PartialAmount: sess.PartialAmount,
			}
			sess.Status = models.SessionCanceled
			sess.ConfirmedAbsence = &noAbsence
			sess.PendingSync = true
			sess.UpdatedAt = now
			if err := s.Repo.UpdateSession(ctx, sess); err != nil {
				return err
			}
			syncSessions = append(syncSessions, *sess)

			if sess.AppointmentID != "" {
				appt, err := s.Appointments.GetByID(ctx, sess.AppointmentID)
				if err != nil {
					return err
				}
				appt.OperationalStatus = models.OperationalCanceled
				appt.AppendHistory("package_canceled", string(models.OperationalCanceled), actor)
				appt.PendingSync = true
				appt.UpdatedAt = now
				if err := s.Appointments.Update(ctx, appt); err != nil {
					return err
				}
				syncAppts = append(syncAppts, *appt)
			}
		}

		pkg.Status = models.PackageCanceled
		if err := s.refreshAggregates(ctx, pkg, sessions); err != nil {
			return err
		}
		pkg.PendingSync = true
		pkg.UpdatedAt = now
		if err := s.Repo.UpdatePackage(ctx, pkg); err != nil {
			return err
		}

		syncPkg = pkg
		return nil
	})
	if err != nil {
		return err
	}

	s.syncAfterCommit(ctx, syncPkg, syncSessions, syncAppts)
	return nil
}

// DeletePackage removes a package and cascades to its sessions, appointments
// and projection records. The source deletes run in one transaction; the
// projection deletes follow synchronously so no ghost calendar entries
// remain.
func (s *DefaultBillingService) DeletePackage(ctx context.Context, id string) error {
	var (
		sessions []models.TherapySession
		appts    []string
	)

	err := s.Txn.WithRetry(ctx, func(ctx context.Context) error {
		appts = nil

		pkg, err := s.Repo.GetPackageByID(ctx, id)
		if err != nil {
			if errors.Is(err, billingRepo.ErrNotFound) {
				return &NotFoundError{Resource: "package", ID: id}
			}
			return err
		}

		sessions, err = s.Repo.ListPackageSessions(ctx, id)
		if err != nil {
			return err
		}
		for i := range sessions {
			if sessions[i].AppointmentID != "" {
				appts = append(appts, sessions[i].AppointmentID)
			}
		}

		if err := s.Appointments.DeleteByPackage(ctx, id); err != nil {
			return err
		}
		if err := s.Repo.DeleteSessionsByPackage(ctx, id); err != nil {
			return err
		}
		return s.Repo.DeletePackage(ctx, pkg.ID)
	})
	if err != nil {
		return err
	}

	if s.Events == nil {
		return nil
	}
	for i := range sessions {
		if err := s.Events.DeleteEvent(ctx, sessions[i].ID, models.EventSession); err != nil {
			s.Logger.Error("session projection delete failed", zap.String("session_id", sessions[i].ID), zap.Error(err))
		}
	}
	for _, apptID := range appts {
		if err := s.Events.DeleteEvent(ctx, apptID, models.EventAppointment); err != nil {
			s.Logger.Error("appointment projection delete failed", zap.String("appointment_id", apptID), zap.Error(err))
		}
	}
	if err := s.Events.DeleteEvent(ctx, id, models.EventPackage); err != nil {
		s.Logger.Error("package projection delete failed", zap.String("package_id", id), zap.Error(err))
	}
	return nil
}
