package scheduleevents

import (
	"time"

	"clinicore/models"
)

// defaultSpecialtyPrices is the fallback price table used when neither the
// document, its package nor its appointment carries an explicit value.
var defaultSpecialtyPrices = map[string]float64{
	"physiotherapy":        120.00,
	"speech_therapy":       130.00,
	"occupational_therapy": 130.00,
	"psychology":           150.00,
	"nutrition":            140.00,
}

// genericDefaultPrice applies when the specialty is unknown.
const genericDefaultPrice = 100.00

// resolveSpecialty walks the fallback chain: the document's own specialty,
// the linked appointment's, then the patient's default.
func resolveSpecialty(own string, appt *models.Appointment, patient *models.Patient) string {
	if own != "" {
		return own
	}
	if appt != nil && appt.Specialty != "" {
		return appt.Specialty
	}
	if patient != nil && patient.DefaultSpecialty != "" {
		return patient.DefaultSpecialty
	}
	return ""
}

// resolveValue picks the first usable monetary value: the explicit session
// value, the generic appointment value, the package's per-session value,
// then the specialty default.
func resolveValue(sessionValue, genericValue, packageValue float64, specialty string) float64 {
	if sessionValue > 0 {
		return sessionValue
	}
	if genericValue > 0 {
		return genericValue
	}
	if packageValue > 0 {
		return packageValue
	}
	if price, ok := defaultSpecialtyPrices[specialty]; ok {
		return price
	}
	return genericDefaultPrice
}

// deriveSessionEvent builds the canonical projection snapshot for a session.
func deriveSessionEvent(s *models.TherapySession, appt *models.Appointment, pkg *models.TherapyPackage, patient *models.Patient) *models.ScheduleEvent {
	specialty := resolveSpecialty(s.Specialty, appt, patient)
	var pkgValue float64
	if pkg != nil {
		pkgValue = pkg.SessionValue
	}
	var genericValue float64
	if appt != nil {
		genericValue = appt.Value
	}

	ev := &models.ScheduleEvent{
		OriginalID:    s.ID,
		Type:          models.EventSession,
		Date:          s.Date,
		Time:          s.Time,
		DoctorID:      s.DoctorID,
		PatientID:     s.PatientID,
		Specialty:     specialty,
		Value:         resolveValue(s.SessionValue, genericValue, pkgValue, specialty),
		PaymentStatus: s.PaymentStatus,
		VisualFlag:    s.VisualFlag,
		PackageID:     s.PackageID,
		SyncedAt:      time.Now().UTC(),
	}
	if appt != nil {
		ev.OperationalStatus = appt.OperationalStatus
		ev.ClinicalStatus = appt.ClinicalStatus
	} else {
		ev.OperationalStatus = operationalFromSession(s)
		ev.ClinicalStatus = clinicalFromSession(s)
	}
	return ev
}

// deriveAppointmentEvent builds the canonical projection snapshot for an
// appointment.
func deriveAppointmentEvent(a *models.Appointment, pkg *models.TherapyPackage, patient *models.Patient) *models.ScheduleEvent {
	specialty := resolveSpecialty(a.Specialty, nil, patient)
	var pkgValue float64
	if pkg != nil {
		pkgValue = pkg.SessionValue
	}
	return &models.ScheduleEvent{
		OriginalID:        a.ID,
		Type:              models.EventAppointment,
		Date:              a.Date,
		Time:              a.Time,
		DoctorID:          a.DoctorID,
		PatientID:         a.PatientID,
		Specialty:         specialty,
		Value:             resolveValue(0, a.Value, pkgValue, specialty),
		OperationalStatus: a.OperationalStatus,
		ClinicalStatus:    a.ClinicalStatus,
		PaymentStatus:     paymentFromAppointment(a.PaymentStatus),
		VisualFlag:        visualFromPayment(paymentFromAppointment(a.PaymentStatus)),
		PackageID:         a.PackageID,
		SyncedAt:          time.Now().UTC(),
	}
}

// derivePackageEvent builds the projection snapshot for a package. The date
// anchors on the earliest session so reports can bucket packages by start.
func derivePackageEvent(pkg *models.TherapyPackage, sessions []models.TherapySession, patient *models.Patient) *models.ScheduleEvent {
	var date, timeOfDay string
	if len(sessions) > 0 {
		date, timeOfDay = sessions[0].Date, sessions[0].Time
	}
	specialty := resolveSpecialty(pkg.Specialty, nil, patient)

	return &models.ScheduleEvent{
		OriginalID:        pkg.ID,
		Type:              models.EventPackage,
		Date:              date,
		Time:              timeOfDay,
		DoctorID:          pkg.DoctorID,
		PatientID:         pkg.PatientID,
		Specialty:         specialty,
		Value:             pkg.TotalValue,
		OperationalStatus: operationalFromPackage(pkg.Status),
		ClinicalStatus:    clinicalFromPackage(pkg.Status),
		PaymentStatus:     paymentFromFinancial(pkg.FinancialStatus),
		VisualFlag:        visualFromPayment(paymentFromFinancial(pkg.FinancialStatus)),
		PackageID:         pkg.ID,
		SyncedAt:          time.Now().UTC(),
	}
}

func operationalFromSession(s *models.TherapySession) models.OperationalStatus {
	switch s.Status {
	case models.SessionCompleted:
		return models.OperationalConfirmed
	case models.SessionCanceled:
		if s.ConfirmedAbsence != nil && *s.ConfirmedAbsence {
			return models.OperationalMissed
		}
		return models.OperationalCanceled
	case models.SessionPending:
		return models.OperationalPending
	default:
		return models.OperationalScheduled
	}
}

func clinicalFromSession(s *models.TherapySession) models.ClinicalStatus {
	switch s.Status {
	case models.SessionCompleted:
		return models.ClinicalCompleted
	case models.SessionCanceled:
		if s.ConfirmedAbsence != nil && *s.ConfirmedAbsence {
			return models.ClinicalMissed
		}
		return models.ClinicalPending
	default:
		return models.ClinicalPending
	}
}

func operationalFromPackage(status models.PackageStatus) models.OperationalStatus {
	switch status {
	case models.PackageCanceled:
		return models.OperationalCanceled
	case models.PackageFinished:
		return models.OperationalConfirmed
	default:
		return models.OperationalScheduled
	}
}

func clinicalFromPackage(status models.PackageStatus) models.ClinicalStatus {
	switch status {
	case models.PackageFinished:
		return models.ClinicalCompleted
	case models.PackageInProgress:
		return models.ClinicalInProgress
	default:
		return models.ClinicalPending
	}
}

func paymentFromAppointment(status models.AppointmentPaymentStatus) models.PaymentStatus {
	switch status {
	case models.ApptPaymentPaid, models.ApptPaymentPackagePaid, models.ApptPaymentAdvanced:
		return models.PaymentPaid
	case models.ApptPaymentPartial:
		return models.PaymentPartial
	default:
		return models.PaymentPending
	}
}

func paymentFromFinancial(status models.FinancialStatus) models.PaymentStatus {
	switch status {
	case models.FinancialPaid:
		return models.PaymentPaid
	case models.FinancialPartiallyPaid:
		return models.PaymentPartial
	default:
		return models.PaymentPending
	}
}

func visualFromPayment(status models.PaymentStatus) models.VisualFlag {
	switch status {
	case models.PaymentPaid:
		return models.VisualOK
	case models.PaymentPartial:
		return models.VisualPartial
	default:
		return models.VisualPending
	}
}
