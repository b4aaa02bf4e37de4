package billing

import (
	"clinicore/models"
	"clinicore/utils"
)

// The resolver is the only place session and appointment status fields are
// derived. Anything that writes a stored status goes through these
// functions; setting a status field directly anywhere else is a bug.

// ResolveSessionPaymentStatus derives a session's payment status and paid
// flag from how much of its value is covered.
func ResolveSessionPaymentStatus(partialAmount, sessionValue float64) (models.PaymentStatus, bool) {
	switch {
	case utils.MoneyGTE(partialAmount, sessionValue):
		return models.PaymentPaid, true
	case partialAmount > 0:
		return models.PaymentPartial, false
	default:
		return models.PaymentPending, false
	}
}

// ResolveVisualFlag derives the display-only payment health indicator.
// pkg is nil for standalone sessions, whose flag mirrors the payment status.
func ResolveVisualFlag(paymentStatus models.PaymentStatus, pkg *models.TherapyPackage, partialAmount float64) models.VisualFlag {
	if pkg == nil {
		switch paymentStatus {
		case models.PaymentPaid:
			return models.VisualOK
		case models.PaymentPartial:
			return models.VisualPartial
		default:
			return models.VisualPending
		}
	}

	if paymentStatus == models.PaymentPaid || utils.MoneyGTE(pkg.TotalPaid, pkg.TotalValue) {
		return models.VisualOK
	}
	// Package still carries outstanding balance.
	if partialAmount > 0 {
		return models.VisualPartial
	}
	return models.VisualBlocked
}

// ResolveOperationalStatus maps a session lifecycle state onto the
// calendar-facing vocabulary. A cancellation with a confirmed absence is a
// missed appointment, without one it is a plain cancellation.
func ResolveOperationalStatus(status models.SessionStatus, confirmedAbsence *bool) models.OperationalStatus {
	switch status {
	case models.SessionScheduled:
		return models.OperationalScheduled
	case models.SessionPending:
		return models.OperationalPending
	case models.SessionCompleted:
		return models.OperationalConfirmed
	case models.SessionCanceled:
		if confirmedAbsence != nil && *confirmedAbsence {
			return models.OperationalMissed
		}
		return models.OperationalCanceled
	default:
		return models.OperationalPending
	}
}

// ResolveClinicalStatus maps a session lifecycle state onto the clinical
// progress vocabulary.
func ResolveClinicalStatus(status models.SessionStatus, confirmedAbsence *bool) models.ClinicalStatus {
	switch status {
	case models.SessionCompleted:
		return models.ClinicalCompleted
	case models.SessionCanceled:
		if confirmedAbsence != nil && *confirmedAbsence {
			return models.ClinicalMissed
		}
		return models.ClinicalPending
	default:
		return models.ClinicalPending
	}
}

// ResolveAppointmentPaymentStatus maps a package session's payment status
// onto the appointment payment vocabulary.
func ResolveAppointmentPaymentStatus(paymentStatus models.PaymentStatus, packageLinked bool) models.AppointmentPaymentStatus {
	switch paymentStatus {
	case models.PaymentPaid:
		if packageLinked {
			return models.ApptPaymentPackagePaid
		}
		return models.ApptPaymentPaid
	case models.PaymentPartial:
		return models.ApptPaymentPartial
	default:
		return models.ApptPaymentPending
	}
}
