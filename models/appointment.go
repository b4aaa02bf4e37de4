package models

import "time"

// OperationalStatus is the calendar-facing state of an appointment.
type OperationalStatus string

const (
	OperationalScheduled OperationalStatus = "scheduled"
	OperationalConfirmed OperationalStatus = "confirmed"
	OperationalPending   OperationalStatus = "pending"
	OperationalCanceled  OperationalStatus = "canceled"
	OperationalPaid      OperationalStatus = "paid"
	OperationalMissed    OperationalStatus = "missed"
)

// ClinicalStatus tracks the clinical progress of an appointment.
type ClinicalStatus string

const (
	ClinicalPending    ClinicalStatus = "pending"
	ClinicalInProgress ClinicalStatus = "in_progress"
	ClinicalCompleted  ClinicalStatus = "completed"
	ClinicalMissed     ClinicalStatus = "missed"
)

// AppointmentPaymentStatus is the payment vocabulary used on appointments.
type AppointmentPaymentStatus string

const (
	ApptPaymentPending     AppointmentPaymentStatus = "pending"
	ApptPaymentPaid        AppointmentPaymentStatus = "paid"
	ApptPaymentPartial     AppointmentPaymentStatus = "partial"
	ApptPaymentCanceled    AppointmentPaymentStatus = "canceled"
	ApptPaymentAdvanced    AppointmentPaymentStatus = "advanced"
	ApptPaymentPackagePaid AppointmentPaymentStatus = "package_paid"
)

// HistoryEntry records one status transition on an appointment.
type HistoryEntry struct {
	Action string    `bson:"action" json:"action"`
	Status string    `bson:"status" json:"status"`
	Actor  string    `bson:"actor" json:"actor"`
	At     time.Time `bson:"at" json:"at"`
}

// Appointment is the calendar-facing occurrence, paired 1:1 with a session
// in package flows or standalone for individual/evaluation services.
type Appointment struct {
	ID        string `bson:"id" json:"id"`
	PatientID string `bson:"patient_id" json:"patient_id"`
	DoctorID  string `bson:"doctor_id" json:"doctor_id"`
	Specialty string `bson:"specialty,omitempty" json:"specialty,omitempty"`

	Date string `bson:"date" json:"date"`
	Time string `bson:"time" json:"time"`

	SessionID string `bson:"session_id,omitempty" json:"session_id,omitempty"`
	PackageID string `bson:"package_id,omitempty" json:"package_id,omitempty"`
	PaymentID string `bson:"payment_id,omitempty" json:"payment_id,omitempty"`

	Value float64 `bson:"value,omitempty" json:"value,omitempty"`

	OperationalStatus OperationalStatus        `bson:"operational_status" json:"operational_status"`
	ClinicalStatus    ClinicalStatus           `bson:"clinical_status" json:"clinical_status"`
	PaymentStatus     AppointmentPaymentStatus `bson:"payment_status" json:"payment_status"`

	// History is append-only.
	History []HistoryEntry `bson:"history" json:"history"`

	PendingSync bool      `bson:"pending_sync" json:"-"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// AppendHistory records a transition without ever rewriting prior entries.
func (a *Appointment) AppendHistory(action, status, actor string) {
	a.History = append(a.History, HistoryEntry{
		Action: action,
		Status: status,
		Actor:  actor,
		At:     time.Now().UTC(),
	})
}
