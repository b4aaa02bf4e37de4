package models

import "time"

// SessionStatus is the lifecycle state of a therapy session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionPending   SessionStatus = "pending"
	SessionCompleted SessionStatus = "completed"
	SessionCanceled  SessionStatus = "canceled"
)

// PaymentStatus is the financial state of a single session.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

// VisualFlag is the display-only payment health indicator for calendar rendering.
type VisualFlag string

const (
	VisualOK      VisualFlag = "ok"
	VisualPartial VisualFlag = "partial"
	VisualPending VisualFlag = "pending"
	VisualBlocked VisualFlag = "blocked"
)

// SessionSnapshot captures the financial state of a session at cancellation
// time so a later restore can reproduce it without recomputation.
type SessionSnapshot struct {
	Status        SessionStatus `bson:"status" json:"status"`
	PaymentStatus PaymentStatus `bson:"payment_status" json:"payment_status"`
	IsPaid        bool          `bson:"is_paid" json:"is_paid"`
	VisualFlag    VisualFlag    `bson:"visual_flag" json:"visual_flag"`
	PartialAmount float64       `bson:"partial_amount" json:"partial_amount"`
}

// TherapySession is one scheduled occurrence, optionally owned by a package.
type TherapySession struct {
	ID            string `bson:"id" json:"id"`
	PackageID     string `bson:"package_id,omitempty" json:"package_id,omitempty"`
	AppointmentID string `bson:"appointment_id,omitempty" json:"appointment_id,omitempty"`
	PatientID     string `bson:"patient_id" json:"patient_id"`
	DoctorID      string `bson:"doctor_id" json:"doctor_id"`
	Specialty     string `bson:"specialty,omitempty" json:"specialty,omitempty"`

	Date string `bson:"date" json:"date"` // "2006-01-02"
	Time string `bson:"time" json:"time"` // "15:04"

	SessionValue  float64       `bson:"session_value" json:"session_value"`
	PartialAmount float64       `bson:"partial_amount" json:"partial_amount"`
	IsPaid        bool          `bson:"is_paid" json:"is_paid"`
	PaymentStatus PaymentStatus `bson:"payment_status" json:"payment_status"`
	VisualFlag    VisualFlag    `bson:"visual_flag" json:"visual_flag"`
	Status        SessionStatus `bson:"status" json:"status"`

	// ConfirmedAbsence is only meaningful when Status is canceled.
	ConfirmedAbsence *bool            `bson:"confirmed_absence,omitempty" json:"confirmed_absence,omitempty"`
	Original         *SessionSnapshot `bson:"original,omitempty" json:"original,omitempty"`

	PendingSync bool      `bson:"pending_sync" json:"-"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Outstanding returns how much of the session value is still uncovered.
func (s *TherapySession) Outstanding() float64 {
	due := s.SessionValue - s.PartialAmount
	if due < 0 {
		return 0
	}
	return due
}

// Payable reports whether the session can still receive money from a
// distribution: not canceled and not fully covered.
func (s *TherapySession) Payable() bool {
	return s.Status != SessionCanceled && s.PartialAmount < s.SessionValue
}
