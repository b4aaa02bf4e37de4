package models

import "time"

// PackageStatus is the lifecycle state of a therapy package.
type PackageStatus string

const (
	PackageActive     PackageStatus = "active"
	PackageInProgress PackageStatus = "in_progress"
	PackageFinished   PackageStatus = "finished"
	PackageCanceled   PackageStatus = "canceled"
)

// FinancialStatus summarizes how much of a package's total value has been paid.
// It is always derived from TotalPaid vs TotalValue, never set directly.
type FinancialStatus string

const (
	FinancialUnpaid        FinancialStatus = "unpaid"
	FinancialPartiallyPaid FinancialStatus = "partially_paid"
	FinancialPaid          FinancialStatus = "paid"
)

// TherapyPackage is a prepaid bundle of sessions at a fixed per-session price.
type TherapyPackage struct {
	ID            string  `bson:"id" json:"id"`
	PatientID     string  `bson:"patient_id" json:"patient_id"`
	DoctorID      string  `bson:"doctor_id" json:"doctor_id"`
	Specialty     string  `bson:"specialty,omitempty" json:"specialty,omitempty"`
	TotalSessions int     `bson:"total_sessions" json:"total_sessions"`
	SessionValue  float64 `bson:"session_value" json:"session_value"`
	TotalValue    float64 `bson:"total_value" json:"total_value"`

	// TotalPaid and Balance are recomputed from the sum of the sessions'
	// partial amounts inside the same transaction as every mutation.
	TotalPaid       float64         `bson:"total_paid" json:"total_paid"`
	Balance         float64         `bson:"balance" json:"balance"`
	SessionsDone    int             `bson:"sessions_done" json:"sessions_done"`
	FinancialStatus FinancialStatus `bson:"financial_status" json:"financial_status"`
	Status          PackageStatus   `bson:"status" json:"status"`

	SessionIDs []string `bson:"session_ids" json:"session_ids"`
	PaymentIDs []string `bson:"payment_ids" json:"payment_ids"`

	LastPaymentAt *time.Time `bson:"last_payment_at,omitempty" json:"last_payment_at,omitempty"`
	PendingSync   bool       `bson:"pending_sync" json:"-"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at" json:"updated_at"`
}

// ResolveFinancialStatus derives the financial status from paid vs total value.
func ResolveFinancialStatus(totalPaid, totalValue float64) FinancialStatus {
	switch {
	case totalPaid <= 0:
		return FinancialUnpaid
	case totalPaid < totalValue:
		return FinancialPartiallyPaid
	default:
		return FinancialPaid
	}
}
