package models

import "time"

// PaymentRecordStatus is the lifecycle state of a payment record.
type PaymentRecordStatus string

const (
	PaymentRecordPending  PaymentRecordStatus = "pending"
	PaymentRecordPaid     PaymentRecordStatus = "paid"
	PaymentRecordCanceled PaymentRecordStatus = "canceled"
)

// ServiceType says what kind of service a payment covers.
type ServiceType string

const (
	ServiceEvaluation        ServiceType = "evaluation"
	ServiceSession           ServiceType = "session"
	ServicePackageSession    ServiceType = "package_session"
	ServiceIndividualSession ServiceType = "individual_session"
)

// Payment is a record of money received. Once paid it is never mutated;
// corrections happen through new records.
type Payment struct {
	ID            string              `bson:"id" json:"id"`
	Amount        float64             `bson:"amount" json:"amount"`
	Method        string              `bson:"method" json:"method"`
	Status        PaymentRecordStatus `bson:"status" json:"status"`
	ServiceType   ServiceType         `bson:"service_type" json:"service_type"`
	PackageID     string              `bson:"package_id,omitempty" json:"package_id,omitempty"`
	SessionID     string              `bson:"session_id,omitempty" json:"session_id,omitempty"`
	AppointmentID string              `bson:"appointment_id,omitempty" json:"appointment_id,omitempty"`
	PatientID     string              `bson:"patient_id,omitempty" json:"patient_id,omitempty"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
}
