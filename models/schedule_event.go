package models

import "time"

// EventType identifies which source entity a schedule event was derived from.
type EventType string

const (
	EventAppointment EventType = "appointment"
	EventSession     EventType = "session"
	EventPackage     EventType = "package"
)

// ScheduleEvent is the denormalized read model consumed by calendar and
// report queries. Keyed by (OriginalID, Type); each sync is a full upsert
// of the derived snapshot, never a partial patch.
type ScheduleEvent struct {
	OriginalID string    `bson:"original_id" json:"original_id"`
	Type       EventType `bson:"type" json:"type"`

	Date      string `bson:"date" json:"date"`
	Time      string `bson:"time" json:"time"`
	DoctorID  string `bson:"doctor_id" json:"doctor_id"`
	PatientID string `bson:"patient_id" json:"patient_id"`
	Specialty string `bson:"specialty" json:"specialty"`

	Value float64 `bson:"value" json:"value"`

	OperationalStatus OperationalStatus `bson:"operational_status" json:"operational_status"`
	ClinicalStatus    ClinicalStatus    `bson:"clinical_status" json:"clinical_status"`
	PaymentStatus     PaymentStatus     `bson:"payment_status" json:"payment_status"`
	VisualFlag        VisualFlag        `bson:"visual_flag" json:"visual_flag"`

	PackageID string `bson:"package_id,omitempty" json:"package_id,omitempty"`

	SyncedAt time.Time `bson:"synced_at" json:"synced_at"`
}
