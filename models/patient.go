package models

import "time"

// Patient is a clinic patient record.
type Patient struct {
	ID               string    `bson:"id" json:"id"`
	Name             string    `bson:"name" json:"name"`
	Phone            string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Email            string    `bson:"email,omitempty" json:"email,omitempty"`
	BirthDate        string    `bson:"birth_date,omitempty" json:"birth_date,omitempty"`
	DefaultSpecialty string    `bson:"default_specialty,omitempty" json:"default_specialty,omitempty"`
	Notes            string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}
