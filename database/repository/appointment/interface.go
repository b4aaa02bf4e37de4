package appointmentRepo

import (
	"context"

	"clinicore/models"
)

// Repository provides access to the appointments collection. Methods honor
// the caller's context so they join an ambient Mongo transaction.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	Insert(ctx context.Context, a *models.Appointment) error
	Update(ctx context.Context, a *models.Appointment) error
	Delete(ctx context.Context, id string) error
	DeleteByPackage(ctx context.Context, packageID string) error
	// SlotTaken reports whether a non-canceled appointment already occupies
	// the given doctor/patient/date/time tuple.
	SlotTaken(ctx context.Context, patientID, doctorID, date, timeOfDay, excludeID string) (bool, error)
	ListPendingSync(ctx context.Context, limit int) ([]models.Appointment, error)
	ClearPendingSync(ctx context.Context, id string) error
}
