package scheduleRepo

import (
	"context"

	"clinicore/models"
)

// Repository is the projection store for schedule events. Calendar and
// report readers consume this collection exclusively; they never touch the
// source entities.
type Repository interface {
	// Upsert writes the full derived snapshot keyed by (originalId, type).
	Upsert(ctx context.Context, ev *models.ScheduleEvent) error
	Delete(ctx context.Context, originalID string, typ models.EventType) error
	Get(ctx context.Context, originalID string, typ models.EventType) (*models.ScheduleEvent, error)
	// ListRange returns events within [from, to] (inclusive, "2006-01-02"),
	// optionally filtered by doctor.
	ListRange(ctx context.Context, doctorID, from, to string) ([]models.ScheduleEvent, error)
	// ListUnpaid returns events whose payment status is not settled.
	ListUnpaid(ctx context.Context, doctorID string) ([]models.ScheduleEvent, error)
}
