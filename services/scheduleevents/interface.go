package scheduleevents

import (
	"context"

	"clinicore/models"
)

// Service maintains the denormalized schedule-event projection derived from
// appointments, sessions and packages. The projection is an eventually-
// consistent side channel: a failed sync never rolls back the source write.
type Service interface {
	SyncAppointment(ctx context.Context, a *models.Appointment) error
	SyncSession(ctx context.Context, s *models.TherapySession) error
	SyncPackage(ctx context.Context, pkg *models.TherapyPackage) error
	// Sync reloads the source entity by id and projects it. Used by the
	// reconciliation worker.
	Sync(ctx context.Context, originalID string, typ models.EventType) error
	DeleteEvent(ctx context.Context, originalID string, typ models.EventType) error
}

// OutboxEnqueuer queues a sync for later reconciliation after the inline
// attempt has exhausted its retries.
type OutboxEnqueuer interface {
	EnqueueSync(originalID string, typ models.EventType) error
}
