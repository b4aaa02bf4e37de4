package scheduleevents

import (
	"encoding/json"
	"fmt"

	"clinicore/models"

	"github.com/hibiken/asynq"
)

// TypeProjectionSync is the asynq task type for deferred projection syncs.
const TypeProjectionSync = "projection:sync"

// SyncPayload identifies the source entity a queued sync must re-project.
type SyncPayload struct {
	OriginalID string           `json:"original_id"`
	Type       models.EventType `json:"type"`
}

// AsynqOutbox queues deferred syncs onto Redis via asynq.
type AsynqOutbox struct {
	Client *asynq.Client
}

// NewAsynqOutbox wraps an asynq client as an OutboxEnqueuer.
func NewAsynqOutbox(client *asynq.Client) *AsynqOutbox {
	return &AsynqOutbox{Client: client}
}

func (o *AsynqOutbox) EnqueueSync(originalID string, typ models.EventType) error {
	payload, err := json.Marshal(SyncPayload{OriginalID: originalID, Type: typ})
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}
	task := asynq.NewTask(TypeProjectionSync, payload)
	if _, err := o.Client.Enqueue(task, asynq.MaxRetry(10), asynq.Queue("default")); err != nil {
		return fmt.Errorf("enqueue projection sync for %s/%s: %w", typ, originalID, err)
	}
	return nil
}
