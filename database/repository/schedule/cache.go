package scheduleRepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clinicore/models"
	"clinicore/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// rangeCache is a Redis read-through cache for calendar range queries.
// Entries are versioned per doctor: any upsert or delete bumps the doctor's
// version, which invalidates every cached range for that doctor at once.
type rangeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newRangeCache(client *redis.Client, ttl time.Duration) *rangeCache {
	return &rangeCache{client: client, ttl: ttl}
}

func (c *rangeCache) versionKey(doctorID string) string {
	return "schedule:ver:" + doctorID
}

func (c *rangeCache) rangeKey(ctx context.Context, doctorID, from, to string) string {
	ver, err := c.client.Get(ctx, c.versionKey(doctorID)).Result()
	if err != nil {
		ver = "0"
	}
	return fmt.Sprintf("schedule:range:%s:%s:%s:%s", doctorID, ver, from, to)
}

func (c *rangeCache) get(ctx context.Context, doctorID, from, to string) ([]models.ScheduleEvent, bool) {
	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.rangeKey(ctx, doctorID, from, to)).Bytes()
	if err != nil {
		return nil, false
	}
	var events []models.ScheduleEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		utils.GetLogger().Warn("schedule cache decode failed", zap.Error(err))
		return nil, false
	}
	return events, true
}

func (c *rangeCache) put(ctx context.Context, doctorID, from, to string, events []models.ScheduleEvent) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.rangeKey(ctx, doctorID, from, to), raw, c.ttl).Err(); err != nil {
		utils.GetLogger().Warn("schedule cache write failed", zap.Error(err))
	}
}

// invalidationKeys lists the version keys a write to doctorID must bump.
// Unfiltered range queries are cached under the empty doctor ID, so every
// doctor-scoped write also has to expire the unfiltered view.
func (c *rangeCache) invalidationKeys(doctorID string) []string {
	keys := []string{c.versionKey(doctorID)}
	if doctorID != "" {
		keys = append(keys, c.versionKey(""))
	}
	return keys
}

func (c *rangeCache) invalidate(doctorID string) {
	if c.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, key := range c.invalidationKeys(doctorID) {
		if err := c.client.Incr(ctx, key).Err(); err != nil {
			utils.GetLogger().Warn("schedule cache invalidation failed", zap.Error(err))
		}
	}
}
