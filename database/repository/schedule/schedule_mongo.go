package scheduleRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinicore/database"
	"clinicore/models"
	"clinicore/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a projection record does not exist.
var ErrNotFound = errors.New("schedule event not found")

// MongoScheduleRepo implements Repository using MongoDB, with a Redis
// read-through cache on range queries.
type MongoScheduleRepo struct {
	coll  *mongo.Collection
	cache *rangeCache
}

// NewMongoScheduleRepo constructs a new instance of MongoScheduleRepo.
func NewMongoScheduleRepo() Repository {
	repo := &MongoScheduleRepo{
		coll:  database.DB().Collection("schedule_events"),
		cache: newRangeCache(utils.GetCacheClient(), 2*time.Minute),
	}
	if err := repo.ensureIndexes(); err != nil {
		utils.GetLogger().Warn("schedule index setup failed", zap.Error(err))
	}
	return repo
}

func (repo *MongoScheduleRepo) Upsert(ctx context.Context, ev *models.ScheduleEvent) error {
	filter := bson.M{"original_id": ev.OriginalID, "type": ev.Type}
	opts := options.Replace().SetUpsert(true)
	if _, err := repo.coll.ReplaceOne(ctx, filter, ev, opts); err != nil {
		return fmt.Errorf("error upserting schedule event %s/%s: %w", ev.Type, ev.OriginalID, err)
	}
	repo.cache.invalidate(ev.DoctorID)
	return nil
}

func (repo *MongoScheduleRepo) Delete(ctx context.Context, originalID string, typ models.EventType) error {
	var ev models.ScheduleEvent
	err := repo.coll.FindOneAndDelete(ctx, bson.M{"original_id": originalID, "type": typ}).Decode(&ev)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return fmt.Errorf("error deleting schedule event %s/%s: %w", typ, originalID, err)
	}
	repo.cache.invalidate(ev.DoctorID)
	return nil
}

func (repo *MongoScheduleRepo) Get(ctx context.Context, originalID string, typ models.EventType) (*models.ScheduleEvent, error) {
	var ev models.ScheduleEvent
	if err := repo.coll.FindOne(ctx, bson.M{"original_id": originalID, "type": typ}).Decode(&ev); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching schedule event %s/%s: %w", typ, originalID, err)
	}
	return &ev, nil
}

func (repo *MongoScheduleRepo) ListRange(ctx context.Context, doctorID, from, to string) ([]models.ScheduleEvent, error) {
	if cached, ok := repo.cache.get(ctx, doctorID, from, to); ok {
		return cached, nil
	}

	filter := bson.M{"date": bson.M{"$gte": from, "$lte": to}}
	if doctorID != "" {
		filter["doctor_id"] = doctorID
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})
	cursor, err := repo.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing schedule events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.ScheduleEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("error decoding schedule events: %w", err)
	}

	repo.cache.put(ctx, doctorID, from, to, events)
	return events, nil
}

func (repo *MongoScheduleRepo) ListUnpaid(ctx context.Context, doctorID string) ([]models.ScheduleEvent, error) {
	filter := bson.M{"payment_status": bson.M{"$ne": models.PaymentPaid}}
	if doctorID != "" {
		filter["doctor_id"] = doctorID
	}
	cursor, err := repo.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing unpaid schedule events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []models.ScheduleEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("error decoding unpaid schedule events: %w", err)
	}
	return events, nil
}

// ensureIndexes creates the compound key index and the query indexes.
func (repo *MongoScheduleRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "original_id", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "doctor_id", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "payment_status", Value: 1}}},
	}
	if _, err := repo.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create schedule event indexes: %w", err)
	}
	return nil
}
