package appointmentRepo

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

// ErrNotFound is returned when a requested appointment does not exist.
var ErrNotFound = errors.New("appointment not found")

// MongoAppointmentRepo implements Repository using MongoDB.
type MongoAppointmentRepo struct {
	coll *mongo.Collection
}

// NewMongoAppointmentRepo constructs a new instance of MongoAppointmentRepo.
// The slot-uniqueness invariant depends on the partial unique index, so a
// failed index build aborts startup instead of serving traffic without it.
func NewMongoAppointmentRepo() Repository {
	repo := &MongoAppointmentRepo{coll: database.DB().Collection("appointments")}
	if err := repo.ensureIndexes(); err != nil {
		utils.GetLogger().Fatal("appointment index setup failed", zap.Error(err))
	}
	return repo
}

func (repo *MongoAppointmentRepo) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	if err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching appointment with id %s: %w", id, err)
	}
	return &a, nil
}

func (repo *MongoAppointmentRepo) Insert(ctx context.Context, a *models.Appointment) error {
	if _, err := repo.coll.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("error inserting appointment: %w", err)
	}
	return nil
}

func (repo *MongoAppointmentRepo) Update(ctx context.Context, a *models.Appointment) error {
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"id": a.ID}, a)
	if err != nil {
		return fmt.Errorf("error updating appointment %s: %w", a.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (repo *MongoAppointmentRepo) Delete(ctx context.Context, id string) error {
	if _, err := repo.coll.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return fmt.Errorf("error deleting appointment %s: %w", id, err)
	}
	return nil
}

func (repo *MongoAppointmentRepo) DeleteByPackage(ctx context.Context, packageID string) error {
	if _, err := repo.coll.DeleteMany(ctx, bson.M{"package_id": packageID}); err != nil {
		return fmt.Errorf("error deleting appointments of package %s: %w", packageID, err)
	}
	return nil
}

func (repo *MongoAppointmentRepo) SlotTaken(ctx context.Context, patientID, doctorID, date, timeOfDay, excludeID string) (bool, error) {
	filter := bson.M{
		"patient_id":         patientID,
		"doctor_id":          doctorID,
		"date":               date,
		"time":               timeOfDay,
		"operational_status": bson.M{"$ne": models.OperationalCanceled},
	}
	if excludeID != "" {
		filter["id"] = bson.M{"$ne": excludeID}
	}
	count, err := repo.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("error checking slot occupancy: %w", err)
	}
	return count > 0, nil
}

func (repo *MongoAppointmentRepo) ListPendingSync(ctx context.Context, limit int) ([]models.Appointment, error) {
	opts := options.Find().SetLimit(int64(limit))
	cursor, err := repo.coll.Find(ctx, bson.M{"pending_sync": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing pending-sync appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var appts []models.Appointment
	if err := cursor.All(ctx, &appts); err != nil {
		return nil, fmt.Errorf("error decoding pending-sync appointments: %w", err)
	}
	return appts, nil
}

func (repo *MongoAppointmentRepo) ClearPendingSync(ctx context.Context, id string) error {
	_, err := repo.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"pending_sync": false}})
	if err != nil {
		return fmt.Errorf("error clearing pending-sync on appointment %s: %w", id, err)
	}
	return nil
}

// slotHoldingStatuses are the operational states that occupy a calendar
// slot. Only a cancellation frees the slot.
var slotHoldingStatuses = []string{
	string(models.OperationalScheduled),
	string(models.OperationalConfirmed),
	string(models.OperationalPending),
	string(models.OperationalPaid),
	string(models.OperationalMissed),
}

// slotIndexModel builds the partial unique index enforcing the
// one-appointment-per-slot rule. partialFilterExpression does not accept
// $ne, so the filter enumerates the slot-holding statuses with $in.
func slotIndexModel() mongo.IndexModel {
	opts := options.Index().
		SetUnique(true).
		SetPartialFilterExpression(bson.M{
			"operational_status": bson.M{"$in": slotHoldingStatuses},
		})
	return mongo.IndexModel{
		Keys: bson.D{
			{Key: "patient_id", Value: 1},
			{Key: "doctor_id", Value: 1},
			{Key: "date", Value: 1},
			{Key: "time", Value: 1},
		},
		Options: opts,
	}
}

// ensureIndexes creates indexes for frequently used fields in queries.
func (repo *MongoAppointmentRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "package_id", Value: 1}}},
		{Keys: bson.D{{Key: "pending_sync", Value: 1}}},
		slotIndexModel(),
	}
	if _, err := repo.coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create appointment indexes: %w", err)
	}
	return nil
}
