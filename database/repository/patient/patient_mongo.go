package patientRepo

import (
	"context"
	"errors"
	"fmt"

	"clinicore/database"
	"clinicore/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a requested patient does not exist.
var ErrNotFound = errors.New("patient not found")

// Repository provides access to the patients collection.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	Insert(ctx context.Context, p *models.Patient) error
	Update(ctx context.Context, p *models.Patient) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Patient, error)
}

// MongoPatientRepo implements Repository using MongoDB.
type MongoPatientRepo struct {
	coll *mongo.Collection
}

// NewMongoPatientRepo constructs a new instance of MongoPatientRepo.
func NewMongoPatientRepo() Repository {
	return &MongoPatientRepo{coll: database.DB().Collection("patients")}
}

func (repo *MongoPatientRepo) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	var p models.Patient
	if err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching patient with id %s: %w", id, err)
	}
	return &p, nil
}

func (repo *MongoPatientRepo) Insert(ctx context.Context, p *models.Patient) error {
	if _, err := repo.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("error inserting patient: %w", err)
	}
	return nil
}

func (repo *MongoPatientRepo) Update(ctx context.Context, p *models.Patient) error {
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"id": p.ID}, p)
	if err != nil {
		return fmt.Errorf("error updating patient %s: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (repo *MongoPatientRepo) Delete(ctx context.Context, id string) error {
	if _, err := repo.coll.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return fmt.Errorf("error deleting patient %s: %w", id, err)
	}
	return nil
}

func (repo *MongoPatientRepo) List(ctx context.Context) ([]models.Patient, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := repo.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing patients: %w", err)
	}
	defer cursor.Close(ctx)

	var patients []models.Patient
	if err := cursor.All(ctx, &patients); err != nil {
		return nil, fmt.Errorf("error decoding patients: %w", err)
	}
	return patients, nil
}
