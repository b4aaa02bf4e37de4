package userRepo

import (
	"context"
	"errors"
	"fmt"

	"clinicore/database"
	"clinicore/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// Repository provides access to clinic staff accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
}

// MongoUserRepo implements Repository using MongoDB.
type MongoUserRepo struct {
	coll *mongo.Collection
}

// NewMongoUserRepo constructs a new instance of MongoUserRepo.
func NewMongoUserRepo() Repository {
	return &MongoUserRepo{coll: database.DB().Collection("users")}
}

func (repo *MongoUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := repo.coll.FindOne(ctx, bson.M{"id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching user with id %s: %w", id, err)
	}
	return &u, nil
}

func (repo *MongoUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := repo.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching user with email %s: %w", email, err)
	}
	return &u, nil
}

func (repo *MongoUserRepo) Insert(ctx context.Context, u *models.User) error {
	if _, err := repo.coll.InsertOne(ctx, u); err != nil {
		return fmt.Errorf("error inserting user: %w", err)
	}
	return nil
}

func (repo *MongoUserRepo) Update(ctx context.Context, u *models.User) error {
	res, err := repo.coll.ReplaceOne(ctx, bson.M{"id": u.ID}, u)
	if err != nil {
		return fmt.Errorf("error updating user %s: %w", u.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
