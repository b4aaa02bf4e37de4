package billingRepo

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

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// MongoBillingRepo implements Repository using MongoDB.
type MongoBillingRepo struct {
	packageColl *mongo.Collection
	sessionColl *mongo.Collection
	paymentColl *mongo.Collection
}

// NewMongoBillingRepo constructs a new instance of MongoBillingRepo.
func NewMongoBillingRepo() Repository {
	db := database.DB()
	return &MongoBillingRepo{
		packageColl: db.Collection("packages"),
		sessionColl: db.Collection("sessions"),
		paymentColl: db.Collection("payments"),
	}
}

func (repo *MongoBillingRepo) GetPackageByID(ctx context.Context, id string) (*models.TherapyPackage, error) {
	var pkg models.TherapyPackage
	if err := repo.packageColl.FindOne(ctx, bson.M{"id": id}).Decode(&pkg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching package with id %s: %w", id, err)
	}
	return &pkg, nil
}

func (repo *MongoBillingRepo) InsertPackage(ctx context.Context, pkg *models.TherapyPackage) error {
	if _, err := repo.packageColl.InsertOne(ctx, pkg); err != nil {
		return fmt.Errorf("error inserting package: %w", err)
	}
	return nil
}

func (repo *MongoBillingRepo) UpdatePackage(ctx context.Context, pkg *models.TherapyPackage) error {
	res, err := repo.packageColl.ReplaceOne(ctx, bson.M{"id": pkg.ID}, pkg)
	if err != nil {
		return fmt.Errorf("error updating package %s: %w", pkg.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (repo *MongoBillingRepo) DeletePackage(ctx context.Context, id string) error {
	if _, err := repo.packageColl.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return fmt.Errorf("error deleting package %s: %w", id, err)
	}
	return nil
}

func (repo *MongoBillingRepo) ListPendingSyncPackages(ctx context.Context, limit int) ([]models.TherapyPackage, error) {
	opts := options.Find().SetLimit(int64(limit))
	cursor, err := repo.packageColl.Find(ctx, bson.M{"pending_sync": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing pending-sync packages: %w", err)
	}
	defer cursor.Close(ctx)

	var pkgs []models.TherapyPackage
	if err := cursor.All(ctx, &pkgs); err != nil {
		return nil, fmt.Errorf("error decoding pending-sync packages: %w", err)
	}
	return pkgs, nil
}

func (repo *MongoBillingRepo) ClearPackagePendingSync(ctx context.Context, id string) error {
	_, err := repo.packageColl.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"pending_sync": false}})
	if err != nil {
		return fmt.Errorf("error clearing pending-sync on package %s: %w", id, err)
	}
	return nil
}

func (repo *MongoBillingRepo) ClearSessionPendingSync(ctx context.Context, id string) error {
	_, err := repo.sessionColl.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"pending_sync": false}})
	if err != nil {
		return fmt.Errorf("error clearing pending-sync on session %s: %w", id, err)
	}
	return nil
}

func (repo *MongoBillingRepo) GetSessionByID(ctx context.Context, id string) (*models.TherapySession, error) {
	var s models.TherapySession
	if err := repo.sessionColl.FindOne(ctx, bson.M{"id": id}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching session with id %s: %w", id, err)
	}
	return &s, nil
}

func (repo *MongoBillingRepo) InsertSession(ctx context.Context, s *models.TherapySession) error {
	if _, err := repo.sessionColl.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("error inserting session: %w", err)
	}
	return nil
}

func (repo *MongoBillingRepo) UpdateSession(ctx context.Context, s *models.TherapySession) error {
	res, err := repo.sessionColl.ReplaceOne(ctx, bson.M{"id": s.ID}, s)
	if err != nil {
		return fmt.Errorf("error updating session %s: %w", s.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (repo *MongoBillingRepo) DeleteSessionsByPackage(ctx context.Context, packageID string) error {
	if _, err := repo.sessionColl.DeleteMany(ctx, bson.M{"package_id": packageID}); err != nil {
		return fmt.Errorf("error deleting sessions of package %s: %w", packageID, err)
	}
	return nil
}

func (repo *MongoBillingRepo) ListPackageSessions(ctx context.Context, packageID string) ([]models.TherapySession, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})
	cursor, err := repo.sessionColl.Find(ctx, bson.M{"package_id": packageID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing sessions of package %s: %w", packageID, err)
	}
	defer cursor.Close(ctx)

	var sessions []models.TherapySession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("error decoding sessions of package %s: %w", packageID, err)
	}
	return sessions, nil
}

func (repo *MongoBillingRepo) SumPartialAmounts(ctx context.Context, packageID string) (float64, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"package_id": packageID,
			"status":     bson.M{"$ne": models.SessionCanceled},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$partial_amount"},
		}}},
	}
	cursor, err := repo.sessionColl.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("error aggregating partial amounts for package %s: %w", packageID, err)
	}
	defer cursor.Close(ctx)

	var out []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &out); err != nil {
		return 0, fmt.Errorf("error decoding partial amount aggregate: %w", err)
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Total, nil
}

func (repo *MongoBillingRepo) ListPendingSyncSessions(ctx context.Context, limit int) ([]models.TherapySession, error) {
	opts := options.Find().SetLimit(int64(limit))
	cursor, err := repo.sessionColl.Find(ctx, bson.M{"pending_sync": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing pending-sync sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []models.TherapySession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("error decoding pending-sync sessions: %w", err)
	}
	return sessions, nil
}

func (repo *MongoBillingRepo) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := repo.paymentColl.FindOne(ctx, bson.M{"id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error fetching payment with id %s: %w", id, err)
	}
	return &p, nil
}

func (repo *MongoBillingRepo) InsertPayment(ctx context.Context, p *models.Payment) error {
	if _, err := repo.paymentColl.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("error inserting payment: %w", err)
	}
	return nil
}

func (repo *MongoBillingRepo) ListPackagePayments(ctx context.Context, packageID string) ([]models.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := repo.paymentColl.Find(ctx, bson.M{"package_id": packageID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing payments of package %s: %w", packageID, err)
	}
	defer cursor.Close(ctx)

	var payments []models.Payment
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("error decoding payments of package %s: %w", packageID, err)
	}
	return payments, nil
}
