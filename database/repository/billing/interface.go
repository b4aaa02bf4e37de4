package billingRepo

import (
	"context"

	"clinicore/models"
)

// Repository provides access to the billing source-of-truth collections:
// packages, sessions and payments. Every method honors the caller's context,
// so operations join an ambient Mongo transaction when one is present.
type Repository interface {
	GetPackageByID(ctx context.Context, id string) (*models.TherapyPackage, error)
	InsertPackage(ctx context.Context, pkg *models.TherapyPackage) error
	UpdatePackage(ctx context.Context, pkg *models.TherapyPackage) error
	DeletePackage(ctx context.Context, id string) error
	ListPendingSyncPackages(ctx context.Context, limit int) ([]models.TherapyPackage, error)
	ClearPackagePendingSync(ctx context.Context, id string) error

	GetSessionByID(ctx context.Context, id string) (*models.TherapySession, error)
	InsertSession(ctx context.Context, s *models.TherapySession) error
	UpdateSession(ctx context.Context, s *models.TherapySession) error
	DeleteSessionsByPackage(ctx context.Context, packageID string) error
	// ListPackageSessions returns all sessions of a package ordered by
	// (date, time) ascending.
	ListPackageSessions(ctx context.Context, packageID string) ([]models.TherapySession, error)
	// SumPartialAmounts aggregates the authoritative per-session paid sum
	// for a package, excluding canceled sessions.
	SumPartialAmounts(ctx context.Context, packageID string) (float64, error)
	ListPendingSyncSessions(ctx context.Context, limit int) ([]models.TherapySession, error)
	ClearSessionPendingSync(ctx context.Context, id string) error

	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	InsertPayment(ctx context.Context, p *models.Payment) error
	ListPackagePayments(ctx context.Context, packageID string) ([]models.Payment, error)
}
