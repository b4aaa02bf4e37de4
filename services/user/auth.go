package user

import (
	"context"
	"errors"
	"time"

	userRepo "clinicore/database/repository/user"
	"clinicore/models"
	"clinicore/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when email/password do not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

const tokenDuration = 24 * time.Hour

// Service handles clinic staff authentication.
type Service interface {
	Authenticate(ctx context.Context, email, password string) (string, *models.User, error)
	Register(ctx context.Context, name, email, password, role, specialty string) (*models.User, error)
}

// DefaultUserService implements Service.
type DefaultUserService struct {
	Repo userRepo.Repository
}

func (s *DefaultUserService) Authenticate(ctx context.Context, email, password string) (string, *models.User, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userRepo.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(u.ID, u.Role, tokenDuration)
	if err != nil {
		return "", nil, err
	}

	u.TokenHash = utils.HashToken(token)
	u.UpdatedAt = time.Now().UTC()
	if err := s.Repo.Update(ctx, u); err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *DefaultUserService) Register(ctx context.Context, name, email, password, role, specialty string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Specialty:    specialty,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Insert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
