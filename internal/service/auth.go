package service

import (
	"context"
	"errors"

	"github.com/atinyakov/LinkKeeper/internal/models"
)

// ErrUnknownToken is returned when a session token is not registered.
var ErrUnknownToken = errors.New("service: unknown token")

// AuthRepository defines the persistence operations needed by the
// AuthService.
type AuthRepository interface {
	// GetSession resolves a token to its user and role. found is false
	// for unregistered tokens.
	GetSession(ctx context.Context, token string) (userID string, role models.Role, found bool, err error)
	// RegisterSession stores a token with its user and role.
	RegisterSession(ctx context.Context, token, userID string, role models.Role) error
}

// AuthService resolves session tokens to roles for the sync API.
type AuthService struct {
	repo AuthRepository
}

// NewAuthService constructs an AuthService with the provided repository.
func NewAuthService(repo AuthRepository) *AuthService {
	return &AuthService{repo: repo}
}

// Resolve maps a token to its user and role.
func (s *AuthService) Resolve(ctx context.Context, token string) (string, models.Role, error) {
	userID, role, found, err := s.repo.GetSession(ctx, token)
	if err != nil {
		return "", "", err
	}
	if !found {
		return "", "", ErrUnknownToken
	}
	return userID, role, nil
}

// Register stores a new session token.
func (s *AuthService) Register(ctx context.Context, token, userID string, role models.Role) error {
	return s.repo.RegisterSession(ctx, token, userID, role)
}
