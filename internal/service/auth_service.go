package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/birthday-service/internal/auth"
	"github.com/spec-kit/birthday-service/internal/config"
	"github.com/spec-kit/birthday-service/internal/domain"
	"github.com/spec-kit/birthday-service/internal/repository"
	"github.com/spec-kit/birthday-service/pkg/util"
)

// AuthService handles account registration and login for the HTTP surface.
type AuthService struct {
	accounts repository.AccountRepository
	tokens   *auth.TokenManager
	cfg      config.AuthConfig
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, accounts repository.AccountRepository) *AuthService {
	return &AuthService{
		accounts: accounts,
		tokens:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		cfg:      cfg,
	}
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// Register creates a new account.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return nil, util.NewValidationError("username required and password must be at least 8 characters", nil)
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, util.MapError(err)
	}

	account := &domain.Account{Username: username, PasswordHash: hash}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, util.NewConflict("username already taken", nil)
		}
		return nil, util.MapError(err)
	}
	return account, nil
}

// Login verifies credentials and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, time.Time, *domain.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, nil, util.NewUnauthorized("invalid credentials")
		}
		return "", time.Time{}, nil, util.MapError(err)
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return "", time.Time{}, nil, util.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(account.ID, account.IsAdmin)
	if err != nil {
		return "", time.Time{}, nil, util.MapError(err)
	}
	return token, expiresAt, account, nil
}
