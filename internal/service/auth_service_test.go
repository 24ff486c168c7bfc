package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/birthday-service/internal/config"
	"github.com/spec-kit/birthday-service/internal/repository"
	"github.com/spec-kit/birthday-service/pkg/util"
)

func newAuthService() *AuthService {
	return NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		BcryptCost:            4,
	}, repository.NewMemoryAccountRepository())
}

// TestRegisterAndLogin covers the happy path end to end.
func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	account, err := svc.Register(ctx, "  alice  ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.NotEmpty(t, account.ID)
	assert.NotEqual(t, "correct-horse", account.PasswordHash)

	token, expiresAt, logged, err := svc.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.False(t, expiresAt.IsZero())
	assert.Equal(t, account.ID, logged.ID)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, claims.AccountID)
}

// TestRegister_Validation rejects blank usernames and short passwords.
func TestRegister_Validation(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "   ", "long-enough-pass")
	require.Error(t, err)

	_, err = svc.Register(ctx, "bob", "short")
	require.Error(t, err)
}

// TestRegister_DuplicateUsername maps the uniqueness violation to a
// conflict.
func TestRegister_DuplicateUsername(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "battery-staple")
	require.Error(t, err)
	assert.True(t, util.IsConflict(err))
}

// TestLogin_InvalidCredentials never reveals which part was wrong.
func TestLogin_InvalidCredentials(t *testing.T) {
	svc := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "alice", "wrong-password")
	require.Error(t, err)

	_, _, _, err = svc.Login(ctx, "nobody", "correct-horse")
	require.Error(t, err)
}
