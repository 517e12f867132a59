package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "auth-test-secret"

func TestAuthService_Register(t *testing.T) {
	svc := NewAuthService(setupTestDB(t), testSecret)

	t.Run("creates a user with a hashed password", func(t *testing.T) {
		user, err := svc.Register("op@example.com", "hunter22", "Operator", "admin")
		require.NoError(t, err)
		assert.Equal(t, "op@example.com", user.Email)
		assert.Equal(t, "admin", user.Role)
		assert.True(t, user.Enabled)
		assert.NotEqual(t, "hunter22", user.PasswordHash)
		assert.True(t, user.CheckPassword("hunter22"))
	})

	t.Run("defaults the role to editor", func(t *testing.T) {
		user, err := svc.Register("ed@example.com", "hunter22", "Ed", "")
		require.NoError(t, err)
		assert.Equal(t, "editor", user.Role)
		assert.False(t, user.IsAdmin())
	})

	t.Run("rejects duplicate emails", func(t *testing.T) {
		_, err := svc.Register("op@example.com", "other", "Dup", "admin")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestAuthService_Login(t *testing.T) {
	svc := NewAuthService(setupTestDB(t), testSecret)
	_, err := svc.Register("op@example.com", "hunter22", "Operator", "admin")
	require.NoError(t, err)

	t.Run("valid credentials yield a token", func(t *testing.T) {
		token, user, err := svc.Login("op@example.com", "hunter22")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.NotNil(t, user.LastLogin)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := svc.Login("op@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := svc.Login("ghost@example.com", "hunter22")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthService_ValidateToken(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuthService(db, testSecret)
	registered, err := svc.Register("op@example.com", "hunter22", "Operator", "admin")
	require.NoError(t, err)

	token, _, err := svc.Login("op@example.com", "hunter22")
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		user, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, registered.UUID, user.UUID)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token signed elsewhere", func(t *testing.T) {
		other := NewAuthService(db, "different-secret")
		foreign, _, err := other.Login("op@example.com", "hunter22")
		require.NoError(t, err)
		_, err = svc.ValidateToken(foreign)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("disabled user fails validation and login", func(t *testing.T) {
		require.NoError(t, db.Model(registered).Update("enabled", false).Error)
		_, err := svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, _, err = svc.Login("op@example.com", "hunter22")
		assert.ErrorIs(t, err, ErrUserDisabled)
	})
}
