package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gatehouse-app/gatehouse/backend/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.GateSettings{}, &models.User{}))
	return db
}

func TestSettingsService_Get(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t))

	t.Run("creates defaults on first use", func(t *testing.T) {
		settings, err := svc.Get()
		require.NoError(t, err)
		assert.False(t, settings.Enabled)
		assert.Equal(t, models.ModeComingSoon, settings.Mode)
		assert.True(t, settings.ExcludeAdmin)
		assert.NotEmpty(t, settings.UUID)
		assert.Equal(t, "[]", settings.ScheduleWindows)
	})

	t.Run("subsequent reads return the same row", func(t *testing.T) {
		first, err := svc.Get()
		require.NoError(t, err)
		second, err := svc.Get()
		require.NoError(t, err)
		assert.Equal(t, first.UUID, second.UUID)
	})
}

func TestSettingsService_Update(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t))

	t.Run("rejects unknown modes", func(t *testing.T) {
		_, err := svc.Update(&models.GateSettings{Mode: "lockdown"})
		assert.ErrorIs(t, err, ErrInvalidMode)
	})

	t.Run("persists sanitized fields", func(t *testing.T) {
		updated, err := svc.Update(&models.GateSettings{
			Enabled:      true,
			Mode:         models.ModeMaintenance,
			AllowRest:    true,
			WhitelistIPs: `[" 10.0.0.1 ", ""]`,
		})
		require.NoError(t, err)
		assert.True(t, updated.Enabled)
		assert.Equal(t, models.ModeMaintenance, updated.Mode)
		assert.Equal(t, []string{"10.0.0.1"}, updated.IPList())

		reread, err := svc.Get()
		require.NoError(t, err)
		assert.True(t, reread.Enabled)
		assert.Equal(t, models.ModeMaintenance, reread.Mode)
	})

	t.Run("never touches the private secrets", func(t *testing.T) {
		token, err := svc.GeneratePrivateToken()
		require.NoError(t, err)

		_, err = svc.Update(&models.GateSettings{
			Mode:                models.ModeComingSoon,
			PrivateToken:        "attacker-controlled",
			PrivatePasswordHash: "also-attacker-controlled",
		})
		require.NoError(t, err)

		settings, err := svc.Get()
		require.NoError(t, err)
		assert.Equal(t, token, settings.PrivateToken)
		assert.Empty(t, settings.PrivatePasswordHash)
	})
}

func TestSettingsService_PrivateToken(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t))

	token, err := svc.GeneratePrivateToken()
	require.NoError(t, err)
	assert.Len(t, token, 48)

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, token, settings.PrivateToken)

	t.Run("rotation replaces the stored token", func(t *testing.T) {
		rotated, err := svc.GeneratePrivateToken()
		require.NoError(t, err)
		assert.NotEqual(t, token, rotated)
	})

	t.Run("revoke clears it", func(t *testing.T) {
		require.NoError(t, svc.RevokePrivateToken())
		settings, err := svc.Get()
		require.NoError(t, err)
		assert.Empty(t, settings.PrivateToken)
	})
}

func TestSettingsService_PrivatePassword(t *testing.T) {
	svc := NewSettingsService(setupTestDB(t))

	t.Run("rejects short passwords", func(t *testing.T) {
		assert.ErrorIs(t, svc.SetPrivatePassword("abc"), ErrPasswordTooShort)
	})

	t.Run("stores a bcrypt hash, not the plaintext", func(t *testing.T) {
		require.NoError(t, svc.SetPrivatePassword("open sesame"))
		settings, err := svc.Get()
		require.NoError(t, err)
		assert.NotEqual(t, "open sesame", settings.PrivatePasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(settings.PrivatePasswordHash), []byte("open sesame")))
	})

	t.Run("revoke clears the hash", func(t *testing.T) {
		require.NoError(t, svc.RevokePrivatePassword())
		settings, err := svc.Get()
		require.NoError(t, err)
		assert.Empty(t, settings.PrivatePasswordHash)
	})
}
