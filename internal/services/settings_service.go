package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/gatehouse-app/gatehouse/backend/internal/models"
)

var (
	ErrInvalidMode      = errors.New("invalid gate mode")
	ErrPasswordTooShort = errors.New("private password must be at least 4 characters")
)

// SettingsService owns the singleton gate configuration row, including the
// private-access secrets that live on it.
type SettingsService struct {
	db *gorm.DB
}

// NewSettingsService returns a SettingsService using the provided DB.
func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Get returns the gate settings, creating a sane default row on first use.
func (s *SettingsService) Get() (*models.GateSettings, error) {
	var settings models.GateSettings
	err := s.db.First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.GateSettings{
			UUID:         uuid.NewString(),
			Mode:         models.ModeComingSoon,
			ExcludeAdmin: true,
		}
		settings.Sanitize()
		if err := s.db.Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update sanitizes and persists new gate settings. The private secrets are
// never writable through this path; they only change via the explicit token
// and password operations below.
func (s *SettingsService) Update(in *models.GateSettings) (*models.GateSettings, error) {
	if in.Mode != models.ModeComingSoon && in.Mode != models.ModeMaintenance && in.Mode != "" {
		return nil, ErrInvalidMode
	}

	existing, err := s.Get()
	if err != nil {
		return nil, err
	}

	existing.Enabled = in.Enabled
	existing.Mode = in.Mode
	existing.ScheduleEnabled = in.ScheduleEnabled
	existing.ScheduleWindows = in.ScheduleWindows
	existing.RecurringEnabled = in.RecurringEnabled
	existing.RecurringRules = in.RecurringRules
	existing.WhitelistIPs = in.WhitelistIPs
	existing.WhitelistPaths = in.WhitelistPaths
	existing.AllowedRoles = in.AllowedRoles
	existing.AllowAdminAjax = in.AllowAdminAjax
	existing.AllowRest = in.AllowRest
	existing.ExcludeAdmin = in.ExcludeAdmin
	existing.EditorBypass = in.EditorBypass

	existing.Sanitize()
	if err := s.db.Save(existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

// GeneratePrivateToken rotates the private bearer token and returns the new
// plaintext value. Rotation invalidates all outstanding signed cookies.
func (s *SettingsService) GeneratePrivateToken() (string, error) {
	tokenBytes := make([]byte, 24)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	settings, err := s.Get()
	if err != nil {
		return "", err
	}
	settings.PrivateToken = token
	if err := s.db.Save(settings).Error; err != nil {
		return "", err
	}
	return token, nil
}

// RevokePrivateToken clears the bearer token, invalidating it and every
// cookie minted while it was set.
func (s *SettingsService) RevokePrivateToken() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.PrivateToken = ""
	return s.db.Save(settings).Error
}

// SetPrivatePassword stores the bcrypt hash of a new private password.
func (s *SettingsService) SetPrivatePassword(password string) error {
	if len(password) < 4 {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.PrivatePasswordHash = string(hash)
	return s.db.Save(settings).Error
}

// RevokePrivatePassword clears the private password hash.
func (s *SettingsService) RevokePrivatePassword() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.PrivatePasswordHash = ""
	return s.db.Save(settings).Error
}
