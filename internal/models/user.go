package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents an operator account with role-based gate bypass.
// Roles also feed the gate's allowed-role bypass rule.
type User struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	UUID         string `json:"uuid" gorm:"uniqueIndex"`
	Email        string `json:"email" gorm:"uniqueIndex"`
	PasswordHash string `json:"-"` // Never serialize password hash
	Name         string `json:"name"`
	Role         string `json:"role" gorm:"default:'editor'"` // "admin", "editor", "viewer"
	Enabled      bool   `json:"enabled" gorm:"default:true"`

	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SetPassword hashes and sets the user's password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword compares the provided password with the stored hash.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// IsAdmin reports whether the user holds the site-owner role.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
