package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse-app/gatehouse/backend/internal/analytics"
	"github.com/gatehouse-app/gatehouse/backend/internal/gate"
	"github.com/gatehouse-app/gatehouse/backend/internal/models"
	"github.com/gatehouse-app/gatehouse/backend/internal/services"
)

// GateHandler exposes the admin surface for gate configuration, private
// access secrets and analytics.
type GateHandler struct {
	settingsSvc *services.SettingsService
	notifySvc   *services.NotifyService
	aggregator  *analytics.Aggregator
	preview     *gate.PreviewSigner
}

func NewGateHandler(settingsSvc *services.SettingsService, notifySvc *services.NotifyService, aggregator *analytics.Aggregator, preview *gate.PreviewSigner) *GateHandler {
	return &GateHandler{
		settingsSvc: settingsSvc,
		notifySvc:   notifySvc,
		aggregator:  aggregator,
		preview:     preview,
	}
}

// GetSettings returns the current gate settings.
func (h *GateHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsSvc.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings sanitizes and saves gate settings, announcing gate toggles
// to the configured notification targets.
func (h *GateHandler) UpdateSettings(c *gin.Context) {
	previous, err := h.settingsSvc.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	wasEnabled := previous.Enabled

	var req models.GateSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.settingsSvc.Update(&req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidMode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}

	if updated.Enabled != wasEnabled {
		h.notifySvc.GateToggled(updated.Enabled, updated.Mode)
	}

	c.JSON(http.StatusOK, updated)
}

// GenerateToken rotates the private bearer token. The plaintext token is
// only ever returned here, once.
func (h *GateHandler) GenerateToken(c *gin.Context) {
	token, err := h.settingsSvc.GeneratePrivateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":       token,
		"example_url": fmt.Sprintf("/?%s=%s", gate.TokenParam, token),
	})
}

// RevokeToken clears the private bearer token.
func (h *GateHandler) RevokeToken(c *gin.Context) {
	if err := h.settingsSvc.RevokePrivateToken(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

type setPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// SetPassword stores a new private access password.
func (h *GateHandler) SetPassword(c *gin.Context) {
	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}
	if err := h.settingsSvc.SetPrivatePassword(req.Password); err != nil {
		if errors.Is(err, services.ErrPasswordTooShort) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password set"})
}

// RevokePassword clears the private access password.
func (h *GateHandler) RevokePassword(c *gin.Context) {
	if err := h.settingsSvc.RevokePrivatePassword(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

// GetAnalytics returns the assembled analytics overview.
func (h *GateHandler) GetAnalytics(c *gin.Context) {
	overview, err := h.aggregator.GetOverview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analytics"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

// ResetAnalytics wipes all analytics state.
func (h *GateHandler) ResetAnalytics(c *gin.Context) {
	if err := h.aggregator.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset analytics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// PreviewLink issues a signed, short-lived URL that renders the gate page
// regardless of gate-active state.
func (h *GateHandler) PreviewLink(c *gin.Context) {
	token, err := h.preview.Issue(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign preview link"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":        fmt.Sprintf("/?%s=%s", gate.PreviewParam, token),
		"expires_in": int(gate.PreviewTTL.Seconds()),
	})
}
