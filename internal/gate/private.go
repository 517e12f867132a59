package gate

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/backend/internal/models"
)

// CookieName carries the signed private-access grant.
const CookieName = "gatehouse_private_access"

// CookieTTL is how long an issued private-access cookie stays valid on the
// client. The server side can cut it short earlier by rotating secrets.
const CookieTTL = 7 * 24 * time.Hour

// nonceLifetime bounds how long an issued access-form nonce verifies. Nonces
// from the previous tick are still accepted so a form rendered just before a
// tick boundary keeps working.
const nonceLifetime = 12 * time.Hour

const nonceAction = "gate_private_access"

// PrivateGuard validates the three private-access mechanisms: signed cookie,
// bearer token in the URL and the password form. All comparisons against
// stored secrets are constant time.
type PrivateGuard struct {
	secret  []byte
	enabled bool
}

// NewPrivateGuard builds a guard keyed with the site secret. enabled reflects
// the enhanced-tier entitlement; when false every check reports no access.
func NewPrivateGuard(secret string, enabled bool) *PrivateGuard {
	return &PrivateGuard{secret: []byte(secret), enabled: enabled}
}

// Enabled reports whether private access is available at all.
func (g *PrivateGuard) Enabled() bool { return g.enabled }

// CookieValue computes the signed cookie for the current secrets. The MAC
// covers both the password hash and the token, so rotating either one
// invalidates every outstanding cookie without server-side state.
func (g *PrivateGuard) CookieValue(s *models.GateSettings) string {
	return g.sign(fmt.Sprintf("private_access|%s|%s", s.PrivatePasswordHash, s.PrivateToken))
}

// ValidCookie checks a presented cookie value against the current secrets.
func (g *PrivateGuard) ValidCookie(s *models.GateSettings, raw string) bool {
	if !g.enabled || raw == "" {
		return false
	}
	if s.PrivatePasswordHash == "" && s.PrivateToken == "" {
		return false
	}
	return hmac.Equal([]byte(raw), []byte(g.CookieValue(s)))
}

// ValidToken checks a URL bearer token against the stored token.
func (g *PrivateGuard) ValidToken(s *models.GateSettings, token string) bool {
	if !g.enabled || token == "" || s.PrivateToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.PrivateToken)) == 1
}

// VerifyPassword checks a submitted plaintext password against the stored
// bcrypt hash.
func (g *PrivateGuard) VerifyPassword(s *models.GateSettings, password string) bool {
	if !g.enabled || password == "" || s.PrivatePasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.PrivatePasswordHash), []byte(password)) == nil
}

// IssueNonce returns the CSRF nonce embedded into the access form.
func (g *PrivateGuard) IssueNonce(now time.Time) string {
	return g.nonceFor(nonceTick(now))
}

// VerifyNonce accepts nonces from the current and the previous tick.
func (g *PrivateGuard) VerifyNonce(nonce string, now time.Time) bool {
	if nonce == "" {
		return false
	}
	tick := nonceTick(now)
	if hmac.Equal([]byte(nonce), []byte(g.nonceFor(tick))) {
		return true
	}
	return hmac.Equal([]byte(nonce), []byte(g.nonceFor(tick-1)))
}

func (g *PrivateGuard) nonceFor(tick int64) string {
	return g.sign(fmt.Sprintf("%s|%d", nonceAction, tick))[:12]
}

func nonceTick(now time.Time) int64 {
	return now.Unix() / int64(nonceLifetime.Seconds()/2)
}

func (g *PrivateGuard) sign(material string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(material))
	return hex.EncodeToString(mac.Sum(nil))
}
