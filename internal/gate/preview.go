package gate

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const previewSubject = "gate_preview"

// PreviewTTL is how long an issued preview link stays usable.
const PreviewTTL = time.Hour

// PreviewSigner issues and verifies the signed tokens that let an operator
// view the gate page regardless of gate-active state. Preview requests always
// render the gate with status 200 and are never tallied in analytics.
type PreviewSigner struct {
	secret []byte
}

// NewPreviewSigner builds a signer keyed with the site secret.
func NewPreviewSigner(secret string) *PreviewSigner {
	return &PreviewSigner{secret: []byte(secret)}
}

// Issue returns a signed preview token valid for PreviewTTL.
func (p *PreviewSigner) Issue(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   previewSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(PreviewTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Verify reports whether the token is a currently-valid preview grant.
// Malformed or expired tokens simply fail closed.
func (p *PreviewSigner) Verify(raw string) bool {
	if raw == "" {
		return false
	}
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid {
		return false
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	return ok && claims.Subject == previewSubject
}
