package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse-app/gatehouse/backend/internal/models"
)

func TestPrivateGuard_Cookie(t *testing.T) {
	guard := NewPrivateGuard(testSecret, true)
	s := &models.GateSettings{PrivateToken: "tok-abc", PrivatePasswordHash: "$2a$fakehash"}

	t.Run("issued cookie verifies", func(t *testing.T) {
		assert.True(t, guard.ValidCookie(s, guard.CookieValue(s)))
	})

	t.Run("tampered cookie fails", func(t *testing.T) {
		assert.False(t, guard.ValidCookie(s, guard.CookieValue(s)+"0"))
		assert.False(t, guard.ValidCookie(s, ""))
	})

	t.Run("rotating the token invalidates outstanding cookies", func(t *testing.T) {
		old := guard.CookieValue(s)
		rotated := &models.GateSettings{PrivateToken: "tok-def", PrivatePasswordHash: s.PrivatePasswordHash}
		assert.False(t, guard.ValidCookie(rotated, old))
	})

	t.Run("rotating the password invalidates outstanding cookies", func(t *testing.T) {
		old := guard.CookieValue(s)
		rotated := &models.GateSettings{PrivateToken: s.PrivateToken, PrivatePasswordHash: "$2a$otherhash"}
		assert.False(t, guard.ValidCookie(rotated, old))
	})

	t.Run("no secrets configured means no cookie is valid", func(t *testing.T) {
		empty := &models.GateSettings{}
		assert.False(t, guard.ValidCookie(empty, guard.CookieValue(empty)))
	})

	t.Run("different site secrets produce different cookies", func(t *testing.T) {
		other := NewPrivateGuard("another-secret", true)
		assert.False(t, other.ValidCookie(s, guard.CookieValue(s)))
	})
}

func TestPrivateGuard_Token(t *testing.T) {
	guard := NewPrivateGuard(testSecret, true)
	s := &models.GateSettings{PrivateToken: "tok-abc"}

	assert.True(t, guard.ValidToken(s, "tok-abc"))
	assert.False(t, guard.ValidToken(s, "tok-abd"))
	assert.False(t, guard.ValidToken(s, ""))
	assert.False(t, guard.ValidToken(&models.GateSettings{}, "tok-abc"))

	disabled := NewPrivateGuard(testSecret, false)
	assert.False(t, disabled.ValidToken(s, "tok-abc"))
}

func TestPrivateGuard_Password(t *testing.T) {
	guard := NewPrivateGuard(testSecret, true)

	hash, err := bcrypt.GenerateFromPassword([]byte("open sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	s := &models.GateSettings{PrivatePasswordHash: string(hash)}

	assert.True(t, guard.VerifyPassword(s, "open sesame"))
	assert.False(t, guard.VerifyPassword(s, "shut sesame"))
	assert.False(t, guard.VerifyPassword(s, ""))
	assert.False(t, guard.VerifyPassword(&models.GateSettings{}, "open sesame"))
}

func TestPrivateGuard_Nonce(t *testing.T) {
	guard := NewPrivateGuard(testSecret, true)
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	t.Run("fresh nonce verifies", func(t *testing.T) {
		assert.True(t, guard.VerifyNonce(guard.IssueNonce(now), now))
	})

	t.Run("previous tick still verifies", func(t *testing.T) {
		earlier := guard.IssueNonce(now.Add(-3 * time.Hour))
		assert.True(t, guard.VerifyNonce(earlier, now))
	})

	t.Run("expired nonce fails", func(t *testing.T) {
		stale := guard.IssueNonce(now.Add(-25 * time.Hour))
		assert.False(t, guard.VerifyNonce(stale, now))
	})

	t.Run("empty and forged nonces fail", func(t *testing.T) {
		assert.False(t, guard.VerifyNonce("", now))
		assert.False(t, guard.VerifyNonce("abcdef012345", now))
	})

	t.Run("nonce length is stable", func(t *testing.T) {
		assert.Len(t, guard.IssueNonce(now), 12)
	})
}

func TestPreviewSigner(t *testing.T) {
	signer := NewPreviewSigner(testSecret)

	t.Run("issued token verifies", func(t *testing.T) {
		tok, err := signer.Issue(time.Now())
		require.NoError(t, err)
		assert.True(t, signer.Verify(tok))
	})

	t.Run("expired token fails", func(t *testing.T) {
		tok, err := signer.Issue(time.Now().Add(-2 * time.Hour))
		require.NoError(t, err)
		assert.False(t, signer.Verify(tok))
	})

	t.Run("garbage and empty tokens fail", func(t *testing.T) {
		assert.False(t, signer.Verify(""))
		assert.False(t, signer.Verify("not.a.jwt"))
	})

	t.Run("token signed with a different secret fails", func(t *testing.T) {
		other := NewPreviewSigner("another-secret")
		tok, err := other.Issue(time.Now())
		require.NoError(t, err)
		assert.False(t, signer.Verify(tok))
	})
}
