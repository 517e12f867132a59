package gate

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse-app/gatehouse/backend/internal/models"
)

// Query and form parameter names understood by the gate.
const (
	TokenParam    = "private_token"
	PreviewParam  = "gate_preview"
	PasswordField = "gate_password"
	NonceField    = "gate_nonce"
	ReturnField   = "gate_return"
)

// RequestInfo is the framework-neutral view of one inbound request. The
// evaluator depends only on this struct, never on the HTTP layer, so the
// whole decision path stays unit-testable.
type RequestInfo struct {
	Path     string
	ClientIP string

	IsCLI       bool // invoked from an operator shell, not real traffic
	IsCron      bool // background job execution
	IsAdmin     bool // admin backend surface
	IsAdminAjax bool // async admin-backend request
	IsLoginPage bool
	IsEditor    bool // live page-editing session
	IsREST      bool

	Authenticated bool
	Roles         []string

	// Private-access material, empty when absent.
	PrivateCookie  string
	QueryToken     string
	PostedPassword string
	PostedNonce    string

	IsPreview bool
}

// FromGin derives RequestInfo from a gin request plus the already-resolved
// authenticated user (nil for anonymous visitors).
func FromGin(c *gin.Context, user *models.User, previewValid bool) RequestInfo {
	path := c.Request.URL.Path

	info := RequestInfo{
		Path:        path,
		ClientIP:    c.ClientIP(),
		IsAdmin:     strings.HasPrefix(path, "/admin"),
		IsREST:      strings.HasPrefix(path, "/api/"),
		IsLoginPage: path == "/login" || path == "/register",
		IsEditor:    c.Query("live_edit") == "1",
		QueryToken:  c.Query(TokenParam),
		IsPreview:   previewValid,
	}
	info.IsAdminAjax = info.IsAdmin && c.GetHeader("X-Requested-With") == "XMLHttpRequest"

	if cookie, err := c.Cookie(CookieName); err == nil {
		info.PrivateCookie = cookie
	}

	if c.Request.Method == "POST" {
		info.PostedPassword = c.PostForm(PasswordField)
		info.PostedNonce = c.PostForm(NonceField)
	}

	if user != nil {
		info.Authenticated = true
		info.Roles = []string{user.Role}
	}

	return info
}

// SanitizeReturnPath only accepts same-site absolute paths, blocking open
// redirects through the access form. Rejected values come back empty;
// protocol-relative ("//host") forms are rejected along with everything that
// does not start with a single "/".
func SanitizeReturnPath(path string) string {
	if len(path) < 1 || path[0] != '/' {
		return ""
	}
	if len(path) > 1 && path[1] == '/' {
		return ""
	}
	return path
}

// HasRole reports whether the request's identity holds the given role.
func (r RequestInfo) HasRole(role string) bool {
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}
