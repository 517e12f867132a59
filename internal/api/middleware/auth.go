package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse-app/gatehouse/backend/internal/models"
	"github.com/gatehouse-app/gatehouse/backend/internal/services"
)

const userContextKey = "currentUser"

// SessionCookie holds the admin session token as an alternative to the
// Authorization header.
const SessionCookie = "gatehouse_session"

// Auth requires a valid session token and stores the resolved user in the
// request context.
func Auth(authSvc *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := ResolveUser(c, authSvc)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// RequireAdmin aborts unless the authenticated user holds the admin role.
// Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

// ResolveUser extracts and validates the session token from the request,
// returning nil for anonymous callers. Unlike Auth it never aborts, so the
// gate middleware can use it on public routes.
func ResolveUser(c *gin.Context, authSvc *services.AuthService) *models.User {
	token := ""
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	} else if cookie, err := c.Cookie(SessionCookie); err == nil {
		token = cookie
	}
	if token == "" {
		return nil
	}

	user, err := authSvc.ValidateToken(token)
	if err != nil {
		return nil
	}
	return user
}

// CurrentUser returns the user stored by Auth, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
