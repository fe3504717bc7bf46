// Package middleware provides Gin HTTP middleware for authentication,
// authorization, rate limiting, request IDs, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	RequestID → Metrics → Auth → RateLimit → Permission → Handler
//
// Auth runs before rate limiting on the API groups so authenticated clients
// are limited per user rather than per source address. The login endpoint
// carries only the stricter anonymous limiter, since no identity exists yet.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/beatforge/forge-registry/internal/auth"
	"github.com/beatforge/forge-registry/internal/db/models"
	"github.com/beatforge/forge-registry/internal/db/repositories"
)

// Context keys set by the auth middleware.
const (
	UserKey        = "user"
	UserIDKey      = "user_id"
	PermissionsKey = "permissions"
	AuthMethodKey  = "auth_method"
)

// AuthMiddleware validates authentication (JWT session token or API key)
func AuthMiddleware(issuer *auth.TokenIssuer, userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed authorization header",
			})
			return
		}

		user, status := resolveUser(c, issuer, userRepo, token)
		if user == nil {
			if status == http.StatusInternalServerError {
				c.AbortWithStatusJSON(status, gin.H{"error": "Authentication failed"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			}
			return
		}

		c.Next()
	}
}

// OptionalAuthMiddleware resolves credentials when present but never aborts.
// Endpoints that personalize responses for signed-in users read the context
// keys and fall back to anonymous behaviour when they are absent.
func OptionalAuthMiddleware(issuer *auth.TokenIssuer, userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			resolveUser(c, issuer, userRepo, token)
		}
		c.Next()
	}
}

// resolveUser authenticates a bearer token, sets the identity context keys on
// success, and returns the user. JWT validation is attempted first because it
// is stateless; API key validation always costs a DB query.
func resolveUser(c *gin.Context, issuer *auth.TokenIssuer, userRepo *repositories.UserRepository, token string) (*models.User, int) {
	if claims, err := issuer.Validate(token); err == nil {
		user, err := userRepo.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			return nil, http.StatusInternalServerError
		}
		if user == nil {
			return nil, http.StatusUnauthorized
		}
		setIdentity(c, user, "jwt")
		return user, http.StatusOK
	}

	user, err := userRepo.GetUserByAPIKey(c.Request.Context(), token)
	if err != nil {
		return nil, http.StatusInternalServerError
	}
	if user == nil {
		return nil, http.StatusUnauthorized
	}
	setIdentity(c, user, "api_key")
	return user, http.StatusOK
}

func setIdentity(c *gin.Context, user *models.User, method string) {
	c.Set(UserKey, user)
	c.Set(UserIDKey, user.ID)
	c.Set(PermissionsKey, auth.PermissionSet(user.Permissions))
	c.Set(AuthMethodKey, method)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// CurrentUser returns the authenticated user from the request context.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(UserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
