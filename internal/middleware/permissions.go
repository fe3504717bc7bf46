// permissions.go enforces the permission bitset at the API boundary. Handlers
// behind RequirePermission can assume the check already happened and never
// re-derive authority from raw bits.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beatforge/forge-registry/internal/auth"
)

// RequirePermission aborts with 403 unless the authenticated user holds the
// given permission. Must run after AuthMiddleware.
func RequirePermission(perm auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, ok := permissionsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		if !perms.Has(perm) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":    "Insufficient permissions",
				"required": perm.Name(),
			})
			return
		}

		c.Next()
	}
}

// RequireAnyPermission aborts with 403 unless the user holds at least one of
// the given permissions.
func RequireAnyPermission(perms ...auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		set, ok := permissionsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		if !set.HasAny(perms...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		c.Next()
	}
}

func permissionsFromContext(c *gin.Context) (auth.PermissionSet, bool) {
	value, exists := c.Get(PermissionsKey)
	if !exists {
		return 0, false
	}
	set, ok := value.(auth.PermissionSet)
	return set, ok
}
