package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/beatforge/forge-registry/internal/auth"
)

// permissionRouter mounts the permission middleware behind a stub that injects
// the given permission set, standing in for AuthMiddleware.
func permissionRouter(set *auth.PermissionSet, mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if set != nil {
			c.Set(PermissionsKey, *set)
		}
		c.Next()
	})
	r.Use(mw)
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func sendGet(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRequirePermission_Granted(t *testing.T) {
	set := auth.PermissionSet(auth.DefaultPermissions)
	w := sendGet(permissionRouter(&set, RequirePermission(auth.PermCreateMod)))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for holder of create_mod", w.Code)
	}
}

func TestRequirePermission_Denied(t *testing.T) {
	set := auth.PermissionSet(auth.PermViewSelf)
	w := sendGet(permissionRouter(&set, RequirePermission(auth.PermCreateMod)))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 without create_mod", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"required":"create_mod"`) {
		t.Errorf("body = %s, want the missing permission named", w.Body.String())
	}
}

func TestRequirePermission_NoIdentity(t *testing.T) {
	w := sendGet(permissionRouter(nil, RequirePermission(auth.PermCreateMod)))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without identity in context", w.Code)
	}
}

func TestRequireAnyPermission(t *testing.T) {
	set := auth.PermissionSet(auth.PermEditMod)
	w := sendGet(permissionRouter(&set, RequireAnyPermission(auth.PermEditMod, auth.PermEditOtherMods)))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when one of the permissions is held", w.Code)
	}

	set = auth.PermissionSet(auth.PermViewSelf)
	w = sendGet(permissionRouter(&set, RequireAnyPermission(auth.PermEditMod, auth.PermEditOtherMods)))
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when none of the permissions is held", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Permission set semantics
// ---------------------------------------------------------------------------

func TestDefaultPermissions(t *testing.T) {
	set := auth.PermissionSet(auth.DefaultPermissions)
	for _, p := range []auth.Permission{auth.PermViewSelf, auth.PermEditSelf, auth.PermCreateMod} {
		if !set.Has(p) {
			t.Errorf("default set missing %s", p.Name())
		}
	}
	for _, p := range []auth.Permission{auth.PermApproveMod, auth.PermEditOtherUsers, auth.PermViewOther} {
		if set.Has(p) {
			t.Errorf("default set unexpectedly grants %s", p.Name())
		}
	}
}
