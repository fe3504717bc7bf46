// Package users implements the account endpoints: GitHub OAuth login, the
// current-account view, profile updates, and public user lookups.
package users

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/beatforge/forge-registry/internal/auth"
	"github.com/beatforge/forge-registry/internal/db/models"
	"github.com/beatforge/forge-registry/internal/db/repositories"
	"github.com/beatforge/forge-registry/internal/middleware"
)

// Handler serves the account endpoints
type Handler struct {
	users  *repositories.UserRepository
	mods   *repositories.ModRepository
	github *auth.GitHubClient
	issuer *auth.TokenIssuer
}

// NewHandler creates the account endpoints handler
func NewHandler(users *repositories.UserRepository, mods *repositories.ModRepository, github *auth.GitHubClient, issuer *auth.TokenIssuer) *Handler {
	return &Handler{
		users:  users,
		mods:   mods,
		github: github,
		issuer: issuer,
	}
}

// Login handles POST /api/v1/auth/github?code=...
//
// Exchanges the OAuth authorization code for a GitHub profile, finds or
// creates the matching account, and returns a session token.
func (h *Handler) Login(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing authorization code"})
		return
	}

	profile, err := h.github.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "GitHub code exchange failed"})
		return
	}

	seed := &models.User{
		GitHubID:    profile.ID,
		Username:    profile.Login,
		DisplayName: profile.Name,
		Email:       profile.Email,
		Bio:         profile.Bio,
		Avatar:      profile.AvatarURL,
	}
	user, err := h.users.GetOrCreateUserFromGitHub(c.Request.Context(), seed, int32(auth.DefaultPermissions))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve account"})
		return
	}

	token, err := h.issuer.Generate(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue session token"})
		return
	}

	// Browser sessions read the cookie; API clients take the token from the
	// body. HttpOnly keeps the cookie out of reach of page scripts.
	c.SetCookie("jwt", token, int(h.issuer.Expiry().Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.issuer.Expiry().Seconds()),
		"user":       user.PublicProfile(),
	})
}

// Me handles GET /api/v1/auth/me. Returns the full own account including
// email and the API key.
func (h *Handler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	// The own account is the one place the API key is readable; the user
	// struct itself never serializes it.
	c.JSON(http.StatusOK, gin.H{
		"user":        user,
		"api_key":     user.APIKey,
		"permissions": auth.PermissionSet(user.Permissions).String(),
	})
}

// updateProfileRequest carries the mutable profile fields
type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	Avatar      *string `json:"avatar"`
	Banner      *string `json:"banner"`
}

// UpdateMe handles PATCH /api/v1/users/me
func (h *Handler) UpdateMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed request body"})
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = req.DisplayName
	}
	if req.Bio != nil {
		user.Bio = req.Bio
	}
	if req.Avatar != nil {
		user.Avatar = req.Avatar
	}
	if req.Banner != nil {
		user.Banner = req.Banner
	}

	if err := h.users.UpdateUser(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user.PublicProfile()})
}

// ListUsers handles GET /api/v1/users
func (h *Handler) ListUsers(c *gin.Context) {
	limit, offset := pagination(c)

	users, total, err := h.users.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}

	public := make([]*models.User, 0, len(users))
	for _, u := range users {
		public = append(public, u.PublicProfile())
	}

	c.JSON(http.StatusOK, gin.H{
		"users":  public,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetUser handles GET /api/v1/users/:id. Private fields are included only
// when the caller views their own account or holds the view-other permission.
func (h *Handler) GetUser(c *gin.Context) {
	id := c.Param("id")

	user, err := h.users.GetUserByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	mods, err := h.mods.ListModsByAuthor(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user mods"})
		return
	}
	if mods == nil {
		mods = []*models.Mod{}
	}

	view := user.PublicProfile()
	if caller, ok := middleware.CurrentUser(c); ok {
		if caller.ID == user.ID || auth.PermissionSet(caller.Permissions).Has(auth.PermViewOther) {
			view = user
		}
	}

	c.JSON(http.StatusOK, gin.H{"user": view, "mods": mods})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
