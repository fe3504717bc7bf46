// Package mods implements the mod catalog endpoints: listing, detail lookup,
// version listing, search, package upload, and the CDN download path.
package mods

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/beatforge/forge-registry/internal/cache"
	"github.com/beatforge/forge-registry/internal/db/models"
	"github.com/beatforge/forge-registry/internal/db/repositories"
	"github.com/beatforge/forge-registry/internal/ingest"
	"github.com/beatforge/forge-registry/internal/search"
	"github.com/beatforge/forge-registry/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler serves the mod catalog endpoints
type Handler struct {
	mods        *repositories.ModRepository
	catalog     *repositories.CatalogRepository
	coordinator *ingest.Coordinator
	indexer     search.Indexer
	blobs       storage.Storage
	cache       *cache.Cache
	maxUpload   int64
}

// NewHandler creates the mod endpoints handler. indexer may be nil when no
// search engine is configured; search then falls back to SQL matching.
func NewHandler(
	mods *repositories.ModRepository,
	catalog *repositories.CatalogRepository,
	coordinator *ingest.Coordinator,
	indexer search.Indexer,
	blobs storage.Storage,
	queryCache *cache.Cache,
	maxUpload int64,
) *Handler {
	return &Handler{
		mods:        mods,
		catalog:     catalog,
		coordinator: coordinator,
		indexer:     indexer,
		blobs:       blobs,
		cache:       queryCache,
		maxUpload:   maxUpload,
	}
}

// listResponse is the paged envelope for mod listings
type listResponse struct {
	Mods   []*models.Mod `json:"mods"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListMods handles GET /api/v1/mods. Supports limit/offset paging and an
// optional game_version filter. Responses are served from the query cache
// when present.
func (h *Handler) ListMods(c *gin.Context) {
	limit, offset := pagination(c)
	gameVersion := c.Query("game_version")

	key := cache.Key("mods", "list", gameVersion, strconv.Itoa(limit), strconv.Itoa(offset))
	var cached listResponse
	if h.cache.GetJSON(c.Request.Context(), key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	mods, total, err := h.mods.ListMods(c.Request.Context(), limit, offset, gameVersion)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list mods"})
		return
	}
	if mods == nil {
		mods = []*models.Mod{}
	}

	resp := listResponse{Mods: mods, Total: total, Limit: limit, Offset: offset}
	h.cache.SetJSON(c.Request.Context(), key, resp)
	c.JSON(http.StatusOK, resp)
}

// GetMod handles GET /api/v1/mods/:ref where ref is a slug or a mod UUID.
// Returns the full detail view with author, category, stats, and versions.
func (h *Handler) GetMod(c *gin.Context) {
	ref := c.Param("ref")

	key := cache.Key("mods", "detail", ref)
	var cached models.ModDetail
	if h.cache.GetJSON(c.Request.Context(), key, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	mod, err := h.resolveMod(c, ref)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load mod"})
		return
	}
	if mod == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Mod not found"})
		return
	}

	detail, err := h.buildDetail(c, mod)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load mod detail"})
		return
	}

	h.cache.SetJSON(c.Request.Context(), key, detail)
	c.JSON(http.StatusOK, detail)
}

// ListVersions handles GET /api/v1/mods/:ref/versions
func (h *Handler) ListVersions(c *gin.Context) {
	mod, err := h.resolveMod(c, c.Param("ref"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load mod"})
		return
	}
	if mod == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Mod not found"})
		return
	}

	versions, err := h.mods.ListVersions(c.Request.Context(), mod.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list versions"})
		return
	}
	if versions == nil {
		versions = []models.Version{}
	}

	c.JSON(http.StatusOK, gin.H{"mod": mod.Slug, "versions": versions})
}

// ListCategories handles GET /api/v1/categories
func (h *Handler) ListCategories(c *gin.Context) {
	key := cache.Key("categories")
	var cached []models.Category
	if h.cache.GetJSON(c.Request.Context(), key, &cached) {
		c.JSON(http.StatusOK, gin.H{"categories": cached})
		return
	}

	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list categories"})
		return
	}

	h.cache.SetJSON(c.Request.Context(), key, categories)
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// ListGameVersions handles GET /api/v1/game-versions
func (h *Handler) ListGameVersions(c *gin.Context) {
	key := cache.Key("game_versions")
	var cached []models.GameVersion
	if h.cache.GetJSON(c.Request.Context(), key, &cached) {
		c.JSON(http.StatusOK, gin.H{"game_versions": cached})
		return
	}

	versions, err := h.catalog.ListGameVersions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list game versions"})
		return
	}

	h.cache.SetJSON(c.Request.Context(), key, versions)
	c.JSON(http.StatusOK, gin.H{"game_versions": versions})
}

// resolveMod looks up a mod by slug first, then by UUID when the ref parses as
// one. Returns (nil, nil) when absent.
func (h *Handler) resolveMod(c *gin.Context, ref string) (*models.Mod, error) {
	mod, err := h.mods.GetModBySlug(c.Request.Context(), ref)
	if err != nil || mod != nil {
		return mod, err
	}

	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		return h.mods.GetModByID(c.Request.Context(), ref)
	}
	return nil, nil
}

// buildDetail assembles the full detail view for a mod
func (h *Handler) buildDetail(c *gin.Context, mod *models.Mod) (*models.ModDetail, error) {
	ctx := c.Request.Context()

	author, err := h.mods.GetModAuthor(ctx, mod.ID)
	if err != nil {
		return nil, err
	}
	downloads, err := h.mods.GetModDownloads(ctx, mod.StatsID)
	if err != nil {
		return nil, err
	}
	versions, err := h.mods.ListVersions(ctx, mod.ID)
	if err != nil {
		return nil, err
	}
	gameVersions, err := h.mods.ListModGameVersions(ctx, mod.ID)
	if err != nil {
		return nil, err
	}
	category, err := h.categoryByID(c, mod.CategoryID)
	if err != nil {
		return nil, err
	}

	detail := &models.ModDetail{
		Mod:          *mod,
		Downloads:    downloads,
		Versions:     versions,
		GameVersions: gameVersions,
	}
	if author != nil {
		detail.Author = *author
	}
	if category != nil {
		detail.Category = *category
	}
	return detail, nil
}

func (h *Handler) categoryByID(c *gin.Context, id string) (*models.Category, error) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i], nil
		}
	}
	return nil, nil
}

// pagination parses limit/offset query params with clamping
func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
