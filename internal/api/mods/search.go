// search.go implements GET /api/v1/mods/search. The search engine handles
// relevance ranking and category filtering when configured; without one the
// endpoint degrades to SQL ILIKE matching so discovery keeps working.
package mods

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beatforge/forge-registry/internal/db/models"
	"github.com/beatforge/forge-registry/internal/search"
)

// allowed sort expressions, mirroring the index's sortable attributes
var allowedSorts = map[string]bool{
	"stats.downloads:asc":  true,
	"stats.downloads:desc": true,
	"created_at:asc":       true,
	"created_at:desc":      true,
	"updated_at:asc":       true,
	"updated_at:desc":      true,
}

// SearchMods handles GET /api/v1/mods/search
func (h *Handler) SearchMods(c *gin.Context) {
	q := c.Query("q")
	category := c.Query("category")
	sort := c.Query("sort")
	limit, offset := pagination(c)

	if sort != "" && !allowedSorts[sort] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported sort expression"})
		return
	}

	if h.indexer == nil {
		h.searchFallback(c, q, category, limit, offset)
		return
	}

	result, err := h.indexer.Search(c.Request.Context(), search.Query{
		Text:     q,
		Category: category,
		Sort:     sort,
		Limit:    int64(limit),
		Offset:   int64(offset),
	})
	if err != nil {
		// Engine down: degrade to SQL rather than failing discovery.
		h.searchFallback(c, q, category, limit, offset)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hits":   result.Hits,
		"total":  result.Total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) searchFallback(c *gin.Context, q, category string, limit, offset int) {
	mods, err := h.mods.SearchModsLike(c.Request.Context(), q, category, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}
	if mods == nil {
		mods = []*models.Mod{}
	}

	c.JSON(http.StatusOK, gin.H{
		"hits":   mods,
		"total":  len(mods),
		"limit":  limit,
		"offset": offset,
	})
}
