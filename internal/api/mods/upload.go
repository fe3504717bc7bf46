// upload.go implements POST /api/v1/mods: accepts a .forgemod package as a
// multipart upload, parses and validates it, and hands it to the ingestion
// coordinator. The handler only translates between HTTP and the coordinator's
// error taxonomy; all registry semantics live in internal/ingest.
package mods

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beatforge/forge-registry/internal/forgemod"
	"github.com/beatforge/forge-registry/internal/ingest"
	"github.com/beatforge/forge-registry/internal/middleware"
	"github.com/beatforge/forge-registry/internal/telemetry"
)

// Upload handles POST /api/v1/mods. Requires authentication and the
// create-mod permission, both enforced by middleware before this runs.
func (h *Handler) Upload(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	file, _, err := c.Request.FormFile("package")
	if err != nil {
		telemetry.ModUploadsTotal.WithLabelValues("validation").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing package file (multipart field 'package')"})
		return
	}
	defer file.Close()

	pkg, err := forgemod.Parse(file, h.maxUpload)
	if err != nil {
		telemetry.ModUploadsTotal.WithLabelValues("validation").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	result, err := h.coordinator.Publish(c.Request.Context(), user.ID, pkg)
	if err != nil {
		kind := ingest.ErrKind(err)
		telemetry.ModUploadsTotal.WithLabelValues(kind.String()).Inc()
		switch kind {
		case ingest.KindValidation:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case ingest.KindConflict:
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case ingest.KindNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case ingest.KindUnauthorized:
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish version"})
		}
		return
	}

	telemetry.ModUploadsTotal.WithLabelValues("created").Inc()

	c.JSON(http.StatusCreated, gin.H{
		"mod":         result.Mod,
		"version":     result.Version,
		"mod_created": result.ModCreated,
	})
}
