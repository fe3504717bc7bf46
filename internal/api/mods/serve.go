// serve.go implements the CDN download endpoints:
//
//	GET /cdn/:ref        serves the full .forgemod package
//	GET /cdn/:ref/:type  serves an explicit download type ("package" or "dll")
//
// The ref is "{slug}@{version}". Serving the bare dll decodes the stored
// package and streams only its artifact entry. Every served download bumps the
// version and mod download counters.
package mods

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/beatforge/forge-registry/internal/db/models"
	"github.com/beatforge/forge-registry/internal/forgemod"
	"github.com/beatforge/forge-registry/internal/ingest"
	"github.com/beatforge/forge-registry/internal/telemetry"
)

// Download types accepted by the CDN endpoint.
const (
	downloadTypePackage = "package"
	downloadTypeDLL     = "dll"
)

// Download handles GET /cdn/:ref and GET /cdn/:ref/:type
func (h *Handler) Download(c *gin.Context) {
	slug, versionStr, ok := splitRef(c.Param("ref"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reference must be slug@version"})
		return
	}

	downloadType := c.Param("type")
	if downloadType == "" {
		downloadType = downloadTypePackage
	}
	if downloadType != downloadTypePackage && downloadType != downloadTypeDLL {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Download type must be 'package' or 'dll'"})
		return
	}

	mod, version, status := h.lookupVersion(c, slug, versionStr)
	if mod == nil {
		c.JSON(status, gin.H{"error": "Version not found"})
		return
	}

	reader, err := h.blobs.Download(c.Request.Context(), ingest.BlobPath(mod.ID, version.ID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Package blob not found"})
		return
	}
	defer reader.Close()

	// Counter drift is preferable to failing the download.
	_ = h.mods.IncrementDownloadCounters(c.Request.Context(), version.ID)
	telemetry.ModDownloadsTotal.WithLabelValues(downloadType).Inc()

	if downloadType == downloadTypeDLL {
		h.serveArtifact(c, slug, versionStr, reader)
		return
	}

	filename := fmt.Sprintf("%s-v%s.forgemod", slug, versionStr)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Checksum-SHA256", version.ArtifactHash)

	// Local storage hands back an *os.File; serving through http.ServeContent
	// gives Range support for resumable downloads.
	if seeker, ok := reader.(io.ReadSeeker); ok {
		http.ServeContent(c.Writer, c.Request, filename, version.CreatedAt, seeker)
		return
	}

	c.Header("Content-Type", "application/gzip")
	if _, err := io.Copy(c.Writer, reader); err != nil {
		c.Abort()
	}
}

// serveArtifact decodes the stored package and streams only the artifact entry
func (h *Handler) serveArtifact(c *gin.Context, slug, versionStr string, reader io.Reader) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read package"})
		return
	}

	name, data, err := forgemod.ExtractArtifact(raw)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Stored package is unreadable"})
		return
	}

	filename := fmt.Sprintf("%s-v%s.dll", slug, versionStr)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Artifact-Name", name)

	http.ServeContent(c.Writer, c.Request, filename, time.Time{}, bytes.NewReader(data))
}

// lookupVersion resolves the mod and version rows for a CDN ref. Returns
// (nil, nil, status) on failure with the status to report.
func (h *Handler) lookupVersion(c *gin.Context, slug, versionStr string) (*models.Mod, *models.Version, int) {
	mod, err := h.mods.GetModBySlug(c.Request.Context(), slug)
	if err != nil {
		return nil, nil, http.StatusInternalServerError
	}
	if mod == nil {
		return nil, nil, http.StatusNotFound
	}

	version, err := h.mods.GetVersion(c.Request.Context(), mod.ID, versionStr)
	if err != nil {
		return nil, nil, http.StatusInternalServerError
	}
	if version == nil {
		return nil, nil, http.StatusNotFound
	}

	return mod, version, http.StatusOK
}

// splitRef parses "{slug}@{version}" refs
func splitRef(ref string) (slug, version string, ok bool) {
	idx := strings.LastIndex(ref, "@")
	if idx <= 0 || idx == len(ref)-1 {
		return "", "", false
	}
	return ref[:idx], ref[idx+1:], true
}
