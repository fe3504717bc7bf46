// Package ingest implements the upload coordinator: the single write path that
// turns a parsed package into committed registry state. One upload produces one
// transaction holding the mod row, the version row, every association row, and
// the search outbox entry; the package blob is written to the content store
// before the transaction commits so a committed version never points at a
// missing blob.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/beatforge/forge-registry/internal/db/models"
	"github.com/beatforge/forge-registry/internal/db/repositories"
	"github.com/beatforge/forge-registry/internal/forgemod"
	"github.com/beatforge/forge-registry/internal/storage"
	"github.com/beatforge/forge-registry/pkg/checksum"
)

// Catalog is the read access the coordinator needs to the seeded reference
// tables. Satisfied by repositories.CatalogRepository.
type Catalog interface {
	GetCategoryByName(ctx context.Context, name string) (*models.Category, error)
	ListGameVersions(ctx context.Context) ([]models.GameVersion, error)
}

// Store opens ingestion transactions. Satisfied by repositories.IngestStore.
type Store interface {
	Begin(ctx context.Context) (*repositories.IngestTx, error)
}

// Coordinator owns the package publication flow
type Coordinator struct {
	store   Store
	catalog Catalog
	blobs   storage.Storage
	baseURL string
	logger  *slog.Logger
}

// NewCoordinator creates an upload coordinator
func NewCoordinator(store Store, catalog Catalog, blobs storage.Storage, baseURL string, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		catalog: catalog,
		blobs:   blobs,
		baseURL: baseURL,
		logger:  logger.With("component", "ingest"),
	}
}

// Result reports a successful publication
type Result struct {
	Mod        *models.Mod
	Version    *models.Version
	ModCreated bool
}

// Publish ingests a parsed package on behalf of authorID. The caller has
// already been authenticated and permission-checked at the API boundary.
//
// On success the returned Result carries the committed mod and version rows.
// On failure the returned error carries a Kind the handler maps to a status;
// no partial state survives a failure.
func (c *Coordinator) Publish(ctx context.Context, authorID string, pkg *forgemod.Package) (*Result, error) {
	manifest := &pkg.Manifest

	category, err := c.resolveCategory(ctx, manifest.Category)
	if err != nil {
		return nil, err
	}

	gameVersions, err := c.resolveGameVersions(ctx, manifest)
	if err != nil {
		return nil, err
	}

	artifactHash, err := checksum.CalculateSHA256(bytes.NewReader(pkg.Raw))
	if err != nil {
		return nil, internalErr("failed to hash package", err)
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		return nil, internalErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	mod := &models.Mod{
		Slug:        manifest.Slug,
		Name:        manifest.Name,
		Description: manifest.Description,
		Website:     manifest.Website,
		AuthorID:    authorID,
		CategoryID:  category.ID,
	}
	created, err := tx.UpsertMod(ctx, mod)
	if err != nil {
		return nil, internalErr("failed to upsert mod", err)
	}
	if created {
		if err := tx.InsertOwnership(ctx, authorID, mod.ID); err != nil {
			return nil, internalErr("failed to record ownership", err)
		}
	}

	version := &models.Version{
		ModID:        mod.ID,
		Version:      manifest.Version,
		ArtifactHash: artifactHash,
		DownloadURL:  fmt.Sprintf("%s/cdn/%s@%s", c.baseURL, mod.Slug, manifest.Version),
	}
	if err := tx.CreateVersion(ctx, version); err != nil {
		if err == repositories.ErrDuplicateVersion {
			return nil, conflictErr("version %s of %s already exists", manifest.Version, mod.Slug)
		}
		return nil, internalErr("failed to create version", err)
	}

	for _, gv := range gameVersions {
		if err := tx.UpsertModGameVersion(ctx, mod.ID, gv.ID); err != nil {
			return nil, internalErr("failed to link mod game version", err)
		}
		if err := tx.InsertVersionGameVersion(ctx, version.ID, gv.ID); err != nil {
			return nil, internalErr("failed to link version game version", err)
		}
	}

	if err := c.materializeEdges(ctx, tx, version.ID, repositories.EdgeDependents, manifest.Depends); err != nil {
		return nil, err
	}
	if err := c.materializeEdges(ctx, tx, version.ID, repositories.EdgeConflicts, manifest.Conflicts); err != nil {
		return nil, err
	}

	if err := tx.EnqueueSearchOutbox(ctx, mod.ID); err != nil {
		return nil, internalErr("failed to enqueue search sync", err)
	}

	// The blob is written before commit: if the write fails the transaction
	// rolls back, and if the commit fails the blob is removed again. Either
	// way a committed version row always has its blob in place.
	blobPath := BlobPath(mod.ID, version.ID)
	if _, err := c.blobs.Upload(ctx, blobPath, bytes.NewReader(pkg.Raw), int64(len(pkg.Raw))); err != nil {
		return nil, internalErr("failed to store package blob", err)
	}

	if err := tx.Commit(); err != nil {
		if delErr := c.blobs.Delete(ctx, blobPath); delErr != nil {
			c.logger.Error("failed to remove orphaned blob after commit failure",
				"path", blobPath, "error", delErr)
		}
		return nil, internalErr("failed to commit transaction", err)
	}

	c.logger.Info("published version",
		"mod", mod.Slug, "version", manifest.Version, "mod_created", created)

	return &Result{Mod: mod, Version: version, ModCreated: created}, nil
}

// BlobPath is the content-store key for a published package. Keys are built
// from the server-generated row IDs, never from manifest fields, so no
// manifest content can influence where a blob lands.
func BlobPath(modID, versionID string) string {
	return fmt.Sprintf("mods/%s/%s.forgemod", modID, versionID)
}

// resolveCategory maps a manifest category name onto the seeded vocabulary,
// falling back to the "other" category for unknown names.
func (c *Coordinator) resolveCategory(ctx context.Context, name string) (*models.Category, error) {
	category, err := c.catalog.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, internalErr("failed to look up category", err)
	}
	if category != nil {
		return category, nil
	}

	fallback, err := c.catalog.GetCategoryByName(ctx, models.FallbackCategoryName)
	if err != nil {
		return nil, internalErr("failed to look up fallback category", err)
	}
	if fallback == nil {
		return nil, internalErr("fallback category missing from catalog", nil)
	}

	c.logger.Debug("unknown category, using fallback", "requested", name)
	return fallback, nil
}

// resolveGameVersions matches the manifest's game_version requirement against
// the catalog. A requirement no catalog entry satisfies rejects the upload:
// a version that targets nothing is a manifest bug, not a registry state.
func (c *Coordinator) resolveGameVersions(ctx context.Context, manifest *forgemod.Manifest) ([]models.GameVersion, error) {
	req, err := forgemod.ParseRequirement(manifest.GameVersionReq)
	if err != nil {
		return nil, validationErr("bad game_version requirement %q: %v", manifest.GameVersionReq, err)
	}

	catalog, err := c.catalog.ListGameVersions(ctx)
	if err != nil {
		return nil, internalErr("failed to list game versions", err)
	}

	var matched []models.GameVersion
	for _, gv := range catalog {
		if req.MatchesString(gv.Ver) {
			matched = append(matched, gv)
		}
	}
	if len(matched) == 0 {
		return nil, validationErr("game_version requirement %q matches no supported game version", manifest.GameVersionReq)
	}

	return matched, nil
}

// materializeEdges resolves depends/conflicts requirement maps against the
// published versions of each referenced slug and inserts an edge per match.
// Unknown slugs and unmatched requirements produce no edges and no error; the
// declaration is preserved in the package manifest itself.
func (c *Coordinator) materializeEdges(ctx context.Context, tx *repositories.IngestTx, versionID string, kind repositories.EdgeKind, reqs map[string]string) error {
	for slug, rawReq := range reqs {
		req, err := forgemod.ParseRequirement(rawReq)
		if err != nil {
			return validationErr("bad %s requirement %q for %s: %v", kind, rawReq, slug, err)
		}

		candidates, err := tx.ResolveVersionsBySlug(ctx, slug)
		if err != nil {
			return internalErr("failed to resolve versions for edge target", err)
		}

		for _, candidate := range candidates {
			if !req.MatchesString(candidate.Version) {
				continue
			}
			if err := tx.InsertVersionEdge(ctx, kind, versionID, candidate.ID); err != nil {
				return internalErr("failed to insert version edge", err)
			}
		}
	}
	return nil
}
