// catalog_repository.go implements CatalogRepository, read access to the seeded
// category vocabulary and game-version catalog. Both tables are small reference
// data, so queries load them whole and the repository uses sqlx for brevity.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/beatforge/forge-registry/internal/db/models"
)

// CatalogRepository handles database reads for categories and game versions
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListCategories returns the full category vocabulary ordered by name
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.SelectContext(ctx, &categories,
		`SELECT id, name, description FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// GetCategoryByName returns a category by exact (case-sensitive) name.
// Returns (nil, nil) when absent.
func (r *CatalogRepository) GetCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	var category models.Category
	err := r.db.GetContext(ctx, &category,
		`SELECT id, name, description FROM categories WHERE name = $1`, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}

// ListGameVersions returns the full game-version catalog
func (r *CatalogRepository) ListGameVersions(ctx context.Context) ([]models.GameVersion, error) {
	var versions []models.GameVersion
	err := r.db.SelectContext(ctx, &versions,
		`SELECT id, ver FROM game_versions ORDER BY ver`)
	if err != nil {
		return nil, fmt.Errorf("failed to list game versions: %w", err)
	}
	return versions, nil
}
