// mod_repository.go implements ModRepository, providing database queries for mod
// and version reads, download counters, and the SQL fallback search used when no
// search engine is configured. All ingestion-time writes live in IngestStore.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/beatforge/forge-registry/internal/db/models"
)

// ModRepository handles database reads for mods and versions
type ModRepository struct {
	db *sql.DB
}

// NewModRepository creates a new mod repository
func NewModRepository(db *sql.DB) *ModRepository {
	return &ModRepository{db: db}
}

const modColumns = `id, slug, name, description, icon, cover, website, author, category, stats,
	       created_at, updated_at`

func scanMod(row interface{ Scan(...any) error }) (*models.Mod, error) {
	mod := &models.Mod{}
	err := row.Scan(
		&mod.ID,
		&mod.Slug,
		&mod.Name,
		&mod.Description,
		&mod.Icon,
		&mod.Cover,
		&mod.Website,
		&mod.AuthorID,
		&mod.CategoryID,
		&mod.StatsID,
		&mod.CreatedAt,
		&mod.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return mod, nil
}

// GetModBySlug retrieves a mod by its unique slug. Returns (nil, nil) when absent.
func (r *ModRepository) GetModBySlug(ctx context.Context, slug string) (*models.Mod, error) {
	query := `SELECT ` + modColumns + ` FROM mods WHERE slug = $1`

	mod, err := scanMod(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mod by slug: %w", err)
	}
	return mod, nil
}

// GetModByID retrieves a mod by its UUID. Returns (nil, nil) when absent.
func (r *ModRepository) GetModByID(ctx context.Context, id string) (*models.Mod, error) {
	query := `SELECT ` + modColumns + ` FROM mods WHERE id = $1`

	mod, err := scanMod(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mod by id: %w", err)
	}
	return mod, nil
}

// ListMods returns a page of mods plus the total count. When gameVersion is
// non-empty only mods supporting that game version are returned.
func (r *ModRepository) ListMods(ctx context.Context, limit, offset int, gameVersion string) ([]*models.Mod, int, error) {
	var (
		countQuery string
		listQuery  string
		args       []any
	)

	if gameVersion != "" {
		filter := `
			FROM mods m
			WHERE EXISTS (
				SELECT 1 FROM mod_game_versions mgv
				JOIN game_versions gv ON gv.id = mgv.game_version_id
				WHERE mgv.mod_id = m.id AND gv.ver = $1
			)`
		countQuery = `SELECT COUNT(*) ` + filter
		listQuery = `SELECT ` + prefixColumns("m", modColumns) + filter +
			` ORDER BY m.updated_at DESC LIMIT $2 OFFSET $3`
		args = []any{gameVersion}
	} else {
		countQuery = `SELECT COUNT(*) FROM mods m`
		listQuery = `SELECT ` + prefixColumns("m", modColumns) +
			` FROM mods m ORDER BY m.updated_at DESC LIMIT $1 OFFSET $2`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count mods: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list mods: %w", err)
	}
	defer rows.Close()

	var mods []*models.Mod
	for rows.Next() {
		mod, err := scanMod(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan mod: %w", err)
		}
		mods = append(mods, mod)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate mods: %w", err)
	}

	return mods, total, nil
}

// ListModsByAuthor returns all mods owned by the given user
func (r *ModRepository) ListModsByAuthor(ctx context.Context, authorID string) ([]*models.Mod, error) {
	query := `SELECT ` + modColumns + ` FROM mods WHERE author = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mods by author: %w", err)
	}
	defer rows.Close()

	var mods []*models.Mod
	for rows.Next() {
		mod, err := scanMod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mod: %w", err)
		}
		mods = append(mods, mod)
	}
	return mods, rows.Err()
}

// SearchModsLike is the SQL fallback for the search endpoint, matching name and
// description with ILIKE. The search engine handles relevance ranking when
// configured; this exists so the endpoint degrades rather than disappears.
func (r *ModRepository) SearchModsLike(ctx context.Context, q, categoryName string, limit, offset int) ([]*models.Mod, error) {
	query := `
		SELECT ` + prefixColumns("m", modColumns) + `
		FROM mods m
		JOIN categories c ON c.id = m.category
		WHERE ($1 = '' OR m.name ILIKE '%' || $1 || '%' OR m.description ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR c.name = $2)
		ORDER BY m.updated_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, q, categoryName, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search mods: %w", err)
	}
	defer rows.Close()

	var mods []*models.Mod
	for rows.Next() {
		mod, err := scanMod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mod: %w", err)
		}
		mods = append(mods, mod)
	}
	return mods, rows.Err()
}

// GetVersion retrieves one version of a mod by version string, with its
// download counter joined in. Returns (nil, nil) when absent.
func (r *ModRepository) GetVersion(ctx context.Context, modID, version string) (*models.Version, error) {
	query := `
		SELECT v.id, v.mod_id, v.version, v.approved, v.stats, v.artifact_hash,
		       v.download_url, v.created_at, vs.downloads
		FROM versions v
		JOIN version_stats vs ON vs.id = v.stats
		WHERE v.mod_id = $1 AND v.version = $2
	`

	ver := &models.Version{}
	err := r.db.QueryRowContext(ctx, query, modID, version).Scan(
		&ver.ID, &ver.ModID, &ver.Version, &ver.Approved, &ver.StatsID,
		&ver.ArtifactHash, &ver.DownloadURL, &ver.CreatedAt, &ver.Downloads,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return ver, nil
}

// ListVersions returns all versions of a mod, newest first, each with its
// download counter and supported game versions resolved.
func (r *ModRepository) ListVersions(ctx context.Context, modID string) ([]models.Version, error) {
	query := `
		SELECT v.id, v.mod_id, v.version, v.approved, v.stats, v.artifact_hash,
		       v.download_url, v.created_at, vs.downloads
		FROM versions v
		JOIN version_stats vs ON vs.id = v.stats
		WHERE v.mod_id = $1
		ORDER BY v.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, modID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []models.Version
	var ids []string
	for rows.Next() {
		var ver models.Version
		err := rows.Scan(
			&ver.ID, &ver.ModID, &ver.Version, &ver.Approved, &ver.StatsID,
			&ver.ArtifactHash, &ver.DownloadURL, &ver.CreatedAt, &ver.Downloads,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, ver)
		ids = append(ids, ver.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate versions: %w", err)
	}

	if len(versions) == 0 {
		return versions, nil
	}

	gvByVersion, err := r.gameVersionsForVersions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		versions[i].GameVersions = gvByVersion[versions[i].ID]
	}

	return versions, nil
}

// ListVersionStrings returns just the version strings of a mod, newest first.
// The search document embeds these without the per-version detail rows.
func (r *ModRepository) ListVersionStrings(ctx context.Context, modID string) ([]string, error) {
	query := `
		SELECT version
		FROM versions
		WHERE mod_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, modID)
	if err != nil {
		return nil, fmt.Errorf("failed to list version strings: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var ver string
		if err := rows.Scan(&ver); err != nil {
			return nil, fmt.Errorf("failed to scan version string: %w", err)
		}
		versions = append(versions, ver)
	}
	return versions, rows.Err()
}

// gameVersionsForVersions resolves supported game versions for a set of version
// IDs in one query.
func (r *ModRepository) gameVersionsForVersions(ctx context.Context, versionIDs []string) (map[string][]string, error) {
	query := `
		SELECT vgv.version_id, gv.ver
		FROM version_game_versions vgv
		JOIN game_versions gv ON gv.id = vgv.game_version_id
		WHERE vgv.version_id = ANY($1)
		ORDER BY gv.ver
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(versionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve version game versions: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var versionID, ver string
		if err := rows.Scan(&versionID, &ver); err != nil {
			return nil, fmt.Errorf("failed to scan game version: %w", err)
		}
		result[versionID] = append(result[versionID], ver)
	}
	return result, rows.Err()
}

// ListModGameVersions returns the game versions a mod supports, across all its
// versions, ordered by version string.
func (r *ModRepository) ListModGameVersions(ctx context.Context, modID string) ([]string, error) {
	query := `
		SELECT gv.ver
		FROM mod_game_versions mgv
		JOIN game_versions gv ON gv.id = mgv.game_version_id
		WHERE mgv.mod_id = $1
		ORDER BY gv.ver
	`

	rows, err := r.db.QueryContext(ctx, query, modID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mod game versions: %w", err)
	}
	defer rows.Close()

	var vers []string
	for rows.Next() {
		var ver string
		if err := rows.Scan(&ver); err != nil {
			return nil, fmt.Errorf("failed to scan game version: %w", err)
		}
		vers = append(vers, ver)
	}
	return vers, rows.Err()
}

// GetModDownloads returns the mod-level download counter
func (r *ModRepository) GetModDownloads(ctx context.Context, statsID string) (int64, error) {
	var downloads int64
	err := r.db.QueryRowContext(ctx,
		`SELECT downloads FROM mod_stats WHERE id = $1`, statsID).Scan(&downloads)
	if err != nil {
		return 0, fmt.Errorf("failed to get mod downloads: %w", err)
	}
	return downloads, nil
}

// GetModAuthor returns the public author fields for a mod
func (r *ModRepository) GetModAuthor(ctx context.Context, modID string) (*models.ModAuthor, error) {
	query := `
		SELECT u.id, u.username, u.display_name, u.avatar
		FROM mods m
		JOIN users u ON u.id = m.author
		WHERE m.id = $1
	`

	author := &models.ModAuthor{}
	err := r.db.QueryRowContext(ctx, query, modID).Scan(
		&author.ID, &author.Username, &author.DisplayName, &author.Avatar)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mod author: %w", err)
	}
	return author, nil
}

// IncrementDownloadCounters bumps both the version and mod download counters
// for a served artifact. The stats rows are keyed separately from their parents
// so these updates never contend with mod or version row locks.
func (r *ModRepository) IncrementDownloadCounters(ctx context.Context, versionID string) error {
	query := `
		WITH v AS (
			UPDATE version_stats SET downloads = downloads + 1
			WHERE id = (SELECT stats FROM versions WHERE id = $1)
			RETURNING 1
		)
		UPDATE mod_stats SET downloads = downloads + 1
		WHERE id = (SELECT m.stats FROM mods m JOIN versions ver ON ver.mod_id = m.id WHERE ver.id = $1)
	`

	if _, err := r.db.ExecContext(ctx, query, versionID); err != nil {
		return fmt.Errorf("failed to increment download counters: %w", err)
	}
	return nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
