// ingest_store.go implements IngestStore, the transactional write path used by
// the ingestion coordinator. All rows created for one upload (mod, version,
// stats, and every association row) go through a single IngestTx so a failure
// at any step leaves no partial state behind.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/beatforge/forge-registry/internal/db/models"
)

// IngestStore opens ingestion transactions against the relational store
type IngestStore struct {
	db *sql.DB
}

// NewIngestStore creates a new ingest store
func NewIngestStore(db *sql.DB) *IngestStore {
	return &IngestStore{db: db}
}

// Begin opens an ingestion transaction. The caller must Commit or Rollback;
// Rollback after Commit is a no-op, so `defer tx.Rollback()` is safe.
func (s *IngestStore) Begin(ctx context.Context) (*IngestTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ingestion transaction: %w", err)
	}
	return &IngestTx{tx: tx}, nil
}

// IngestTx is one ingestion unit of work. Every method runs against the same
// underlying transaction.
type IngestTx struct {
	tx *sql.Tx
}

// Commit commits the transaction
func (t *IngestTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ingestion transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit.
func (t *IngestTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

// UpsertMod inserts a mod for the given slug or returns the existing one.
// The insert relies on the unique slug constraint with ON CONFLICT DO NOTHING,
// so two concurrent first uploads of the same slug cannot both create a row:
// the loser's insert affects nothing and the follow-up select sees the winner.
// A zero-valued mod_stats row is created for new mods.
func (t *IngestTx) UpsertMod(ctx context.Context, mod *models.Mod) (created bool, err error) {
	insert := `
		WITH stats AS (
			INSERT INTO mod_stats DEFAULT VALUES
			RETURNING id
		)
		INSERT INTO mods (slug, name, description, icon, cover, website, author, category, stats)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, stats.id FROM stats
		ON CONFLICT (slug) DO NOTHING
		RETURNING id, stats, created_at, updated_at
	`

	err = t.tx.QueryRowContext(ctx, insert,
		mod.Slug,
		mod.Name,
		mod.Description,
		mod.Icon,
		mod.Cover,
		mod.Website,
		mod.AuthorID,
		mod.CategoryID,
	).Scan(&mod.ID, &mod.StatsID, &mod.CreatedAt, &mod.UpdatedAt)

	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to insert mod: %w", err)
	}

	// Conflict path: the slug exists. Load the winner; author and category stay
	// as they were fixed at creation time.
	query := `SELECT ` + modColumns + ` FROM mods WHERE slug = $1`
	existing, err := scanMod(t.tx.QueryRowContext(ctx, query, mod.Slug))
	if err != nil {
		return false, fmt.Errorf("failed to load existing mod: %w", err)
	}
	*mod = *existing
	return false, nil
}

// InsertOwnership records the User↔Mod ownership row for a newly created mod.
// Idempotent via the composite primary key.
func (t *IngestTx) InsertOwnership(ctx context.Context, userID, modID string) error {
	query := `
		INSERT INTO user_mods (user_id, mod_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, mod_id) DO NOTHING
	`
	if _, err := t.tx.ExecContext(ctx, query, userID, modID); err != nil {
		return fmt.Errorf("failed to insert ownership row: %w", err)
	}
	return nil
}

// CreateVersion inserts a version row with a fresh zero-valued version_stats
// row and a mod_versions membership row. A duplicate (mod, version) pair
// violates the unique constraint, surfaced to the caller as ErrDuplicateVersion.
func (t *IngestTx) CreateVersion(ctx context.Context, version *models.Version) error {
	insert := `
		WITH stats AS (
			INSERT INTO version_stats DEFAULT VALUES
			RETURNING id
		)
		INSERT INTO versions (mod_id, version, stats, artifact_hash, download_url)
		SELECT $1, $2, stats.id, $3, $4 FROM stats
		RETURNING id, stats, approved, created_at
	`

	err := t.tx.QueryRowContext(ctx, insert,
		version.ModID,
		version.Version,
		version.ArtifactHash,
		version.DownloadURL,
	).Scan(&version.ID, &version.StatsID, &version.Approved, &version.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateVersion
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}

	membership := `INSERT INTO mod_versions (mod_id, version_id) VALUES ($1, $2)`
	if _, err := t.tx.ExecContext(ctx, membership, version.ModID, version.ID); err != nil {
		return fmt.Errorf("failed to insert version membership row: %w", err)
	}

	return nil
}

// ErrDuplicateVersion reports that the (mod, version) pair already exists.
var ErrDuplicateVersion = fmt.Errorf("version already exists for this mod")

// UpsertModGameVersion records that the mod supports a game version. The
// composite primary key makes the insert idempotent across re-uploads, so two
// versions targeting overlapping game versions produce exactly one row per
// distinct pair.
func (t *IngestTx) UpsertModGameVersion(ctx context.Context, modID, gameVersionID string) error {
	query := `
		INSERT INTO mod_game_versions (mod_id, game_version_id)
		VALUES ($1, $2)
		ON CONFLICT (mod_id, game_version_id) DO NOTHING
	`
	if _, err := t.tx.ExecContext(ctx, query, modID, gameVersionID); err != nil {
		return fmt.Errorf("failed to upsert mod game version: %w", err)
	}
	return nil
}

// InsertVersionGameVersion records that one version supports a game version.
// The version is freshly created in this transaction, so no conflict handling
// is needed.
func (t *IngestTx) InsertVersionGameVersion(ctx context.Context, versionID, gameVersionID string) error {
	query := `INSERT INTO version_game_versions (version_id, game_version_id) VALUES ($1, $2)`
	if _, err := t.tx.ExecContext(ctx, query, versionID, gameVersionID); err != nil {
		return fmt.Errorf("failed to insert version game version: %w", err)
	}
	return nil
}

// ResolveVersionsBySlug returns the id and version string of every version of
// the mod with the given slug, for requirement matching of depends/conflicts
// entries. The result is empty (not an error) when the slug is unknown, since
// edges cannot be materialized against mods that are not registered yet.
func (t *IngestTx) ResolveVersionsBySlug(ctx context.Context, slug string) ([]models.Version, error) {
	query := `
		SELECT v.id, v.mod_id, v.version
		FROM versions v
		JOIN mods m ON m.id = v.mod_id
		WHERE m.slug = $1
	`

	rows, err := t.tx.QueryContext(ctx, query, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve versions for slug %s: %w", slug, err)
	}
	defer rows.Close()

	var versions []models.Version
	for rows.Next() {
		var v models.Version
		if err := rows.Scan(&v.ID, &v.ModID, &v.Version); err != nil {
			return nil, fmt.Errorf("failed to scan resolved version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// EdgeKind selects which Version↔Version association table an edge lands in.
type EdgeKind string

const (
	// EdgeDependents marks "this version depends on that version" edges.
	EdgeDependents EdgeKind = "version_dependents"
	// EdgeConflicts marks "this version conflicts with that version" edges.
	EdgeConflicts EdgeKind = "version_conflicts"
)

// InsertVersionEdge inserts a dependency or conflict edge from the new version
// to a matched existing version. Idempotent via the composite primary key.
func (t *IngestTx) InsertVersionEdge(ctx context.Context, kind EdgeKind, versionID, dependentID string) error {
	var query string
	switch kind {
	case EdgeDependents:
		query = `INSERT INTO version_dependents (version_id, dependent) VALUES ($1, $2)
			ON CONFLICT (version_id, dependent) DO NOTHING`
	case EdgeConflicts:
		query = `INSERT INTO version_conflicts (version_id, dependent) VALUES ($1, $2)
			ON CONFLICT (version_id, dependent) DO NOTHING`
	default:
		return fmt.Errorf("unknown edge kind: %s", kind)
	}

	if _, err := t.tx.ExecContext(ctx, query, versionID, dependentID); err != nil {
		return fmt.Errorf("failed to insert %s edge: %w", kind, err)
	}
	return nil
}

// EnqueueSearchOutbox records that the mod's search document needs (re)indexing.
// Written inside the ingestion transaction so the outbox row commits atomically
// with the rows it describes; a crash between commit and indexing loses nothing.
func (t *IngestTx) EnqueueSearchOutbox(ctx context.Context, modID string) error {
	query := `
		INSERT INTO search_outbox (mod_id)
		VALUES ($1)
		ON CONFLICT (mod_id) DO UPDATE SET enqueued_at = now(), attempts = 0, last_error = NULL
	`
	if _, err := t.tx.ExecContext(ctx, query, modID); err != nil {
		return fmt.Errorf("failed to enqueue search outbox row: %w", err)
	}
	return nil
}
