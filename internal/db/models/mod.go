// Package models - mod.go defines the Mod and Version models representing mods in the
// registry and their published version metadata, plus the per-entity stats counters.
package models

import "time"

// Mod represents a mod in the registry
type Mod struct {
	ID          string    `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Icon        *string   `json:"icon,omitempty" db:"icon"`
	Cover       *string   `json:"cover,omitempty" db:"cover"`
	Website     *string   `json:"website,omitempty" db:"website"`
	AuthorID    string    `json:"author_id" db:"author"`
	CategoryID  string    `json:"category_id" db:"category"`
	StatsID     string    `json:"-" db:"stats"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ModDetail is the API representation of a mod with its joined neighbours
// (author, category, stats, versions) resolved in bulk to avoid N+1 lookups.
type ModDetail struct {
	Mod
	Author       ModAuthor `json:"author"`
	Category     Category  `json:"category"`
	Downloads    int64     `json:"downloads"`
	Versions     []Version `json:"versions"`
	GameVersions []string  `json:"supported_game_versions"`
}

// ModAuthor is the public subset of a user embedded in mod responses.
type ModAuthor struct {
	ID          string  `json:"id" db:"id"`
	Username    string  `json:"username" db:"username"`
	DisplayName *string `json:"display_name,omitempty" db:"display_name"`
	Avatar      *string `json:"avatar,omitempty" db:"avatar"`
}

// Version represents a specific published version of a mod
type Version struct {
	ID           string    `json:"id" db:"id"`
	ModID        string    `json:"mod_id" db:"mod_id"`
	Version      string    `json:"version" db:"version"`
	Approved     bool      `json:"approved" db:"approved"`
	StatsID      string    `json:"-" db:"stats"`
	ArtifactHash string    `json:"artifact_hash" db:"artifact_hash"`
	DownloadURL  string    `json:"download_url" db:"download_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	// Joined fields (not stored in the versions table)
	Downloads    int64    `json:"downloads" db:"downloads"`
	GameVersions []string `json:"supported_game_versions,omitempty" db:"-"`
}

// ModStats is the one-to-one download counter row for a mod. It is keyed
// separately from the mod so counter updates never lock the mod row.
type ModStats struct {
	ID        string `json:"id" db:"id"`
	Downloads int64  `json:"downloads" db:"downloads"`
}

// VersionStats is the one-to-one download counter row for a version.
type VersionStats struct {
	ID        string `json:"id" db:"id"`
	Downloads int64  `json:"downloads" db:"downloads"`
}
