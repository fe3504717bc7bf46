// Package search maintains the mod search index. Documents are denormalized
// snapshots of a mod and its joined neighbours; the outbox drain job rebuilds
// and re-pushes a mod's document whenever its registry state changes, so the
// index is eventually consistent with the database and is never written from
// the ingestion transaction itself.
package search

import (
	"github.com/beatforge/forge-registry/internal/db/models"
)

// AuthorDocument is the author subset embedded in a mod document.
type AuthorDocument struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
}

// StatsDocument carries the sortable counters of a mod document.
type StatsDocument struct {
	Downloads int64 `json:"downloads"`
}

// ModDocument is the indexed representation of a mod. Timestamps are unix
// seconds so the engine can sort on them.
type ModDocument struct {
	ID           string         `json:"id"`
	Slug         string         `json:"slug"`
	Name         string         `json:"name"`
	Description  *string        `json:"description,omitempty"`
	Icon         *string        `json:"icon,omitempty"`
	Cover        *string        `json:"cover,omitempty"`
	Website      *string        `json:"website,omitempty"`
	Author       AuthorDocument `json:"author"`
	Category     string         `json:"category"`
	Stats        StatsDocument  `json:"stats"`
	Versions     []string       `json:"versions"`
	GameVersions []string       `json:"supported_game_versions"`
	CreatedAt    int64          `json:"created_at"`
	UpdatedAt    int64          `json:"updated_at"`
}

// BuildDocument assembles the index document for a mod from its resolved
// neighbours.
func BuildDocument(mod *models.Mod, author *models.ModAuthor, category *models.Category, downloads int64, versions, gameVersions []string) ModDocument {
	doc := ModDocument{
		ID:           mod.ID,
		Slug:         mod.Slug,
		Name:         mod.Name,
		Description:  mod.Description,
		Icon:         mod.Icon,
		Cover:        mod.Cover,
		Website:      mod.Website,
		Stats:        StatsDocument{Downloads: downloads},
		Versions:     versions,
		GameVersions: gameVersions,
		CreatedAt:    mod.CreatedAt.Unix(),
		UpdatedAt:    mod.UpdatedAt.Unix(),
	}
	if author != nil {
		doc.Author = AuthorDocument{
			ID:          author.ID,
			Username:    author.Username,
			DisplayName: author.DisplayName,
			Avatar:      author.Avatar,
		}
	}
	if category != nil {
		doc.Category = category.Name
	}
	return doc
}
