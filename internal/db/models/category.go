package models

// Category is a fixed vocabulary entry mods are classified under. The catalog
// is seeded at migration time; ingestion falls back to "other" for unknown
// names and never creates new rows.
type Category struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}

// FallbackCategoryName is the category assigned when a manifest declares an
// unrecognized category.
const FallbackCategoryName = "other"

// GameVersion is a catalog entry for a supported target-game release.
type GameVersion struct {
	ID  string `json:"id" db:"id"`
	Ver string `json:"ver" db:"ver"`
}
