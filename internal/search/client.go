// client.go wraps the Meilisearch SDK behind the Indexer interface so the sync
// job and the search endpoint can be exercised in tests with a fake.
package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meilisearch/meilisearch-go"

	"github.com/beatforge/forge-registry/internal/config"
)

// Indexer is the index surface the registry uses
type Indexer interface {
	// EnsureSettings applies the index settings. Idempotent; called at startup.
	EnsureSettings(ctx context.Context) error

	// UpsertDocuments adds or replaces documents by primary key.
	UpsertDocuments(ctx context.Context, docs []ModDocument) error

	// DeleteDocument removes a document by mod ID.
	DeleteDocument(ctx context.Context, modID string) error

	// Search runs a query against the index.
	Search(ctx context.Context, q Query) (*Result, error)
}

// Query is a search request against the mod index
type Query struct {
	// Text is the full-text query; empty matches everything.
	Text string
	// Category filters to one category name when non-empty.
	Category string
	// Sort is an optional sort expression, e.g. "stats.downloads:desc".
	Sort string
	// Limit and Offset page through results.
	Limit  int64
	Offset int64
}

// Result is a page of search hits
type Result struct {
	Hits      []ModDocument `json:"hits"`
	Total     int64         `json:"total"`
	Offset    int64         `json:"offset"`
	Limit     int64         `json:"limit"`
	Processed int64         `json:"processing_time_ms"`
}

// Client is the Meilisearch-backed Indexer
type Client struct {
	index *meilisearch.Index
}

// NewClient connects to Meilisearch and binds the mod index. The index name is
// "{prefix}mods" so several registries can share one engine.
func NewClient(cfg *config.SearchConfig) *Client {
	ms := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   cfg.Host,
		APIKey: cfg.APIKey,
	})
	return &Client{index: ms.Index(cfg.IndexPrefix + "mods")}
}

// EnsureSettings applies filterable, searchable, and sortable attributes.
func (c *Client) EnsureSettings(ctx context.Context) error {
	settings := meilisearch.Settings{
		FilterableAttributes: []string{"category"},
		SearchableAttributes: []string{
			"name", "description", "author.username", "author.display_name",
		},
		SortableAttributes: []string{
			"stats.downloads", "created_at", "updated_at",
		},
	}
	if _, err := c.index.UpdateSettings(&settings); err != nil {
		return fmt.Errorf("failed to update index settings: %w", err)
	}
	return nil
}

// UpsertDocuments adds or replaces documents keyed by "id"
func (c *Client) UpsertDocuments(ctx context.Context, docs []ModDocument) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := c.index.AddDocuments(docs, "id"); err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}
	return nil
}

// DeleteDocument removes a document by mod ID
func (c *Client) DeleteDocument(ctx context.Context, modID string) error {
	if _, err := c.index.DeleteDocument(modID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Search runs a query against the mod index
func (c *Client) Search(ctx context.Context, q Query) (*Result, error) {
	req := &meilisearch.SearchRequest{
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if q.Category != "" {
		req.Filter = fmt.Sprintf("category = %q", q.Category)
	}
	if q.Sort != "" {
		req.Sort = []string{q.Sort}
	}

	resp, err := c.index.Search(q.Text, req)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	hits, err := decodeHits(resp.Hits)
	if err != nil {
		return nil, err
	}

	return &Result{
		Hits:      hits,
		Total:     resp.EstimatedTotalHits,
		Offset:    q.Offset,
		Limit:     q.Limit,
		Processed: resp.ProcessingTimeMs,
	}, nil
}

// decodeHits converts the SDK's untyped hits back into documents.
func decodeHits(raw []interface{}) ([]ModDocument, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode hits: %w", err)
	}
	var hits []ModDocument
	if err := json.Unmarshal(encoded, &hits); err != nil {
		return nil, fmt.Errorf("failed to decode hits: %w", err)
	}
	return hits, nil
}
