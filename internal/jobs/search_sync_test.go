package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/beatforge/forge-registry/internal/db/models"
	"github.com/beatforge/forge-registry/internal/db/repositories"
	"github.com/beatforge/forge-registry/internal/search"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeOutbox struct {
	mu       sync.Mutex
	pending  []repositories.OutboxEntry
	acked    []string
	failures map[string]string
	listErr  error
}

func (f *fakeOutbox) ListPending(_ context.Context, limit int) ([]repositories.OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutbox) CountPending(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending), nil
}

func (f *fakeOutbox) Ack(_ context.Context, modID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, modID)
	remaining := make([]repositories.OutboxEntry, 0, len(f.pending))
	for _, e := range f.pending {
		if e.ModID != modID {
			remaining = append(remaining, e)
		}
	}
	f.pending = remaining
	return nil
}

func (f *fakeOutbox) RecordFailure(_ context.Context, modID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = make(map[string]string)
	}
	f.failures[modID] = reason
	return nil
}

type fakeModReader struct {
	mods      map[string]*models.Mod
	author    *models.ModAuthor
	downloads int64
}

func (f *fakeModReader) GetModByID(_ context.Context, id string) (*models.Mod, error) {
	return f.mods[id], nil
}

func (f *fakeModReader) GetModAuthor(_ context.Context, _ string) (*models.ModAuthor, error) {
	return f.author, nil
}

func (f *fakeModReader) GetModDownloads(_ context.Context, _ string) (int64, error) {
	return f.downloads, nil
}

func (f *fakeModReader) ListVersionStrings(_ context.Context, _ string) ([]string, error) {
	return []string{"1.2.0", "1.1.0"}, nil
}

func (f *fakeModReader) ListModGameVersions(_ context.Context, _ string) ([]string, error) {
	return []string{"1.29.0"}, nil
}

type fakeCategoryReader struct {
	categories []models.Category
}

func (f *fakeCategoryReader) ListCategories(_ context.Context) ([]models.Category, error) {
	return f.categories, nil
}

type fakeIndexer struct {
	mu          sync.Mutex
	settings    int
	settingsErr error
	upserted    []search.ModDocument
	upsertErr   error
	deleted     []string
}

func (f *fakeIndexer) EnsureSettings(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings++
	return f.settingsErr
}

func (f *fakeIndexer) UpsertDocuments(_ context.Context, docs []search.ModDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, docs...)
	return nil
}

func (f *fakeIndexer) DeleteDocument(_ context.Context, modID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, modID)
	return nil
}

func (f *fakeIndexer) Search(_ context.Context, _ search.Query) (*search.Result, error) {
	return &search.Result{}, nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func sampleMod() *models.Mod {
	return &models.Mod{
		ID:         "mod-1",
		Slug:       "rainbow-trails",
		Name:       "Rainbow Trails",
		CategoryID: "cat-1",
		StatsID:    "stats-1",
	}
}

func newTestJob(outbox *fakeOutbox, mods ModReader, indexer *fakeIndexer) *SearchSyncJob {
	categories := &fakeCategoryReader{categories: []models.Category{{ID: "cat-1", Name: "cosmetic"}}}
	return NewSearchSyncJob(outbox, mods, categories, indexer, slog.Default())
}

// ---------------------------------------------------------------------------
// drain
// ---------------------------------------------------------------------------

func TestDrain_IndexesPendingMod(t *testing.T) {
	outbox := &fakeOutbox{pending: []repositories.OutboxEntry{{ModID: "mod-1"}}}
	mods := &fakeModReader{
		mods:      map[string]*models.Mod{"mod-1": sampleMod()},
		author:    &models.ModAuthor{ID: "user-1", Username: "seven"},
		downloads: 42,
	}
	indexer := &fakeIndexer{}
	job := newTestJob(outbox, mods, indexer)

	job.drain(context.Background())

	if len(indexer.upserted) != 1 {
		t.Fatalf("upserted %d documents, want 1", len(indexer.upserted))
	}
	doc := indexer.upserted[0]
	if doc.ID != "mod-1" || doc.Category != "cosmetic" || doc.Stats.Downloads != 42 {
		t.Errorf("document = %+v, want resolved category and downloads", doc)
	}
	if len(doc.Versions) != 2 || doc.Versions[0] != "1.2.0" {
		t.Errorf("Versions = %v, want the mod's version strings newest first", doc.Versions)
	}
	if len(outbox.acked) != 1 || outbox.acked[0] != "mod-1" {
		t.Errorf("acked = %v, want [mod-1]", outbox.acked)
	}
}

func TestDrain_DeletedModRemovesDocument(t *testing.T) {
	outbox := &fakeOutbox{pending: []repositories.OutboxEntry{{ModID: "gone-mod"}}}
	mods := &fakeModReader{mods: map[string]*models.Mod{}}
	indexer := &fakeIndexer{}
	job := newTestJob(outbox, mods, indexer)

	job.drain(context.Background())

	if len(indexer.deleted) != 1 || indexer.deleted[0] != "gone-mod" {
		t.Errorf("deleted = %v, want [gone-mod]", indexer.deleted)
	}
	if len(outbox.acked) != 1 {
		t.Errorf("acked = %v, want the row acknowledged after delete", outbox.acked)
	}
}

func TestDrain_EngineFailureKeepsRowQueued(t *testing.T) {
	outbox := &fakeOutbox{pending: []repositories.OutboxEntry{{ModID: "mod-1"}}}
	mods := &fakeModReader{mods: map[string]*models.Mod{"mod-1": sampleMod()}}
	indexer := &fakeIndexer{upsertErr: errors.New("engine unavailable")}
	job := newTestJob(outbox, mods, indexer)

	job.drain(context.Background())

	if len(outbox.acked) != 0 {
		t.Errorf("acked = %v, want no acks when the engine rejects the document", outbox.acked)
	}
	if reason := outbox.failures["mod-1"]; reason == "" {
		t.Error("no failure recorded for mod-1, want RecordFailure with the engine error")
	}
	if len(outbox.pending) != 1 {
		t.Errorf("pending = %d rows, want the row still queued", len(outbox.pending))
	}
}

func TestDrain_FailureDoesNotBlockBatch(t *testing.T) {
	outbox := &fakeOutbox{pending: []repositories.OutboxEntry{
		{ModID: "broken-mod"},
		{ModID: "mod-1"},
	}}
	mods := &fakeModReader{mods: map[string]*models.Mod{"mod-1": sampleMod()}}
	indexer := &fakeIndexer{}
	job := newTestJob(outbox, &failingReader{inner: mods, failID: "broken-mod"}, indexer)

	job.drain(context.Background())

	if len(outbox.acked) != 1 || outbox.acked[0] != "mod-1" {
		t.Errorf("acked = %v, want [mod-1] despite broken-mod failing", outbox.acked)
	}
	if outbox.failures["broken-mod"] == "" {
		t.Error("no failure recorded for broken-mod")
	}
}

type failingReader struct {
	inner  *fakeModReader
	failID string
}

func (f *failingReader) GetModByID(ctx context.Context, id string) (*models.Mod, error) {
	if id == f.failID {
		return nil, errors.New("row scan failed")
	}
	return f.inner.GetModByID(ctx, id)
}

func (f *failingReader) GetModAuthor(ctx context.Context, modID string) (*models.ModAuthor, error) {
	return f.inner.GetModAuthor(ctx, modID)
}

func (f *failingReader) GetModDownloads(ctx context.Context, statsID string) (int64, error) {
	return f.inner.GetModDownloads(ctx, statsID)
}

func (f *failingReader) ListVersionStrings(ctx context.Context, modID string) ([]string, error) {
	return f.inner.ListVersionStrings(ctx, modID)
}

func (f *failingReader) ListModGameVersions(ctx context.Context, modID string) ([]string, error) {
	return f.inner.ListModGameVersions(ctx, modID)
}

// ---------------------------------------------------------------------------
// Start / Stop
// ---------------------------------------------------------------------------

func TestStartStop(t *testing.T) {
	outbox := &fakeOutbox{pending: []repositories.OutboxEntry{{ModID: "mod-1"}}}
	mods := &fakeModReader{mods: map[string]*models.Mod{"mod-1": sampleMod()}}
	indexer := &fakeIndexer{}
	job := newTestJob(outbox, mods, indexer)

	job.Start(context.Background(), time.Hour)

	// The initial drain runs before the first tick.
	deadline := time.Now().Add(2 * time.Second)
	for {
		indexer.mu.Lock()
		n := len(indexer.upserted)
		indexer.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("initial drain did not run within 2s")
		}
		time.Sleep(10 * time.Millisecond)
	}

	job.Stop()

	indexer.mu.Lock()
	applied := indexer.settings
	indexer.mu.Unlock()
	if applied != 1 {
		t.Errorf("EnsureSettings called %d times, want once at startup", applied)
	}
}

func TestStart_SettingsFailureIsNotFatal(t *testing.T) {
	outbox := &fakeOutbox{pending: []repositories.OutboxEntry{{ModID: "mod-1"}}}
	mods := &fakeModReader{mods: map[string]*models.Mod{"mod-1": sampleMod()}}
	indexer := &fakeIndexer{settingsErr: errors.New("engine down")}
	job := newTestJob(outbox, mods, indexer)

	job.Start(context.Background(), time.Hour)
	defer job.Stop()

	// Drain still happens even though settings could not be applied.
	deadline := time.Now().Add(2 * time.Second)
	for {
		indexer.mu.Lock()
		n := len(indexer.upserted)
		indexer.mu.Unlock()
		if n == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("drain did not run after settings failure")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
