// Package jobs contains background workers that run on a schedule.
// The search sync job drains the search outbox into the search index. Jobs are
// designed to be idempotent: re-running after a crash produces the same result
// as a clean run, because outbox rows are only acknowledged after the engine
// accepts the document.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/beatforge/forge-registry/internal/db/models"
	"github.com/beatforge/forge-registry/internal/db/repositories"
	"github.com/beatforge/forge-registry/internal/search"
	"github.com/beatforge/forge-registry/internal/telemetry"
)

// drainBatchSize bounds how many outbox rows one sweep processes.
const drainBatchSize = 100

// ModReader is the read access the sync job needs to rebuild a document.
// Satisfied by repositories.ModRepository.
type ModReader interface {
	GetModByID(ctx context.Context, id string) (*models.Mod, error)
	GetModAuthor(ctx context.Context, modID string) (*models.ModAuthor, error)
	GetModDownloads(ctx context.Context, statsID string) (int64, error)
	ListVersionStrings(ctx context.Context, modID string) ([]string, error)
	ListModGameVersions(ctx context.Context, modID string) ([]string, error)
}

// CategoryReader resolves a mod's category for the document.
// Satisfied by repositories.CatalogRepository.
type CategoryReader interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// Outbox is the pending-document queue. Satisfied by repositories.OutboxRepository.
type Outbox interface {
	ListPending(ctx context.Context, limit int) ([]repositories.OutboxEntry, error)
	CountPending(ctx context.Context) (int, error)
	Ack(ctx context.Context, modID string) error
	RecordFailure(ctx context.Context, modID, reason string) error
}

// SearchSyncJob periodically drains the search outbox into the index
type SearchSyncJob struct {
	outbox     Outbox
	mods       ModReader
	categories CategoryReader
	indexer    search.Indexer
	logger     *slog.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewSearchSyncJob creates a new search sync job
func NewSearchSyncJob(outbox Outbox, mods ModReader, categories CategoryReader, indexer search.Indexer, logger *slog.Logger) *SearchSyncJob {
	return &SearchSyncJob{
		outbox:     outbox,
		mods:       mods,
		categories: categories,
		indexer:    indexer,
		logger:     logger.With("component", "search_sync"),
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic drain loop. Index settings are applied once before
// the first sweep; an engine that is down at startup only delays indexing, it
// never fails the process.
func (j *SearchSyncJob) Start(ctx context.Context, interval time.Duration) {
	j.logger.Info("starting search sync job", "interval", interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		if err := j.indexer.EnsureSettings(ctx); err != nil {
			j.logger.Error("failed to apply index settings, will retry on next sweep", "error", err)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Run initial drain immediately
		j.drain(ctx)

		for {
			select {
			case <-ticker.C:
				j.drain(ctx)
			case <-j.stopCh:
				j.logger.Info("search sync job stopped")
				return
			case <-ctx.Done():
				j.logger.Info("search sync job context cancelled")
				return
			}
		}
	}()
}

// Stop stops the sync job and waits for an in-flight sweep to finish
func (j *SearchSyncJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
}

// drain processes one batch of pending outbox rows. Each row is handled
// independently: a mod whose document cannot be built or pushed records a
// failure and stays queued, without blocking the rest of the batch.
func (j *SearchSyncJob) drain(ctx context.Context) {
	entries, err := j.outbox.ListPending(ctx, drainBatchSize)
	if err != nil {
		j.logger.Error("failed to list pending outbox rows", "error", err)
		return
	}

	for _, entry := range entries {
		if err := j.syncOne(ctx, entry.ModID); err != nil {
			telemetry.SearchSyncTotal.WithLabelValues("error").Inc()
			j.logger.Error("failed to sync mod document", "mod_id", entry.ModID, "error", err)
			if recErr := j.outbox.RecordFailure(ctx, entry.ModID, err.Error()); recErr != nil {
				j.logger.Error("failed to record sync failure", "mod_id", entry.ModID, "error", recErr)
			}
			continue
		}

		telemetry.SearchSyncTotal.WithLabelValues("ok").Inc()
		if err := j.outbox.Ack(ctx, entry.ModID); err != nil {
			j.logger.Error("failed to ack outbox row", "mod_id", entry.ModID, "error", err)
		}
	}

	if pending, err := j.outbox.CountPending(ctx); err == nil {
		telemetry.SearchOutboxPending.Set(float64(pending))
	}
}

// syncOne rebuilds and pushes the document for one mod. A mod deleted since
// enqueue removes its document instead.
func (j *SearchSyncJob) syncOne(ctx context.Context, modID string) error {
	mod, err := j.mods.GetModByID(ctx, modID)
	if err != nil {
		return err
	}
	if mod == nil {
		return j.indexer.DeleteDocument(ctx, modID)
	}

	author, err := j.mods.GetModAuthor(ctx, modID)
	if err != nil {
		return err
	}
	downloads, err := j.mods.GetModDownloads(ctx, mod.StatsID)
	if err != nil {
		return err
	}
	versions, err := j.mods.ListVersionStrings(ctx, modID)
	if err != nil {
		return err
	}
	gameVersions, err := j.mods.ListModGameVersions(ctx, modID)
	if err != nil {
		return err
	}
	category, err := j.categoryByID(ctx, mod.CategoryID)
	if err != nil {
		return err
	}

	doc := search.BuildDocument(mod, author, category, downloads, versions, gameVersions)
	return j.indexer.UpsertDocuments(ctx, []search.ModDocument{doc})
}

func (j *SearchSyncJob) categoryByID(ctx context.Context, id string) (*models.Category, error) {
	categories, err := j.categories.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i], nil
		}
	}
	return nil, nil
}
