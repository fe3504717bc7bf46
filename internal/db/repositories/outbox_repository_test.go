package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newOutboxRepo(t *testing.T) (*OutboxRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewOutboxRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestListPending(t *testing.T) {
	repo, mock := newOutboxRepo(t)
	reason := "engine unreachable"
	mock.ExpectQuery("SELECT mod_id, enqueued_at, attempts, last_error.*FROM search_outbox").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"mod_id", "enqueued_at", "attempts", "last_error"}).
			AddRow("mod-1", time.Now(), 0, nil).
			AddRow("mod-2", time.Now(), 3, &reason))

	entries, err := repo.ListPending(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].ModID != "mod-1" || entries[0].Attempts != 0 {
		t.Errorf("entries[0] = %+v, want fresh mod-1 row", entries[0])
	}
	if entries[1].LastError == nil || *entries[1].LastError != reason {
		t.Errorf("entries[1].LastError = %v, want %q", entries[1].LastError, reason)
	}
}

func TestListPending_DBError(t *testing.T) {
	repo, mock := newOutboxRepo(t)
	mock.ExpectQuery("SELECT mod_id.*FROM search_outbox").
		WithArgs(50).
		WillReturnError(errDB)

	if _, err := repo.ListPending(context.Background(), 50); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestCountPending(t *testing.T) {
	repo, mock := newOutboxRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM search_outbox").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}
}

func TestAck(t *testing.T) {
	repo, mock := newOutboxRepo(t)
	mock.ExpectExec("DELETE FROM search_outbox WHERE mod_id").
		WithArgs("mod-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Ack(context.Background(), "mod-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRecordFailure(t *testing.T) {
	repo, mock := newOutboxRepo(t)
	mock.ExpectExec("UPDATE search_outbox.*SET attempts = attempts").
		WithArgs("mod-1", "engine unreachable").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecordFailure(context.Background(), "mod-1", "engine unreachable"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
