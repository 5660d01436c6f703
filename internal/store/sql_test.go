package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSQLiteStore(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) Repository {
		repo, err := NewSQLite(filepath.Join(t.TempDir(), "game.db"))
		if err != nil {
			t.Fatalf("NewSQLite() error = %v", err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestNewSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "game.db")
	repo, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer repo.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("expected database directory to exist: %v", err)
	}
	if repo.Dialect() != DialectSQLite {
		t.Errorf("Dialect() = %q, want %q", repo.Dialect(), DialectSQLite)
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.db")
	ctx := context.Background()

	repo, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	seedFixture(t, repo)
	if err := repo.CreateSession(ctx, newTestSession("s1", "u1", "t1")); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	_ = repo.Close()

	repo, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer repo.Close()

	got, err := repo.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession() after reopen error = %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", got.UserID)
	}
}
