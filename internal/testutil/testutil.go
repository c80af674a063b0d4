// Package testutil provides shared test helpers for setting up stores and data directories.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/storage"
	"github.com/starford/talentflow/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "talentflow-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestFS creates a temporary data directory with a storage.Provider.
func TestFS(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// Jobs returns n active jobs with ids and orders 1..n.
func Jobs(n int) []models.Job {
	out := make([]models.Job, n)
	for i := range out {
		id := int64(i + 1)
		out[i] = models.Job{
			ID:     id,
			Title:  fmt.Sprintf("Job %d", id),
			Slug:   fmt.Sprintf("job-%d", id),
			Status: models.JobActive,
			Tags:   []string{"Remote"},
			Order:  i + 1,
		}
	}
	return out
}

// Seed imports n jobs and the given candidates into db.
func Seed(t *testing.T, db *store.DB, n int, candidates ...models.Candidate) {
	t.Helper()
	if err := db.Import(context.Background(), Jobs(n), candidates); err != nil {
		t.Fatalf("seed: %v", err)
	}
}
