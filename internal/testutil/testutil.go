// Package testutil provides shared test helpers for setting up databases,
// content directories and posts.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/readmore/internal/index"
	"github.com/starford/readmore/internal/models"
	"github.com/starford/readmore/internal/storage"
)

// MarkedBody is a post body embedding the default read-more block.
const MarkedBody = `<!-- wp:starford/read-more {"selectedPost":{"id":1,"title":"Other","link":"https://example.test/other/"}} /-->` +
	"\n<p>Body with the block.</p>"

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T, opts ...index.Option) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "readmore-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContent creates a temporary content directory with a storage.Provider.
func TestContent(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// SavePosts stores posts with canonical saves.
func SavePosts(t *testing.T, db *index.DB, posts ...models.Post) {
	t.Helper()
	for _, p := range posts {
		if _, err := db.SavePost(context.Background(), p, models.SaveCanonical); err != nil {
			t.Fatalf("SavePost(%d): %v", p.ID, err)
		}
	}
}

// Logger returns a logger that discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
