// Package testutil provides shared test helpers for databases, stores and gist fixtures.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/starford/gistblog/internal/index"
	"github.com/starford/gistblog/internal/models"
	"github.com/starford/gistblog/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "gistblog-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary directory wrapped in a storage.Provider.
func TestStore(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// Gist builds a public gist fixture with one markdown file per entry of files.
func Gist(id, description string, created time.Time, files map[string]string) models.Gist {
	g := models.Gist{
		ID:          id,
		URL:         "https://api.github.com/gists/" + id,
		HTMLURL:     "https://gist.github.com/rbstp/" + id,
		Description: description,
		Public:      true,
		Files:       make(map[string]models.GistFile, len(files)),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for name, content := range files {
		g.Files[name] = models.GistFile{Filename: name, Content: content}
	}
	return g
}
