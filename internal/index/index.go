package index

import "github.com/starford/gistblog/internal/models"

// PostIndex defines the interface for post indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type PostIndex interface {
	UpsertPost(p models.Post, checksum string) error
	DeletePost(id string) error
	GetPost(id string) (*models.Post, error)
	ListPosts(limit, offset int, tag string) ([]PostRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies PostIndex at compile time.
var _ PostIndex = (*DB)(nil)
