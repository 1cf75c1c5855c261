package index

import (
	"log/slog"
	"time"

	"github.com/starford/gistblog/internal/checksum"
	"github.com/starford/gistblog/internal/models"
)

// SyncStats reports what a Sync changed.
type SyncStats struct {
	Upserted  int
	Unchanged int
	Deleted   int
}

// PostChecksum fingerprints the parts of a post that change when its gist is edited.
func PostChecksum(p models.Post) string {
	return checksum.Fields(p.ID, p.UpdatedAt.UTC().Format(time.RFC3339Nano), p.Content)
}

// Sync brings the index up to date with a freshly built post set:
//   - new/changed posts are upserted
//   - posts no longer present are deleted from the index
func Sync(db PostIndex, posts []models.Post, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	current := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		current[p.ID] = struct{}{}

		cs := PostChecksum(p)
		if checksums[p.ID] == cs {
			stats.Unchanged++
			continue
		}
		if err := db.UpsertPost(p, cs); err != nil {
			logger.Warn("sync: index failed", slog.String("id", p.ID), slog.String("error", err.Error()))
			continue
		}
		stats.Upserted++
		logger.Debug("sync: indexed", slog.String("id", p.ID))
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := current[id]; ok {
			continue
		}
		if err := db.DeletePost(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		stats.Deleted++
		logger.Debug("sync: removed stale", slog.String("id", id))
	}

	return stats, nil
}
