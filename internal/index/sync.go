package index

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/readmore/internal/apperr"
	"github.com/starford/readmore/internal/parser"
	"github.com/starford/readmore/internal/storage"
)

// SyncStats counts what a Sync pass changed.
type SyncStats struct {
	Imported int
	Removed  int
	Skipped  int
	Failed   int
}

// Sync walks the content directory and brings the database up to date:
//   - new/changed files are parsed and saved through the marker-aware save path
//   - files removed from disk are forgotten
func Sync(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	metas, err := store.List("")
	if err != nil {
		return stats, err
	}

	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		return stats, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			stats.Skipped++
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			stats.Failed++
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res, err := importFile(ctx, db, m.Path, data)
		if err != nil {
			stats.Failed++
			logger.Warn("sync: import failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Imported++
		logger.Debug("sync: imported",
			slog.String("path", m.Path),
			slog.String("marker", res.Delta.String()))
	}

	// Forget files that are gone.
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if _, err := db.DeleteBySource(ctx, p); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	return stats, nil
}

// importFile parses data and saves it as the post it describes.
func importFile(ctx context.Context, db *DB, path string, data []byte) (SaveResult, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return SaveResult{}, err
	}
	post, kind, err := res.Post()
	if err != nil {
		return SaveResult{}, err
	}
	return db.ImportPost(ctx, post, kind, Source{Path: path, Checksum: storage.Checksum(data)})
}
