package postservice

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/starford/readmore/internal/apperr"
)

// acquireScanLock takes the cross-process scan lock at path without
// blocking. Every scan entry point shares it, so the command line and the
// MCP tool never page the index at the same time.
func acquireScanLock(path string, logger *slog.Logger) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire scan lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: lock %s is held", apperr.ErrScanInProgress, path)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			logger.Warn("release scan lock", slog.String("error", err.Error()))
		}
	}, nil
}
