package internal

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/starford/readmore/internal/index"
	"github.com/starford/readmore/internal/postservice"
	"github.com/starford/readmore/internal/retrieval"
)

// ScanArgs are the command line inputs of a marker scan. Bad dates are
// replaced by defaults with a warning.
type ScanArgs struct {
	Before    string
	After     string
	StartPage int
	// Pacer overrides the configured delay between pages.
	Pacer retrieval.Pacer
	// Now anchors the default date range; zero means the current time.
	Now time.Time
}

// RunScan prints the ID of every published post embedding the read-more
// block, one per line, as each page arrives. Logs go to stderr so stdout
// stays machine readable. IDs already printed stay printed when a later
// page fails. A scan already holding the lock makes RunScan fail with
// apperr.ErrScanInProgress.
func RunScan(ctx context.Context, args ScanArgs, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(app.logOut, cfg.App.LogLevel)

	db, err := index.Open(cfg.SQLite.Path, cfg.IndexOptions()...)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	svc := postservice.New(db, cfg.ServiceConfig(), logger)
	_, err = svc.Scan(ctx, postservice.ScanRequest{
		Before:    args.Before,
		After:     args.After,
		StartPage: args.StartPage,
		Now:       args.Now,
		Pacer:     args.Pacer,
	}, func(id int64) error {
		_, err := fmt.Fprintln(app.out, id)
		return err
	})
	return err
}
