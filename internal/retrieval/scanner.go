package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/readmore/internal/query"
)

// Pacer runs between scan pages to bound datastore load.
type Pacer func(ctx context.Context) error

// NoDelay is a Pacer that returns immediately.
func NoDelay(context.Context) error { return nil }

// Sleep returns a Pacer that waits d or until ctx is done.
func Sleep(d time.Duration) Pacer {
	if d <= 0 {
		return NoDelay
	}
	return func(ctx context.Context) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
}

// ScanResult summarises a finished or interrupted scan.
type ScanResult struct {
	// Pages is the number of pages fetched.
	Pages int
	// Found is the number of identifiers emitted.
	Found int
	// LastPage is the last page fetched successfully; a later scan can
	// resume from LastPage+1.
	LastPage int
	// NextPage is set when the scan stopped at its page limit while pages
	// were still coming back full.
	NextPage int
}

type scanState int

const (
	stateFetching scanState = iota
	stateDraining
	stateDone
)

// Scanner walks every page of a query in order, one page in flight at a time.
type Scanner struct {
	store     Datastore
	pageSize  int
	startPage int
	maxPages  int
	pace      Pacer
	logger    *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithPageSize sets the number of items requested per page.
func WithPageSize(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithStartPage resumes a scan at page n.
func WithStartPage(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.startPage = n
		}
	}
}

// WithMaxPages stops a scan after n pages. Zero means no limit.
func WithMaxPages(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.maxPages = n
		}
	}
}

// WithPacer sets the delay between pages.
func WithPacer(p Pacer) ScannerOption {
	return func(s *Scanner) {
		if p != nil {
			s.pace = p
		}
	}
}

// WithLogger sets the scan logger.
func WithLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewScanner creates a Scanner. Defaults: 100 items per page, start at
// page 1, one second between pages.
func NewScanner(store Datastore, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		store:     store,
		pageSize:  query.DefaultBatchPageSize,
		startPage: 1,
		pace:      Sleep(time.Second),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan fetches spec page by page and calls emit for every identifier. It
// continues while pages come back full, pausing between pages. Identifiers
// already emitted stay valid when a later page fails.
func (s *Scanner) Scan(ctx context.Context, spec query.Spec, emit func(id int64) error) (ScanResult, error) {
	spec.Projection = query.ProjectionIDs
	spec.SkipCache = true
	spec.PageSize = s.pageSize

	var res ScanResult
	lastPage := query.MaxPage(spec.PageSize)
	page := min(s.startPage, lastPage)
	var current *query.ResultPage
	state := stateFetching

	for state != stateDone {
		switch state {
		case stateFetching:
			if err := ctx.Err(); err != nil {
				return res, fmt.Errorf("retrieval: scan interrupted before page %d: %w", page, err)
			}
			p, err := s.store.Find(ctx, spec.WithPage(page))
			if err != nil {
				return res, fmt.Errorf("retrieval: scan page %d: %w", page, err)
			}
			res.Pages++
			res.LastPage = page
			current = p
			s.logger.Debug("scan: fetched page",
				slog.Int("page", page),
				slog.Int("items", len(p.Items)))
			state = stateDraining

		case stateDraining:
			for _, it := range current.Items {
				if err := emit(it.ID); err != nil {
					return res, fmt.Errorf("retrieval: emit %d: %w", it.ID, err)
				}
				res.Found++
			}
			if len(current.Items) != spec.PageSize || page >= lastPage {
				state = stateDone
				continue
			}
			if s.maxPages > 0 && res.Pages >= s.maxPages {
				res.NextPage = page + 1
				state = stateDone
				continue
			}
			if err := s.pace(ctx); err != nil {
				return res, fmt.Errorf("retrieval: scan interrupted after page %d: %w", page, err)
			}
			page++
			state = stateFetching
		}
	}
	return res, nil
}
