// Package retrieval runs queries against a datastore,
// either one page per call or as a paced sequential scan.
package retrieval

import (
	"context"
	"fmt"

	"github.com/starford/readmore/internal/pagination"
	"github.com/starford/readmore/internal/query"
)

// Datastore runs one page of a query.
type Datastore interface {
	Find(ctx context.Context, spec query.Spec) (*query.ResultPage, error)
}

// Counter is implemented by datastores that can count all matches of a
// query. Only interactive callers use it; scans rely on the full-page
// heuristic instead.
type Counter interface {
	Count(ctx context.Context, spec query.Spec) (int, error)
}

// Engine serves interactive, single-page requests.
type Engine struct {
	store Datastore
}

// NewEngine creates an Engine over store.
func NewEngine(store Datastore) *Engine {
	return &Engine{store: store}
}

// Page executes spec with exactly one datastore round trip.
func (e *Engine) Page(ctx context.Context, spec query.Spec) (*query.ResultPage, error) {
	page, err := e.store.Find(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("retrieval: page %d: %w", spec.Page, err)
	}
	return page, nil
}

// TotalPages returns the number of pages spec spans, or nil when the
// datastore cannot count.
func (e *Engine) TotalPages(ctx context.Context, spec query.Spec) (*int, error) {
	c, ok := e.store.(Counter)
	if !ok {
		return nil, nil
	}
	n, err := c.Count(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("retrieval: count: %w", err)
	}
	total := pagination.TotalPages(n, spec.PageSize)
	return &total, nil
}
