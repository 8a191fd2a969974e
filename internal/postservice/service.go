// Package postservice coordinates the post index, the query planner, the
// retrieval engine and the formatter behind the interactive search surface,
// the save hook and the batch marker scan.
package postservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/readmore/internal/apperr"
	"github.com/starford/readmore/internal/format"
	"github.com/starford/readmore/internal/index"
	"github.com/starford/readmore/internal/models"
	"github.com/starford/readmore/internal/pagination"
	"github.com/starford/readmore/internal/query"
	"github.com/starford/readmore/internal/retrieval"
)

// NoMatchesMessage is logged when a scan finds nothing.
const NoMatchesMessage = "no posts found containing the read more block"

// Config tunes search presentation and scanning.
type Config struct {
	BaseURL       string
	Label         string
	PageSize      int
	WindowSize    int
	Excerpt       format.Options
	BatchPageSize int
	BatchDelay    time.Duration
	DefaultDays   int
	// LockPath is the cross-process scan lock; empty disables locking.
	LockPath string
}

// SearchItem is one search result prepared for display.
type SearchItem struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	Link            string           `json:"link"`
	TitleSegments   []format.Segment `json:"title_segments"`
	ExcerptSegments []format.Segment `json:"excerpt_segments,omitempty"`
}

// SearchResult is one page of an editor search. IdentifierMatch is the
// post whose ID equals the numeric term, shown apart from Items.
type SearchResult struct {
	Term            string             `json:"term"`
	Items           []SearchItem       `json:"items"`
	IdentifierMatch *SearchItem        `json:"identifier_match,omitempty"`
	Page            int                `json:"page"`
	TotalPages      *int               `json:"total_pages"`
	Window          *pagination.Window `json:"window,omitempty"`
}

// SelectionResult is a resolved selection and its rendered link block.
type SelectionResult struct {
	Selection models.Selection `json:"selection"`
	HTML      string           `json:"html"`
	// Stale is set when the post no longer resolves and the last-known
	// selection was rendered instead.
	Stale bool `json:"stale"`
}

// ScanRequest is a batch marker scan request.
type ScanRequest struct {
	Before    string
	After     string
	StartPage int
	Now       time.Time
	// MaxPages bounds the pages fetched; zero scans to the end.
	MaxPages int
	// Pacer overrides the service pacer for this request.
	Pacer retrieval.Pacer
}

// ScanReport summarises a batch scan.
type ScanReport struct {
	Range    query.DateRange
	Warnings []query.Warning
	Result   retrieval.ScanResult
}

// Service coordinates index, planner, engine and formatter operations.
type Service struct {
	db     index.PostIndex
	engine *retrieval.Engine
	cfg    Config
	pacer  retrieval.Pacer
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPacer replaces the pause between scan pages, which otherwise sleeps
// for Config.BatchDelay.
func WithPacer(p retrieval.Pacer) Option {
	return func(s *Service) {
		if p != nil {
			s.pacer = p
		}
	}
}

// New creates a post service.
func New(db index.PostIndex, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = query.DefaultEditorPageSize
	}
	if cfg.BatchPageSize <= 0 {
		cfg.BatchPageSize = query.DefaultBatchPageSize
	}
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = query.DefaultRangeDays
	}
	s := &Service{
		db:     db,
		engine: retrieval.NewEngine(db),
		cfg:    cfg,
		pacer:  retrieval.Sleep(cfg.BatchDelay),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs an editor search: a text search page plus, for numeric
// terms, an identifier lookup.
func (s *Service) Search(ctx context.Context, rawTerm string, page int, currentPostID int64) (*SearchResult, error) {
	plan := query.PlanEditor(query.EditorInput{
		Term:          query.SanitizeTerm(rawTerm),
		Page:          page,
		PageSize:      s.cfg.PageSize,
		CurrentPostID: currentPostID,
	})

	// Count first so the page, its total and the window all come from one
	// clamped value.
	total, err := s.engine.TotalPages(ctx, plan.Search)
	if err != nil {
		return nil, err
	}
	var window *pagination.Window
	if total != nil {
		if *total == 0 {
			plan.Search.Page = 1
		} else {
			w := pagination.Compute(plan.Search.Page, *total, s.cfg.WindowSize)
			plan.Search.Page = w.Current
			window = &w
		}
	}

	res, err := s.engine.Page(ctx, plan.Search)
	if err != nil {
		return nil, err
	}

	out := &SearchResult{
		Term:       plan.Term,
		Items:      make([]SearchItem, 0, len(res.Items)),
		Page:       plan.Search.Page,
		TotalPages: total,
		Window:     window,
	}
	for _, p := range res.Items {
		out.Items = append(out.Items, s.decorate(p, plan.Term))
	}

	if plan.Lookup != nil {
		match, err := s.engine.Page(ctx, *plan.Lookup)
		if err != nil {
			return nil, err
		}
		if len(match.Items) > 0 {
			item := s.decorate(match.Items[0], plan.Term)
			out.IdentifierMatch = &item
		}
	}
	return out, nil
}

func (s *Service) decorate(p models.Post, term string) SearchItem {
	sel := format.SelectionOf(p, s.cfg.BaseURL)
	return SearchItem{
		ID:              p.ID,
		Title:           sel.Title,
		Link:            sel.Link,
		TitleSegments:   format.Title(p.Title, term),
		ExcerptSegments: format.Excerpt(p.Body, term, s.cfg.Excerpt),
	}
}

// Select resolves the post with id into a selection. When the post no
// longer resolves, last is rendered as a stale selection; without a
// last-known selection the lookup is ErrNotFound.
func (s *Service) Select(ctx context.Context, id int64, last models.Selection) (*SelectionResult, error) {
	p, err := s.db.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) && !last.Empty() && last.ID == id {
			return &SelectionResult{
				Selection: last,
				HTML:      format.ReadMoreHTML(last, s.cfg.Label),
				Stale:     true,
			}, nil
		}
		return nil, err
	}
	sel := format.SelectionOf(*p, s.cfg.BaseURL)
	return &SelectionResult{
		Selection: sel,
		HTML:      format.ReadMoreHTML(sel, s.cfg.Label),
	}, nil
}

// SavePost is the save hook. Canonical saves reconcile the marker tag;
// autosave and revision writes never touch it.
func (s *Service) SavePost(ctx context.Context, p models.Post, kind models.SaveKind) (index.SaveResult, error) {
	res, err := s.db.SavePost(ctx, p, kind)
	if err != nil {
		return res, err
	}
	s.logger.Info("post saved",
		slog.Int64("id", p.ID),
		slog.String("kind", string(kind)),
		slog.String("marker", res.Delta.String()),
		slog.Bool("has_marker", res.HasMarker))
	return res, nil
}

// GetPost returns a post by ID.
func (s *Service) GetPost(ctx context.Context, id int64) (*models.Post, error) {
	return s.db.GetPost(ctx, id)
}

// DeletePost removes a post and its marker tag.
func (s *Service) DeletePost(ctx context.Context, id int64) error {
	if err := s.db.DeletePost(ctx, id); err != nil {
		return err
	}
	s.logger.Info("post deleted", slog.Int64("id", id))
	return nil
}

// HasMarker reports whether a post currently carries the marker tag.
func (s *Service) HasMarker(ctx context.Context, id int64) (bool, error) {
	return s.db.HasMarker(ctx, id)
}

// Scan walks every published, tagged post in the requested date range and
// calls emit with each ID as it is found. Input problems are logged as
// warnings and replaced by defaults. While a scan runs it holds the scan
// lock; a second scan fails with apperr.ErrScanInProgress.
func (s *Service) Scan(ctx context.Context, req ScanRequest, emit func(id int64) error) (*ScanReport, error) {
	if s.cfg.LockPath != "" {
		unlock, err := acquireScanLock(s.cfg.LockPath, s.logger)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	spec, rng, warnings := query.PlanBatch(query.BatchInput{
		Before:      req.Before,
		After:       req.After,
		Now:         req.Now,
		DefaultDays: s.cfg.DefaultDays,
		PageSize:    s.cfg.BatchPageSize,
	})
	for _, w := range warnings {
		s.logger.Warn("scan: "+w.String(), slog.String("field", w.Field), slog.String("value", w.Value))
	}

	pacer := req.Pacer
	if pacer == nil {
		pacer = s.pacer
	}
	scanner := retrieval.NewScanner(s.db,
		retrieval.WithPageSize(s.cfg.BatchPageSize),
		retrieval.WithStartPage(req.StartPage),
		retrieval.WithMaxPages(req.MaxPages),
		retrieval.WithPacer(pacer),
		retrieval.WithLogger(s.logger),
	)

	s.logger.Info("scan: started", slog.String("range", rng.String()), slog.Int("start_page", max(req.StartPage, 1)))
	res, err := scanner.Scan(ctx, spec, emit)
	report := &ScanReport{Range: rng, Warnings: warnings, Result: res}
	if err != nil {
		s.logger.Error("scan: failed",
			slog.String("error", err.Error()),
			slog.Int("found", res.Found),
			slog.Int("last_page", res.LastPage))
		return report, fmt.Errorf("postservice: scan: %w", err)
	}
	if res.Found == 0 {
		s.logger.Warn(NoMatchesMessage, slog.String("range", rng.String()))
	}
	s.logger.Info("scan: finished",
		slog.Int("found", res.Found),
		slog.Int("pages", res.Pages),
		slog.Int("next_page", res.NextPage))
	return report, nil
}
