package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/starford/readmore/internal/models"
	"github.com/starford/readmore/internal/query"
)

// fakeStore serves total sequential IDs in pages and records every request.
type fakeStore struct {
	total    int
	failPage int
	requests []query.Spec
}

var errUnavailable = errors.New("datastore unavailable")

func (f *fakeStore) Find(_ context.Context, spec query.Spec) (*query.ResultPage, error) {
	f.requests = append(f.requests, spec)
	if f.failPage != 0 && spec.Page == f.failPage {
		return nil, errUnavailable
	}
	out := &query.ResultPage{Page: spec.Page, PageSize: spec.PageSize}
	for i := spec.Offset(); i < f.total && len(out.Items) < spec.PageSize; i++ {
		out.Items = append(out.Items, models.Post{ID: int64(i + 1)})
	}
	return out, nil
}

type countingStore struct {
	fakeStore
	count int
}

func (c *countingStore) Count(context.Context, query.Spec) (int, error) {
	return c.count, nil
}

func markerSpec() query.Spec {
	spec, _, _ := query.PlanBatch(query.BatchInput{})
	return spec
}

func TestScan_StopsOnShortPage(t *testing.T) {
	store := &fakeStore{total: 250}
	pauses := 0
	s := NewScanner(store, WithPageSize(100), WithPacer(func(context.Context) error {
		pauses++
		return nil
	}))

	var ids []int64
	res, err := s.Scan(context.Background(), markerSpec(), func(id int64) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Pages != 3 || len(store.requests) != 3 {
		t.Errorf("pages = %d, requests = %d, want 3", res.Pages, len(store.requests))
	}
	if res.Found != 250 || len(ids) != 250 {
		t.Errorf("found = %d, emitted = %d, want 250", res.Found, len(ids))
	}
	if pauses != 2 {
		t.Errorf("pauses = %d, want 2 (between pages only)", pauses)
	}
	for i, r := range store.requests {
		if r.Page != i+1 {
			t.Errorf("request %d page = %d", i, r.Page)
		}
		if r.Projection != query.ProjectionIDs || !r.SkipCache {
			t.Errorf("request %d should be id-only and uncached", i)
		}
	}
	if ids[0] != 1 || ids[249] != 250 {
		t.Errorf("ids out of order: first %d last %d", ids[0], ids[249])
	}
}

func TestScan_EmptyFirstPage(t *testing.T) {
	store := &fakeStore{total: 0}
	s := NewScanner(store, WithPacer(NoDelay))
	emitted := 0
	res, err := s.Scan(context.Background(), markerSpec(), func(int64) error {
		emitted++
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Pages != 1 || res.Found != 0 || emitted != 0 {
		t.Errorf("result = %+v, emitted = %d", res, emitted)
	}
}

func TestScan_ExactMultipleFetchesTrailingEmptyPage(t *testing.T) {
	store := &fakeStore{total: 200}
	s := NewScanner(store, WithPageSize(100), WithPacer(NoDelay))
	res, err := s.Scan(context.Background(), markerSpec(), func(int64) error { return nil })
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Pages != 3 || res.Found != 200 {
		t.Errorf("result = %+v, want 3 pages and 200 found", res)
	}
}

func TestScan_FailureKeepsPartialProgress(t *testing.T) {
	store := &fakeStore{total: 500, failPage: 3}
	s := NewScanner(store, WithPageSize(100), WithPacer(NoDelay))
	var ids []int64
	res, err := s.Scan(context.Background(), markerSpec(), func(id int64) error {
		ids = append(ids, id)
		return nil
	})
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("err = %v, want datastore error", err)
	}
	if len(ids) != 200 || res.Found != 200 || res.LastPage != 2 {
		t.Errorf("result = %+v, emitted = %d", res, len(ids))
	}
}

func TestScan_ResumeFromStartPage(t *testing.T) {
	store := &fakeStore{total: 250}
	s := NewScanner(store, WithPageSize(100), WithStartPage(3), WithPacer(NoDelay))
	res, err := s.Scan(context.Background(), markerSpec(), func(int64) error { return nil })
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Pages != 1 || res.Found != 50 || res.LastPage != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestScan_MaxPagesReportsNextPage(t *testing.T) {
	store := &fakeStore{total: 250}
	pauses := 0
	s := NewScanner(store, WithPageSize(100), WithMaxPages(2), WithPacer(func(context.Context) error {
		pauses++
		return nil
	}))
	res, err := s.Scan(context.Background(), markerSpec(), func(int64) error { return nil })
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Pages != 2 || res.Found != 200 || res.NextPage != 3 {
		t.Errorf("result = %+v, want 2 pages, 200 found, next page 3", res)
	}
	if pauses != 1 {
		t.Errorf("pauses = %d, want 1", pauses)
	}

	res, err = NewScanner(store, WithPageSize(100), WithMaxPages(3), WithPacer(NoDelay)).
		Scan(context.Background(), markerSpec(), func(int64) error { return nil })
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Found != 250 || res.NextPage != 0 {
		t.Errorf("result = %+v, want all 250 and no next page", res)
	}
}

func TestScan_ClampsHugeStartPage(t *testing.T) {
	store := &fakeStore{total: 10}
	s := NewScanner(store, WithPageSize(100), WithStartPage(math.MaxInt), WithPacer(NoDelay))
	res, err := s.Scan(context.Background(), markerSpec(), func(int64) error { return nil })
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Pages != 1 || res.Found != 0 || res.LastPage != query.MaxPage(100) {
		t.Errorf("result = %+v", res)
	}
	if off := store.requests[0].Offset(); off < 0 {
		t.Errorf("offset = %d overflowed", off)
	}
}

func TestScan_PacerCancellation(t *testing.T) {
	store := &fakeStore{total: 1000}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScanner(store, WithPageSize(100), WithPacer(func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}))
	res, err := s.Scan(ctx, markerSpec(), func(int64) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Found != 100 {
		t.Errorf("found = %d, want the first page", res.Found)
	}
}

func TestScan_EmitErrorStops(t *testing.T) {
	store := &fakeStore{total: 10}
	stop := errors.New("stdout closed")
	s := NewScanner(store, WithPacer(NoDelay))
	_, err := s.Scan(context.Background(), markerSpec(), func(id int64) error {
		if id == 5 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("err = %v", err)
	}
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(time.Hour)(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if err := Sleep(0)(context.Background()); err != nil {
		t.Errorf("zero sleep err = %v", err)
	}
}

func TestEngine_Page(t *testing.T) {
	store := &fakeStore{total: 12}
	e := NewEngine(store)
	spec := query.Spec{Filter: query.TextSearch{}, Page: 3, PageSize: 5}
	page, err := e.Page(context.Background(), spec)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page.Items) != 2 || len(store.requests) != 1 {
		t.Errorf("items = %d, requests = %d", len(page.Items), len(store.requests))
	}
}

func TestEngine_PageError(t *testing.T) {
	e := NewEngine(&fakeStore{failPage: 1})
	if _, err := e.Page(context.Background(), query.Spec{Page: 1, PageSize: 5}); !errors.Is(err, errUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestEngine_TotalPages(t *testing.T) {
	spec := query.Spec{Page: 1, PageSize: 5}

	total, err := NewEngine(&fakeStore{}).TotalPages(context.Background(), spec)
	if err != nil || total != nil {
		t.Errorf("non-counting store: total = %v, err = %v", total, err)
	}

	total, err = NewEngine(&countingStore{count: 11}).TotalPages(context.Background(), spec)
	if err != nil {
		t.Fatalf("TotalPages: %v", err)
	}
	if total == nil || *total != 3 {
		t.Errorf("total = %v, want 3", total)
	}
}
