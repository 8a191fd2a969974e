// Package query builds datastore queries for editor searches,
// identifier lookups and marker scans.
package query

import (
	"math"
	"time"

	"github.com/starford/readmore/internal/models"
)

// Kind identifies a Filter variant.
type Kind int

// Filter kinds.
const (
	KindText Kind = iota + 1
	KindIdentifier
	KindMarkerInRange
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindIdentifier:
		return "identifier"
	case KindMarkerInRange:
		return "marker_in_range"
	default:
		return "unknown"
	}
}

// Filter is the tagged variant selecting which posts a Spec matches.
// Only the types in this package implement it.
type Filter interface {
	Kind() Kind
	isFilter()
}

// TextSearch matches posts whose title or body contains Term.
// An empty Term matches every post.
type TextSearch struct {
	Term string
}

// Kind implements Filter.
func (TextSearch) Kind() Kind { return KindText }
func (TextSearch) isFilter()  {}

// IdentifierLookup matches posts by exact ID.
type IdentifierLookup struct {
	IDs []int64
}

// Kind implements Filter.
func (IdentifierLookup) Kind() Kind { return KindIdentifier }
func (IdentifierLookup) isFilter()  {}

// MarkerInRange matches tagged posts published within [After, Before],
// both bounds inclusive at day granularity.
type MarkerInRange struct {
	Range DateRange
}

// Kind implements Filter.
func (MarkerInRange) Kind() Kind { return KindMarkerInRange }
func (MarkerInRange) isFilter()  {}

// DateRange is an inclusive range of calendar days in UTC.
type DateRange struct {
	After  time.Time
	Before time.Time
}

// Lower returns the first instant inside the range.
func (r DateRange) Lower() time.Time {
	return startOfDay(r.After)
}

// Upper returns the first instant after the range.
func (r DateRange) Upper() time.Time {
	return startOfDay(r.Before).AddDate(0, 0, 1)
}

// String formats the range as "YYYY-MM-DD..YYYY-MM-DD".
func (r DateRange) String() string {
	return r.After.Format(DateLayout) + ".." + r.Before.Format(DateLayout)
}

// Order selects result ordering.
type Order int

const (
	// OrderDefault leaves ordering to the datastore.
	OrderDefault Order = iota
	// OrderDateDesc returns the most recently published posts first.
	OrderDateDesc
)

// Projection selects the columns a query returns.
type Projection int

const (
	// ProjectionSummary returns the fields needed to display a post.
	ProjectionSummary Projection = iota
	// ProjectionIDs returns identifiers only.
	ProjectionIDs
)

// Spec is a complete query for one page of results.
type Spec struct {
	Filter     Filter
	Status     models.Status
	Exclude    []int64
	Order      Order
	Projection Projection
	Page       int
	PageSize   int
	// SkipCache stops the datastore from populating its summary cache.
	SkipCache bool
}

// MaxPage is the highest page whose offset stays within a 32-bit
// integer for pageSize.
func MaxPage(pageSize int) int {
	return math.MaxInt32 / max(pageSize, 1)
}

// Offset returns the number of rows before the requested page.
func (s Spec) Offset() int {
	if s.Page <= 1 || s.PageSize <= 0 {
		return 0
	}
	return (s.Page - 1) * s.PageSize
}

// WithPage returns a copy of s for another page.
func (s Spec) WithPage(page int) Spec {
	s.Page = page
	return s
}

// ResultPage is one page of query results.
type ResultPage struct {
	Items    []models.Post
	Page     int
	PageSize int
}

// Full reports whether the page holds exactly PageSize items, which is
// the signal that another page may follow.
func (p *ResultPage) Full() bool {
	return p != nil && p.PageSize > 0 && len(p.Items) == p.PageSize
}

// IDs returns the identifiers on the page in order.
func (p *ResultPage) IDs() []int64 {
	if p == nil {
		return nil
	}
	out := make([]int64, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.ID
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
