package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/readmore/internal/models"
)

// DateLayout is the only accepted date format for scan bounds.
const DateLayout = "2006-01-02"

// Defaults used when a caller leaves a field unset.
const (
	DefaultEditorPageSize = 5
	DefaultBatchPageSize  = 100
	DefaultRangeDays      = 30
)

var digitsRe = regexp.MustCompile(`^\d+$`)

// Warning is a recovered input problem. The planner substitutes a default
// and keeps going.
type Warning struct {
	Field   string
	Value   string
	Message string
}

func (w Warning) String() string {
	if w.Value == "" {
		return w.Message
	}
	return fmt.Sprintf("%s %q: %s", w.Field, w.Value, w.Message)
}

// SanitizeTerm normalises raw search box input: surrounding whitespace is
// dropped and whitespace-only input is empty.
func SanitizeTerm(raw string) string {
	return strings.TrimSpace(raw)
}

// EditorInput is a search request from the post picker.
type EditorInput struct {
	Term          string
	Page          int
	PageSize      int
	CurrentPostID int64
}

// EditorPlan holds the queries for one editor search. Lookup is set when
// the term could be a post ID; it is executed in addition to Search.
type EditorPlan struct {
	Term   string
	Search Spec
	Lookup *Spec
}

// PlanEditor builds the text search (and, for all-digit terms, the
// identifier lookup) for an editor search. The post being edited is
// never returned.
func PlanEditor(in EditorInput) EditorPlan {
	term := SanitizeTerm(in.Term)
	size := in.PageSize
	if size <= 0 {
		size = DefaultEditorPageSize
	}
	page := min(max(in.Page, 1), MaxPage(size))
	var exclude []int64
	if in.CurrentPostID > 0 {
		exclude = []int64{in.CurrentPostID}
	}

	search := Spec{
		Filter:     TextSearch{Term: term},
		Status:     models.StatusPublished,
		Exclude:    exclude,
		Order:      OrderDefault,
		Projection: ProjectionSummary,
		Page:       page,
		PageSize:   size,
	}
	if term == "" {
		search.Order = OrderDateDesc
	}

	plan := EditorPlan{Term: term, Search: search}

	if id, ok := ParseID(term); ok && id != in.CurrentPostID {
		plan.Lookup = &Spec{
			Filter:     IdentifierLookup{IDs: []int64{id}},
			Status:     models.StatusPublished,
			Exclude:    exclude,
			Projection: ProjectionSummary,
			Page:       1,
			PageSize:   1,
		}
	}
	return plan
}

// ParseID parses an all-digit string as a positive post ID.
func ParseID(s string) (int64, bool) {
	if !digitsRe.MatchString(s) {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// BatchInput is a marker scan request from the command line.
type BatchInput struct {
	Before      string
	After       string
	Now         time.Time
	DefaultDays int
	PageSize    int
}

// PlanBatch builds the marker-presence query for a scan between After and
// Before inclusive. Missing bounds default to today and DefaultDays ago;
// malformed bounds are replaced by their default with a warning.
func PlanBatch(in BatchInput) (Spec, DateRange, []Warning) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	days := in.DefaultDays
	if days <= 0 {
		days = DefaultRangeDays
	}
	size := in.PageSize
	if size <= 0 {
		size = DefaultBatchPageSize
	}

	today := startOfDay(now)
	var warnings []Warning

	before, w := parseBound("date-before", in.Before, today)
	if w != nil {
		warnings = append(warnings, *w)
	}
	after, w := parseBound("date-after", in.After, today.AddDate(0, 0, -days))
	if w != nil {
		warnings = append(warnings, *w)
	}
	if after.After(before) {
		warnings = append(warnings, Warning{
			Field:   "date-after",
			Value:   after.Format(DateLayout),
			Message: "is later than date-before " + before.Format(DateLayout) + "; bounds swapped",
		})
		after, before = before, after
	}

	rng := DateRange{After: after, Before: before}
	spec := Spec{
		Filter:     MarkerInRange{Range: rng},
		Status:     models.StatusPublished,
		Order:      OrderDefault,
		Projection: ProjectionIDs,
		Page:       1,
		PageSize:   size,
		SkipCache:  true,
	}
	return spec, rng, warnings
}

// ParseDate parses a strict YYYY-MM-DD date. Out-of-range fields such as
// month 13 or day 40 are rejected.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	if t.Format(DateLayout) != s {
		return time.Time{}, fmt.Errorf("date %q is not in %s form", s, "YYYY-MM-DD")
	}
	return t, nil
}

func parseBound(field, raw string, def time.Time) (time.Time, *Warning) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return def, &Warning{
			Field:   field,
			Value:   raw,
			Message: "is not a valid YYYY-MM-DD date; using " + def.Format(DateLayout),
		}
	}
	return t, nil
}
