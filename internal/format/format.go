// Package format turns search results into display fragments: highlighted
// titles, bounded excerpts and the rendered read-more link.
package format

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/readmore/internal/models"
)

// Ellipsis separates and bounds excerpt windows.
const Ellipsis = "…"

// Default excerpt settings.
const (
	DefaultContextWords = 5
	DefaultBudget       = 50
)

var tagRe = regexp.MustCompile(`</?[^>]+(>|$)`)

// Segment is a run of display text. Highlighted runs match the search term.
type Segment struct {
	Text        string `json:"text"`
	Highlighted bool   `json:"highlighted"`
}

// Options bounds excerpt extraction.
type Options struct {
	// ContextWords is the number of words kept on each side of a match.
	ContextWords int
	// Budget is the maximum excerpt length in characters before the
	// trailing ellipsis.
	Budget int
}

func (o Options) withDefaults() Options {
	if o.ContextWords <= 0 {
		o.ContextWords = DefaultContextWords
	}
	if o.Budget <= 0 {
		o.Budget = DefaultBudget
	}
	return o
}

// StripTags removes anything that looks like an HTML tag, including an
// unterminated tag at the end of s.
func StripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

// Title returns the tag-free title split around case-insensitive matches
// of term. Without a term or a match the whole title is one plain segment.
func Title(title, term string) []Segment {
	plain := StripTags(title)
	if term == "" {
		return []Segment{{Text: plain}}
	}
	segs := Highlight(plain, term)
	if !hasHighlight(segs) {
		return []Segment{{Text: plain}}
	}
	return segs
}

// Excerpt returns a bounded, highlighted excerpt of body around every
// whole-word occurrence of term, or nil when term is empty or absent.
// Word boundaries are Unicode aware and only apply to the edges of term
// that are themselves word characters, so "café" and "C#" match.
//
// Highlighting runs after truncation, so a match cut by the budget is not
// marked.
func Excerpt(body, term string, opts Options) []Segment {
	if term == "" {
		return nil
	}
	opts = opts.withDefaults()

	text := StripTags(body)
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(term))
	if err != nil {
		return nil
	}

	var (
		snippets []string
		first    = -1
		pos      int
	)
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if loc[0] < pos || !wholeWord(text, loc[0], loc[1]) {
			continue
		}
		start := contextStart(text, loc[0], pos, opts.ContextWords)
		end := contextEnd(text, loc[1], opts.ContextWords)
		if first < 0 {
			first = start
		}
		snippets = append(snippets, text[start:end])
		pos = end
	}
	if len(snippets) == 0 {
		return nil
	}

	combined := strings.Join(snippets, Ellipsis)
	if first > 0 {
		combined = Ellipsis + combined
	}
	return Highlight(Truncate(combined, opts.Budget), term)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wholeWord reports whether text[start:end] is not glued to a neighbouring
// word on either word-character edge.
func wholeWord(text string, start, end int) bool {
	if first, _ := utf8.DecodeRuneInString(text[start:end]); isWordRune(first) && start > 0 {
		if prev, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(prev) {
			return false
		}
	}
	if last, _ := utf8.DecodeLastRuneInString(text[start:end]); isWordRune(last) && end < len(text) {
		if next, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(next) {
			return false
		}
	}
	return true
}

// contextStart walks back from i over the rest of the current token and up
// to n whitespace separated words, never before floor.
func contextStart(text string, i, floor, n int) int {
	start := backOver(text, i, floor, false)
	for k := 0; k < n; k++ {
		gap := backOver(text, start, floor, true)
		word := backOver(text, gap, floor, false)
		if gap == start || word == gap {
			break
		}
		start = word
	}
	return start
}

// contextEnd walks forward from i over the rest of the current token and up
// to n whitespace separated words.
func contextEnd(text string, i, n int) int {
	end := forwardOver(text, i, false)
	for k := 0; k < n; k++ {
		gap := forwardOver(text, end, true)
		word := forwardOver(text, gap, false)
		if gap == end || word == gap {
			break
		}
		end = word
	}
	return end
}

func backOver(text string, i, floor int, space bool) int {
	for i > floor {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		if unicode.IsSpace(r) != space {
			break
		}
		i -= size
	}
	return i
}

func forwardOver(text string, i int, space bool) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) != space {
			break
		}
		i += size
	}
	return i
}

// Truncate cuts s to limit characters, trims the cut and appends an
// ellipsis. Strings within the limit are returned unchanged.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + Ellipsis
}

// Highlight splits s around case-insensitive occurrences of term. Empty
// plain runs between adjacent matches are dropped.
func Highlight(s, term string) []Segment {
	if term == "" {
		return []Segment{{Text: s}}
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(term))
	if err != nil {
		return []Segment{{Text: s}}
	}
	locs := re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return []Segment{{Text: s}}
	}
	segs := make([]Segment, 0, 2*len(locs)+1)
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			segs = append(segs, Segment{Text: s[prev:loc[0]]})
		}
		segs = append(segs, Segment{Text: s[loc[0]:loc[1]], Highlighted: true})
		prev = loc[1]
	}
	if prev < len(s) {
		segs = append(segs, Segment{Text: s[prev:]})
	}
	return segs
}

// Join concatenates segment text.
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

func hasHighlight(segs []Segment) bool {
	for _, s := range segs {
		if s.Highlighted {
			return true
		}
	}
	return false
}

// Select returns the selection for the post with id among items.
func Select(items []models.Post, id int64, baseURL string) (models.Selection, bool) {
	for _, p := range items {
		if p.ID == id {
			return SelectionOf(p, baseURL), true
		}
	}
	return models.Selection{}, false
}

// SelectionOf builds the persisted selection for p.
func SelectionOf(p models.Post, baseURL string) models.Selection {
	return models.Selection{
		ID:    p.ID,
		Title: StripTags(p.Title),
		Link:  p.Permalink(baseURL),
	}
}

// DefaultLabel prefixes the selected title in the rendered link.
const DefaultLabel = "Read More: "

// ReadMoreHTML renders the link block for sel, or "" when nothing is
// selected. Stale selections render their last-known title and link.
func ReadMoreHTML(sel models.Selection, label string) string {
	if sel.Empty() {
		return ""
	}
	if label == "" {
		label = DefaultLabel
	}
	return `<p class="read-more"><a href="` + html.EscapeString(sel.Link) + `">` +
		html.EscapeString(label+sel.Title) + `</a></p>`
}
