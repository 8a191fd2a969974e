// Package models defines the domain types for readmore.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Status is a post publication status. Values other than the named
// constants are preserved as-is.
type Status string

// Publication statuses.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "publish"
)

// SaveKind distinguishes canonical saves from autosave and revision writes.
type SaveKind string

// Save kinds.
const (
	SaveCanonical SaveKind = "canonical"
	SaveAutosave  SaveKind = "autosave"
	SaveRevision  SaveKind = "revision"
)

// ParseSaveKind maps a raw value to a SaveKind. Empty means canonical.
func ParseSaveKind(raw string) (SaveKind, bool) {
	switch SaveKind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SaveCanonical:
		return SaveCanonical, true
	case SaveAutosave:
		return SaveAutosave, true
	case SaveRevision:
		return SaveRevision, true
	}
	return "", false
}

// IsCanonical reports whether the save persists the post's final state.
func (k SaveKind) IsCanonical() bool {
	return k == SaveCanonical || k == ""
}

// Post is a content item owned by the datastore.
type Post struct {
	ID          int64     `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Body        string    `json:"body,omitempty" db:"body"`
	Status      Status    `json:"status" db:"status"`
	Slug        string    `json:"slug,omitempty" db:"slug"`
	PublishedAt time.Time `json:"published_at" db:"published_at"`
	ModifiedAt  time.Time `json:"modified_at" db:"modified_at"`
}

// Permalink returns the canonical link of the post under base.
func (p Post) Permalink(base string) string {
	base = strings.TrimRight(base, "/")
	if p.Slug != "" {
		return base + "/" + p.Slug + "/"
	}
	return base + "/?p=" + strconv.FormatInt(p.ID, 10)
}

// Selection is the chosen post as persisted in the embedding block's
// attributes. It references the post by ID only and may go stale.
type Selection struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Empty reports whether nothing has been selected.
func (s Selection) Empty() bool {
	return s.ID <= 0
}
