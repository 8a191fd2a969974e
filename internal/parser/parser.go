// Package parser splits content files into YAML frontmatter and an HTML
// body, and maps them onto posts.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/readmore/internal/apperr"
	"github.com/starford/readmore/internal/models"
)

var h1Re = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Frontmatter is the metadata block at the top of a content file.
type Frontmatter struct {
	ID     int64  `yaml:"id"`
	Title  string `yaml:"title"`
	Status string `yaml:"status"`
	Slug   string `yaml:"slug"`
	Date   string `yaml:"date"`
	Save   string `yaml:"save"`
}

// Result holds the output of parsing a content file.
type Result struct {
	Frontmatter *Frontmatter
	Body        string
	Title       string
}

// Parse extracts frontmatter and body from raw file bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (*Frontmatter, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", fmt.Errorf("parser: frontmatter: %v: %w", err, apperr.ErrInvalidInput)
	}
	return &fm, body, nil
}

// deriveTitle returns the frontmatter title if present, otherwise the text
// of the first <h1>, otherwise empty string.
func deriveTitle(fm *Frontmatter, body string) string {
	if fm != nil && strings.TrimSpace(fm.Title) != "" {
		return strings.TrimSpace(fm.Title)
	}
	if m := h1Re.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Post maps the parsed file onto a post and its save kind. Files without a
// positive id or with an unknown save kind are rejected.
func (r *Result) Post() (models.Post, models.SaveKind, error) {
	if r.Frontmatter == nil || r.Frontmatter.ID <= 0 {
		return models.Post{}, "", fmt.Errorf("parser: missing id: %w", apperr.ErrInvalidInput)
	}
	fm := r.Frontmatter
	kind, ok := models.ParseSaveKind(fm.Save)
	if !ok {
		return models.Post{}, "", fmt.Errorf("parser: save %q: %w", fm.Save, apperr.ErrInvalidInput)
	}
	p := models.Post{
		ID:     fm.ID,
		Title:  r.Title,
		Body:   r.Body,
		Status: models.Status(strings.TrimSpace(fm.Status)),
		Slug:   strings.TrimSpace(fm.Slug),
	}
	if fm.Date != "" {
		t, err := parseDate(fm.Date)
		if err != nil {
			return models.Post{}, "", err
		}
		p.PublishedAt = t
	}
	return p, kind, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parser: date %q: %w", s, apperr.ErrInvalidInput)
}
