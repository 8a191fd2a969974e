package api

import (
	"time"

	"github.com/starford/readmore/internal/postservice"
)

// SavePostRequest is the request body for PUT /posts/{id}.
type SavePostRequest struct {
	Title       string     `json:"title" example:"Hello"`
	Body        string     `json:"body" example:"<p>Hello</p>"`
	Status      string     `json:"status" example:"publish"`
	Slug        string     `json:"slug" example:"hello"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// SavePostResponse reports the marker change a save applied.
type SavePostResponse struct {
	ID        int64  `json:"id" example:"42"`
	Kind      string `json:"kind" example:"canonical"`
	Delta     string `json:"delta" example:"set"`
	HasMarker bool   `json:"has_marker"`
	Revision  bool   `json:"revision"`
}

// MarkerResponse is the marker state of one post.
type MarkerResponse struct {
	ID        int64 `json:"id" example:"42"`
	HasMarker bool  `json:"has_marker"`
}

// SearchResponse is one page of editor search results (aliased from the domain layer).
type SearchResponse = postservice.SearchResult

// SelectionResponse is a resolved selection (aliased from the domain layer).
type SelectionResponse = postservice.SelectionResult
