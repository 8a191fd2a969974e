package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/starford/readmore/internal/models"
	"github.com/starford/readmore/internal/postservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *postservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *postservice.Service) *Handler {
	return &Handler{svc: svc}
}

// Search handles GET /api/search.
//
//	@Summary		Search published posts by title, content or ID
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	false	"Search term; all digits also looks up that post ID"
//	@Param			page	query		int		false	"Page number, 1-based"
//	@Param			current	query		int		false	"ID of the post being edited; never returned"
//	@Success		200		{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	current, _ := strconv.ParseInt(q.Get("current"), 10, 64)

	res, err := h.svc.Search(r.Context(), q.Get("q"), page, current)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetPost handles GET /api/posts/{id}.
//
//	@Summary		Get a single post by ID
//	@Tags			posts
//	@Produce		json
//	@Param			id	path		int	true	"Post ID"
//	@Success		200	{object}	models.Post
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id} [get]
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid post id"))
		return
	}
	p, err := h.svc.GetPost(r.Context(), id)
	if err != nil {
		writeError(w, "get post", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SavePost handles PUT /api/posts/{id}. This is the save hook: canonical
// saves reconcile the marker tag, autosave and revision saves are stored
// as revisions.
//
//	@Summary		Save a post
//	@Tags			posts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Post ID"
//	@Param			kind	query		string			false	"Save kind"	Enums(canonical, autosave, revision)
//	@Param			body	body		SavePostRequest	true	"Post content"
//	@Success		200		{object}	SavePostResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id} [put]
func (h *Handler) SavePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid post id"))
		return
	}
	kind, ok := models.ParseSaveKind(r.URL.Query().Get("kind"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("kind must be canonical, autosave or revision"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req SavePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}

	p := models.Post{
		ID:     id,
		Title:  req.Title,
		Body:   req.Body,
		Status: models.Status(req.Status),
		Slug:   req.Slug,
	}
	if req.PublishedAt != nil {
		p.PublishedAt = *req.PublishedAt
	}

	res, err := h.svc.SavePost(r.Context(), p, kind)
	if err != nil {
		writeError(w, "save post", err)
		return
	}
	writeJSON(w, http.StatusOK, SavePostResponse{
		ID:        id,
		Kind:      string(kind),
		Delta:     res.Delta.String(),
		HasMarker: res.HasMarker,
		Revision:  res.Revision,
	})
}

// DeletePost handles DELETE /api/posts/{id}.
//
//	@Summary		Delete a post
//	@Tags			posts
//	@Param			id	path	int	true	"Post ID"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id} [delete]
func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid post id"))
		return
	}
	if err := h.svc.DeletePost(r.Context(), id); err != nil {
		writeError(w, "delete post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Selection handles GET /api/posts/{id}/selection. The optional title and
// link parameters carry the last-known selection, rendered when the post
// no longer exists.
//
//	@Summary		Resolve a selected post and render its read-more link
//	@Tags			posts
//	@Produce		json
//	@Param			id		path		int		true	"Post ID"
//	@Param			title	query		string	false	"Last-known title"
//	@Param			link	query		string	false	"Last-known link"
//	@Success		200		{object}	SelectionResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id}/selection [get]
func (h *Handler) Selection(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid post id"))
		return
	}
	var last models.Selection
	if q := r.URL.Query(); q.Get("title") != "" || q.Get("link") != "" {
		last = models.Selection{ID: id, Title: q.Get("title"), Link: q.Get("link")}
	}
	res, err := h.svc.Select(r.Context(), id, last)
	if err != nil {
		writeError(w, "select post", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Marker handles GET /api/posts/{id}/marker.
//
//	@Summary		Report whether a post embeds the read-more block
//	@Tags			posts
//	@Produce		json
//	@Param			id	path		int	true	"Post ID"
//	@Success		200	{object}	MarkerResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/posts/{id}/marker [get]
func (h *Handler) Marker(w http.ResponseWriter, r *http.Request) {
	id, ok := postID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid post id"))
		return
	}
	has, err := h.svc.HasMarker(r.Context(), id)
	if err != nil {
		writeError(w, "marker", err)
		return
	}
	writeJSON(w, http.StatusOK, MarkerResponse{ID: id, HasMarker: has})
}
