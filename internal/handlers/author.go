package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/libris-lms/apiserver/internal/services"
	"github.com/libris-lms/apiserver/types"
)

// AuthorHandler serves author endpoints.
type AuthorHandler struct {
	authorService *services.AuthorService
}

// AuthorRouter registers author routes. Reads are public, writes require an
// authenticated admin.
func AuthorRouter(r chi.Router, authorService *services.AuthorService, mw Middlewares) {
	handler := &AuthorHandler{authorService: authorService}

	r.Get("/", handler.List)
	r.Get("/{authorID}", handler.Get)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Post("/", handler.Create)
		r.Put("/{authorID}", handler.Update)
		r.Delete("/{authorID}", handler.Delete)
	})
}

type AuthorRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

func (h *AuthorHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	items, total, err := h.authorService.List(r.Context(), strings.TrimSpace(query.Get("search")), query.Get("ordering"), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list authors")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.Author]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *AuthorHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "authorID", "author")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	author, err := h.authorService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load author")
		return
	}
	writeJSON(w, http.StatusOK, author)
}

func (h *AuthorHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req AuthorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	author, err := h.authorService.Create(r.Context(), actor, types.Author{Name: req.Name, Bio: req.Bio})
	if err != nil {
		writeServiceError(w, r, err, "failed to create author")
		return
	}
	writeJSON(w, http.StatusCreated, author)
}

func (h *AuthorHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "authorID", "author")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req AuthorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	author, err := h.authorService.Update(r.Context(), actor, types.Author{ID: id, Name: req.Name, Bio: req.Bio})
	if err != nil {
		writeServiceError(w, r, err, "failed to update author")
		return
	}
	writeJSON(w, http.StatusOK, author)
}

// Delete removes an author together with all of their books.
func (h *AuthorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "authorID", "author")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authorService.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err, "failed to delete author")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
