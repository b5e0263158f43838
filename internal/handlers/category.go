package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/libris-lms/apiserver/internal/services"
	"github.com/libris-lms/apiserver/types"
)

// CategoryHandler serves category endpoints.
type CategoryHandler struct {
	categoryService *services.CategoryService
}

// CategoryRouter registers category routes. The listing is rate limited per
// client; writes require an authenticated admin.
func CategoryRouter(r chi.Router, categoryService *services.CategoryService, mw Middlewares) {
	handler := &CategoryHandler{categoryService: categoryService}

	r.With(mw.SustainedRate).Get("/", handler.List)
	r.Get("/{categoryID}", handler.Get)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Post("/", handler.Create)
		r.Put("/{categoryID}", handler.Update)
		r.Delete("/{categoryID}", handler.Delete)
	})
}

type CategoryRequest struct {
	Name string `json:"name"`
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	items, total, err := h.categoryService.List(r.Context(), strings.TrimSpace(query.Get("search")), query.Get("ordering"), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list categories")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.Category]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "categoryID", "category")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := h.categoryService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load category")
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := h.categoryService.Create(r.Context(), actor, types.Category{Name: req.Name})
	if err != nil {
		writeServiceError(w, r, err, "failed to create category")
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "categoryID", "category")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := h.categoryService.Update(r.Context(), actor, types.Category{ID: id, Name: req.Name})
	if err != nil {
		writeServiceError(w, r, err, "failed to update category")
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// Delete removes a category. Its books stay in the catalog uncategorized.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "categoryID", "category")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.categoryService.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err, "failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
