package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/libris-lms/apiserver/internal/logging"
	"github.com/libris-lms/apiserver/internal/services"
	"github.com/libris-lms/apiserver/types"
)

// BookHandler serves book and cover endpoints.
type BookHandler struct {
	bookService *services.BookService
}

// BookRouter registers book routes. Reads are public, writes require an
// authenticated admin.
func BookRouter(r chi.Router, bookService *services.BookService, mw Middlewares) {
	handler := &BookHandler{bookService: bookService}

	r.Get("/", handler.List)
	r.Get("/{bookID}", handler.Get)
	r.Get("/{bookID}/cover", handler.Cover)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.Post("/", handler.Create)
		r.Put("/{bookID}", handler.Update)
		r.Delete("/{bookID}", handler.Delete)
		r.Put("/{bookID}/cover", handler.UploadCover)
	})
}

type BookRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AuthorID    int    `json:"author"`
	CategoryID  *int   `json:"category"`
	TotalCopies int    `json:"total_copies"`
}

func (req BookRequest) update() services.BookUpdate {
	return services.BookUpdate{
		Title:       req.Title,
		Description: req.Description,
		AuthorID:    req.AuthorID,
		CategoryID:  req.CategoryID,
		TotalCopies: req.TotalCopies,
	}
}

// List supports search, author, category, available and ordering filters.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	authorID, err := parseOptionalID(r, "author")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	categoryID, err := parseOptionalID(r, "category")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	available, err := parseOptionalBool(r, "available")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	items, total, err := h.bookService.List(r.Context(), types.BookFilter{
		Search:        strings.TrimSpace(query.Get("search")),
		AuthorID:      authorID,
		CategoryID:    categoryID,
		AvailableOnly: available != nil && *available,
		Ordering:      query.Get("ordering"),
		Offset:        offset,
		Limit:         limit,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to list books")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.Book]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "bookID", "book")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.bookService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load book")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req BookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.bookService.Create(r.Context(), actor, req.update())
	if err != nil {
		writeServiceError(w, r, err, "failed to create book")
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "bookID", "book")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req BookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.bookService.Update(r.Context(), actor, id, req.update())
	if err != nil {
		writeServiceError(w, r, err, "failed to update book")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "bookID", "book")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.bookService.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err, "failed to delete book")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadCover stores the raw request body as the book's cover image.
func (h *BookHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "bookID", "book")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	defer r.Body.Close()
	data, err := readFileLimited(r.Body, services.MaxCoverBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.bookService.UploadCover(r.Context(), actor, id, bytes.NewReader(data), int64(len(data)), r.Header.Get("Content-Type"))
	if err != nil {
		writeServiceError(w, r, err, "failed to upload cover")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Cover streams the book's cover image.
func (h *BookHandler) Cover(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "bookID", "book")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, contentType, err := h.bookService.Cover(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load cover")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Warn("stream cover", "book_id", id, "error", err)
	}
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
