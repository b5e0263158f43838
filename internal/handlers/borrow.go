package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/libris-lms/apiserver/internal/services"
	"github.com/libris-lms/apiserver/types"
)

// BorrowHandler serves the borrow and return workflow.
type BorrowHandler struct {
	borrowService *services.BorrowService
}

// BorrowRouter registers borrow routes. Every route requires authentication;
// writes use the burst rate class and reads the sustained one.
func BorrowRouter(r chi.Router, borrowService *services.BorrowService, mw Middlewares) {
	handler := &BorrowHandler{borrowService: borrowService}

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		r.With(mw.SustainedRate).Get("/borrows", handler.List)
		r.With(mw.BurstRate).Post("/borrows", handler.Create)
		r.With(mw.SustainedRate).Get("/borrows/{borrowID}", handler.Get)
		r.With(mw.BurstRate).Post("/return", handler.Return)
	})
}

type BorrowRequest struct {
	BookID int `json:"book"`
}

type ReturnRequest struct {
	BorrowID int `json:"borrow_id"`
}

// List returns the caller's borrows, or every borrow for admins. The user,
// book and returned query parameters narrow the result; user only applies to
// admins.
func (h *BorrowHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := parseOptionalID(r, "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bookID, err := parseOptionalID(r, "book")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	returned, err := parseOptionalBool(r, "returned")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.borrowService.List(r.Context(), actor, types.BorrowFilter{
		UserID:   userID,
		BookID:   bookID,
		Returned: returned,
		Ordering: r.URL.Query().Get("ordering"),
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to list borrows")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.BorrowView]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *BorrowHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req BorrowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	borrow, err := h.borrowService.CreateBorrow(r.Context(), actor, req.BookID)
	if err != nil {
		writeServiceError(w, r, err, "failed to borrow book")
		return
	}
	writeJSON(w, http.StatusCreated, borrow)
}

func (h *BorrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "borrowID", "borrow")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	borrow, err := h.borrowService.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load borrow")
		return
	}
	writeJSON(w, http.StatusOK, borrow)
}

func (h *BorrowHandler) Return(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req ReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := h.borrowService.ReturnBook(r.Context(), actor, req.BorrowID)
	if err != nil {
		writeServiceError(w, r, err, "failed to return book")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
