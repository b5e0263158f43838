package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/libris-lms/apiserver/internal/services"
)

// UserHandler serves penalty and account management endpoints.
type UserHandler struct {
	userService   *services.UserService
	borrowService *services.BorrowService
}

// UserRouter registers user routes.
func UserRouter(r chi.Router, userService *services.UserService, borrowService *services.BorrowService, mw Middlewares) {
	handler := &UserHandler{userService: userService, borrowService: borrowService}

	r.Use(mw.Authenticate)
	r.With(mw.SustainedRate).Get("/me/penalties", handler.MyPenalties)
	r.With(mw.SustainedRate).Get("/{userID}/penalties", handler.Penalties)
	r.With(RequireAdmin).Post("/{userID}/penalties/reset", handler.ResetPenalties)
	r.With(RequireAdmin).Delete("/{userID}", handler.Delete)
}

func (h *UserHandler) MyPenalties(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	summary, err := h.borrowService.Penalties(r.Context(), actor, actor.ID)
	if err != nil {
		writeServiceError(w, r, err, "failed to load penalties")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Penalties returns another user's penalty points. Non-admins may only read
// their own.
func (h *UserHandler) Penalties(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.borrowService.Penalties(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load penalties")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *UserHandler) ResetPenalties(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.borrowService.ResetPenalties(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to reset penalties")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Delete removes a user. Copies held on open borrows go back on the shelf.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
