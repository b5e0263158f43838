package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/libris-lms/apiserver/internal/services"
	"github.com/libris-lms/apiserver/types"
)

type RoleHandler struct {
	roleService *services.RoleService
}

// RoleRouter registers role routes. All of them are admin only.
func RoleRouter(r chi.Router, roleService *services.RoleService, mw Middlewares) {
	handler := &RoleHandler{roleService: roleService}

	r.Use(mw.Authenticate, RequireAdmin)
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Get("/{roleID}", handler.Get)
	r.Put("/{roleID}", handler.Update)
	r.Delete("/{roleID}", handler.Delete)
}

type RoleRequest struct {
	Name string `json:"name"`
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.roleService.List(r.Context(), actor, offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list roles")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.Role]{Items: items, Page: page, Limit: limit, Total: total})
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "roleID", "role")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	role, err := h.roleService.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load role")
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	role, err := h.roleService.Create(r.Context(), actor, types.Role{Name: req.Name})
	if err != nil {
		writeServiceError(w, r, err, "failed to create role")
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "roleID", "role")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req RoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	role, err := h.roleService.Update(r.Context(), actor, types.Role{ID: id, Name: req.Name})
	if err != nil {
		writeServiceError(w, r, err, "failed to update role")
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	id, err := parseID(r, "roleID", "role")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.roleService.Delete(r.Context(), actor, id); err != nil {
		writeServiceError(w, r, err, "failed to delete role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
