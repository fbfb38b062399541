package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerdesk/ledgerdesk/app"
	"github.com/ledgerdesk/ledgerdesk/domain/permission"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// UserResponse is the wire shape of a user account. The password hash is
// never serialized.
type UserResponse struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Active      bool     `json:"active"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toUserResponse(u ports.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Permissions: permissionStrings(u.Permissions),
		Active:      u.Active,
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   u.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateUserRequest carries the fields for registering a user account.
type CreateUserRequest struct {
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Password    string   `json:"password"`
	Permissions []string `json:"permissions"`
}

// ListUsers returns a page of user accounts.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	users, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": out})
}

// GetUser returns a single user account by ID.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// CreateUser registers a new user account.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	perms, err := parsePermissions(req.Permissions)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	u, err := h.users.Create(r.Context(), app.CreateUserInput{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		Permissions: perms,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// UpdateUserRequest carries the mutable user fields. Absent fields are
// left unchanged.
type UpdateUserRequest struct {
	Name        *string  `json:"name"`
	Password    *string  `json:"password"`
	Permissions []string `json:"permissions"`
	Active      *bool    `json:"active"`
}

// UpdateUser modifies a user account.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	var perms []permission.Permission
	if req.Permissions != nil {
		parsed, err := parsePermissions(req.Permissions)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		perms = parsed
	}

	u, err := h.users.Update(r.Context(), chi.URLParam(r, "id"), app.UpdateUserInput{
		Name:        req.Name,
		Password:    req.Password,
		Permissions: perms,
		Active:      req.Active,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// DeleteUser removes a user account.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func parsePermissions(raw []string) ([]permission.Permission, error) {
	perms := make([]permission.Permission, 0, len(raw))
	for _, s := range raw {
		p := permission.Permission(s)
		if !permission.Known(p) {
			return nil, app.ErrValidation{Reason: "unknown permission: " + s}
		}
		perms = append(perms, p)
	}
	return perms, nil
}
