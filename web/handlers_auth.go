package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/permission"
)

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the opaque session token.
type LoginResponse struct {
	SessionID string   `json:"session_id"`
	ExpiresAt string   `json:"expires_at"`
	User      UserInfo `json:"user"`
}

// UserInfo is the user shape embedded in auth responses.
type UserInfo struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// Login authenticates a user and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials", "Email and password are required")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	session := h.sessions.Create(user.ID, user.Email, h.sessionTTL)

	h.logger.Info().
		Str("user_id", user.ID).
		Str("email", user.Email).
		Msg("user logged in")

	writeJSON(w, http.StatusOK, LoginResponse{
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
		User: UserInfo{
			ID:          user.ID,
			Email:       user.Email,
			Name:        user.Name,
			Permissions: permissionStrings(user.Permissions),
		},
	})
}

// Logout ends the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := r.Context().Value(ctxSessionKey).(string); ok {
		h.sessions.Delete(sessionID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "Missing session")
		return
	}
	writeJSON(w, http.StatusOK, UserInfo{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Permissions: permissionStrings(user.Permissions),
	})
}

func permissionStrings(perms []permission.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}
