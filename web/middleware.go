package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerdesk/ledgerdesk/domain/permission"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

type ctxKey int

const (
	ctxSessionKey ctxKey = iota
	ctxUserKey
)

// currentUser returns the authenticated user from the request context.
func currentUser(ctx context.Context) (ports.User, bool) {
	u, ok := ctx.Value(ctxUserKey).(ports.User)
	return u, ok
}

// authMiddleware resolves the session token from the session cookie or the
// Authorization header and loads the owning user.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if cookie, err := r.Cookie("session_id"); err == nil {
			token = cookie.Value
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			token = strings.TrimPrefix(auth, "Bearer ")
		}

		session := h.sessions.Get(token)
		if session == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing or expired session")
			return
		}

		// Permissions are read fresh so revocation applies immediately.
		user, err := h.userStore.Get(r.Context(), session.UserID)
		if err != nil || !user.Active {
			h.sessions.Delete(session.ID)
			writeError(w, http.StatusUnauthorized, "unauthorized", "Account is no longer active")
			return
		}

		ctx := context.WithValue(r.Context(), ctxSessionKey, session.ID)
		ctx = context.WithValue(ctx, ctxUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// require returns middleware enforcing one permission on the route group.
func (h *Handler) require(p permission.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := currentUser(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing session")
				return
			}
			if !permission.Has(user.Permissions, p) {
				writeError(w, http.StatusForbidden, "forbidden", "Missing permission: "+string(p))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records request counters and latency.
func (h *Handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || r.URL.Path == "/health" ||
			strings.HasPrefix(r.URL.Path, "/swagger") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := statusLabel(ww.Status())
		path := routePattern(r)
		h.metrics.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		h.metrics.RequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

// routePattern returns the chi route pattern to keep metric cardinality
// bounded; unmatched requests collapse into one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
