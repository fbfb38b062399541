// Package web provides the JSON HTTP API: authentication, CRUD endpoints,
// the payment provider webhook receiver, and the partner API proxy.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ledgerdesk/ledgerdesk/adapters/metrics"
	"github.com/ledgerdesk/ledgerdesk/app"
	"github.com/ledgerdesk/ledgerdesk/domain/permission"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// Handler provides the HTTP API endpoints.
type Handler struct {
	clients    *app.ClientService
	contracts  *app.ContractService
	billings   *app.BillingService
	users      *app.UserService
	partner    *app.PartnerService
	reconciler *app.ReconcileService
	notify     *app.NotifyService

	payments  ports.PaymentProvider
	userStore ports.UserStore
	sessions  *SessionStore

	metrics        *metrics.Collector
	metricsHandler http.Handler
	enableDocs     bool
	sessionTTL     time.Duration
	logger         zerolog.Logger
}

// Deps contains dependencies for the HTTP handler.
type Deps struct {
	Clients    *app.ClientService
	Contracts  *app.ContractService
	Billings   *app.BillingService
	Users      *app.UserService
	Partner    *app.PartnerService
	Reconciler *app.ReconcileService
	Notify     *app.NotifyService

	Payments  ports.PaymentProvider
	UserStore ports.UserStore

	Metrics        *metrics.Collector
	MetricsHandler http.Handler
	EnableDocs     bool
	SessionTTL     time.Duration
	Logger         zerolog.Logger
}

// NewHandler creates a new HTTP API handler.
func NewHandler(deps Deps) *Handler {
	ttl := deps.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handler{
		clients:        deps.Clients,
		contracts:      deps.Contracts,
		billings:       deps.Billings,
		users:          deps.Users,
		partner:        deps.Partner,
		reconciler:     deps.Reconciler,
		notify:         deps.Notify,
		payments:       deps.Payments,
		userStore:      deps.UserStore,
		sessions:       NewSessionStore(),
		metrics:        deps.Metrics,
		metricsHandler: deps.MetricsHandler,
		enableDocs:     deps.EnableDocs,
		sessionTTL:     ttl,
		logger:         deps.Logger,
	}
}

// Sessions exposes the session store so the janitor can prune it.
func (h *Handler) Sessions() *SessionStore {
	return h.sessions
}

// Router builds the full HTTP router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.metricsMiddleware)

	r.Get("/health", h.Health)
	if h.metricsHandler != nil {
		r.Handle("/metrics", h.metricsHandler)
	}
	if h.enableDocs {
		h.mountDocs(r)
	}

	// Inbound provider webhooks authenticate with their own token.
	r.Post("/webhooks/asaas", h.AsaasWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware)

			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)

			r.Route("/clients", func(r chi.Router) {
				r.With(h.require(permission.ClientsRead)).Get("/", h.ListClients)
				r.With(h.require(permission.ClientsRead)).Get("/{id}", h.GetClient)
				r.With(h.require(permission.ClientsRead)).Get("/{id}/contracts", h.ListClientContracts)
				r.With(h.require(permission.ClientsWrite)).Post("/", h.CreateClient)
				r.With(h.require(permission.ClientsWrite)).Put("/{id}", h.UpdateClient)
				r.With(h.require(permission.ClientsWrite)).Delete("/{id}", h.DeleteClient)
				r.With(h.require(permission.ClientsWrite)).Post("/{id}/sync", h.RetryClientSync)
			})

			r.Route("/contracts", func(r chi.Router) {
				r.With(h.require(permission.ContractsRead)).Get("/", h.ListContracts)
				r.With(h.require(permission.ContractsRead)).Get("/{id}", h.GetContract)
				r.With(h.require(permission.ContractsWrite)).Post("/", h.CreateContract)
				r.With(h.require(permission.ContractsWrite)).Post("/{id}/sign", h.SignContract)
				r.With(h.require(permission.ContractsWrite)).Post("/{id}/cancel", h.CancelContract)
			})

			r.Route("/billings", func(r chi.Router) {
				r.With(h.require(permission.BillingsRead)).Get("/", h.ListBillings)
				r.With(h.require(permission.BillingsRead)).Get("/{id}", h.GetBilling)
				r.With(h.require(permission.BillingsWrite)).Post("/", h.CreateBilling)
				r.With(h.require(permission.BillingsWrite)).Post("/{id}/cancel", h.CancelBilling)
			})

			r.Route("/users", func(r chi.Router) {
				r.Use(h.require(permission.UsersManage))
				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Get("/{id}", h.GetUser)
				r.Put("/{id}", h.UpdateUser)
				r.Delete("/{id}", h.DeleteUser)
			})

			r.With(h.require(permission.UsersManage)).Get("/deliveries", h.ListDeliveries)

			r.Route("/partner", func(r chi.Router) {
				r.Use(h.require(permission.PartnerManage))
				r.Get("/cache/stats", h.PartnerCacheStats)
				r.Post("/cache/clear", h.PartnerCacheClear)
				r.Get("/*", h.PartnerProxy)
			})
		})
	})

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
