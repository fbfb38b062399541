package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

// mountDocs serves the OpenAPI document and the Swagger UI. The document
// is assembled in code so it never drifts from a generated artifact on
// disk.
func (h *Handler) mountDocs(r chi.Router) {
	spec, err := json.Marshal(openAPIDocument())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to build openapi document")
		return
	}

	r.Get("/.well-known/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(spec)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/.well-known/openapi.json"),
	))
}

func openAPIDocument() map[string]interface{} {
	errorSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"error": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"code":    map[string]interface{}{"type": "string"},
					"message": map[string]interface{}{"type": "string"},
				},
			},
		},
	}

	paths := map[string]interface{}{
		"/health": pathItem("get", "Liveness probe", false),
		"/api/login": map[string]interface{}{
			"post": map[string]interface{}{
				"summary": "Authenticate and open a session",
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Session opened"},
					"401": map[string]interface{}{"description": "Invalid credentials"},
				},
			},
		},
		"/api/logout":                 pathItem("post", "End the current session", true),
		"/api/me":                     pathItem("get", "Current user", true),
		"/api/clients":                crudCollection("Clients"),
		"/api/clients/{id}":           crudItem("Client"),
		"/api/clients/{id}/contracts": pathItem("get", "Contracts for a client", true),
		"/api/clients/{id}/sync":      pathItem("post", "Retry external platform sync", true),
		"/api/contracts":              crudCollection("Contracts"),
		"/api/contracts/{id}":         pathItem("get", "Contract with billings", true),
		"/api/contracts/{id}/sign":    pathItem("post", "Sign and activate a contract", true),
		"/api/contracts/{id}/cancel":  pathItem("post", "Cancel a contract", true),
		"/api/billings":               crudCollection("Billings"),
		"/api/billings/{id}":          pathItem("get", "Billing details", true),
		"/api/billings/{id}/cancel":   pathItem("post", "Cancel an open billing", true),
		"/api/users":                  crudCollection("Users"),
		"/api/users/{id}":             crudItem("User"),
		"/api/deliveries":             pathItem("get", "Recent CRM webhook deliveries", true),
		"/api/partner/cache/stats":    pathItem("get", "Partner cache statistics", true),
		"/api/partner/cache/clear":    pathItem("post", "Clear the partner cache", true),
		"/api/partner/{path}":         pathItem("get", "Proxy a partner API lookup", true),
		"/webhooks/asaas": map[string]interface{}{
			"post": map[string]interface{}{
				"summary": "Payment provider webhook receiver",
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Event accepted"},
					"401": map[string]interface{}{"description": "Invalid webhook token"},
				},
			},
		},
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "LedgerDesk API",
			"description": "Financial back office: clients, contracts, billings and payment reconciliation.",
			"version":     "1.0",
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": errorSchema,
			},
			"securitySchemes": map[string]interface{}{
				"session": map[string]interface{}{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func pathItem(method, summary string, authed bool) map[string]interface{} {
	op := map[string]interface{}{
		"summary": summary,
		"responses": map[string]interface{}{
			"200": map[string]interface{}{"description": "OK"},
		},
	}
	if authed {
		op["security"] = []map[string]interface{}{{"session": []string{}}}
	}
	return map[string]interface{}{method: op}
}

func crudCollection(name string) map[string]interface{} {
	return map[string]interface{}{
		"get":  map[string]interface{}{"summary": "List " + name, "responses": okResponse()},
		"post": map[string]interface{}{"summary": "Create " + name, "responses": createdResponse()},
	}
}

func crudItem(name string) map[string]interface{} {
	return map[string]interface{}{
		"get":    map[string]interface{}{"summary": "Get " + name, "responses": okResponse()},
		"put":    map[string]interface{}{"summary": "Update " + name, "responses": okResponse()},
		"delete": map[string]interface{}{"summary": "Delete " + name, "responses": okResponse()},
	}
}

func okResponse() map[string]interface{} {
	return map[string]interface{}{"200": map[string]interface{}{"description": "OK"}}
}

func createdResponse() map[string]interface{} {
	return map[string]interface{}{"201": map[string]interface{}{"description": "Created"}}
}
