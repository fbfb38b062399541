package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerdesk/ledgerdesk/app"
	"github.com/ledgerdesk/ledgerdesk/domain/client"
)

// ClientResponse is the wire shape of a client record.
type ClientResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Document   string `json:"document"`
	Phone      string `json:"phone,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	ERPCode    string `json:"erp_code,omitempty"`
	ERPSync    string `json:"erp_sync"`
	PaySync    string `json:"pay_sync"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toClientResponse(c client.Client) ClientResponse {
	return ClientResponse{
		ID:         c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Document:   c.Document,
		Phone:      c.Phone,
		City:       c.City,
		State:      c.State,
		CustomerID: c.CustomerID,
		ERPCode:    c.ERPCode,
		ERPSync:    string(c.ERPSync),
		PaySync:    string(c.PaySync),
		Active:     c.Active,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  c.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateClientRequest carries the fields accepted when registering a client.
type CreateClientRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	State    string `json:"state"`
}

// ListClients returns a page of clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	clients, total, err := h.clients.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clients": out,
		"total":   total,
	})
}

// GetClient returns a single client by ID.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.clients.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(c))
}

// ListClientContracts returns the contracts belonging to a client.
func (h *Handler) ListClientContracts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.clients.Get(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	contracts, err := h.contracts.ListByClient(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]ContractResponse, 0, len(contracts))
	for _, ct := range contracts {
		out = append(out, toContractResponse(ct))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"contracts": out})
}

// CreateClient registers a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	c, err := h.clients.Create(r.Context(), app.CreateClientInput{
		Name:     req.Name,
		Email:    req.Email,
		Document: req.Document,
		Phone:    req.Phone,
		City:     req.City,
		State:    req.State,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientResponse(c))
}

// UpdateClientRequest carries the mutable client fields. Absent fields
// are left unchanged.
type UpdateClientRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Phone  *string `json:"phone"`
	City   *string `json:"city"`
	State  *string `json:"state"`
	Active *bool   `json:"active"`
}

// UpdateClient modifies a client's contact fields.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	c, err := h.clients.Update(r.Context(), chi.URLParam(r, "id"), app.UpdateClientInput{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		City:   req.City,
		State:  req.State,
		Active: req.Active,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(c))
}

// DeleteClient removes a client with no contracts.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// RetryClientSync re-pushes a client to platforms where the sync failed.
func (h *Handler) RetryClientSync(w http.ResponseWriter, r *http.Request) {
	c, err := h.clients.RetrySync(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(c))
}
