package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerdesk/ledgerdesk/app"
	"github.com/ledgerdesk/ledgerdesk/domain/billing"
)

// BillingResponse is the wire shape of a billing record.
type BillingResponse struct {
	ID          string  `json:"id"`
	ContractID  string  `json:"contract_id"`
	ClientID    string  `json:"client_id"`
	Value       int64   `json:"value"`
	Description string  `json:"description,omitempty"`
	DueDate     string  `json:"due_date"`
	Status      string  `json:"status"`
	ProviderID  string  `json:"provider_id,omitempty"`
	InvoiceURL  string  `json:"invoice_url,omitempty"`
	BillingType string  `json:"billing_type,omitempty"`
	PaidAt      *string `json:"paid_at,omitempty"`
	CancelledAt *string `json:"cancelled_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func toBillingResponse(b billing.Billing) BillingResponse {
	return BillingResponse{
		ID:          b.ID,
		ContractID:  b.ContractID,
		ClientID:    b.ClientID,
		Value:       b.Value,
		Description: b.Description,
		DueDate:     b.DueDate.Format("2006-01-02"),
		Status:      string(b.Status),
		ProviderID:  b.ProviderID,
		InvoiceURL:  b.InvoiceURL,
		BillingType: b.BillingType,
		PaidAt:      formatTimePtr(b.PaidAt),
		CancelledAt: formatTimePtr(b.CancelledAt),
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   b.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateBillingRequest carries the fields for issuing a one-off charge.
type CreateBillingRequest struct {
	ContractID  string `json:"contract_id"`
	Value       int64  `json:"value"` // cents
	Description string `json:"description"`
	DueDate     string `json:"due_date"` // 2006-01-02
}

// ListBillings returns a page of billings.
func (h *Handler) ListBillings(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	billings, err := h.billings.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]BillingResponse, 0, len(billings))
	for _, b := range billings {
		out = append(out, toBillingResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"billings": out})
}

// GetBilling returns a single billing by ID.
func (h *Handler) GetBilling(w http.ResponseWriter, r *http.Request) {
	b, err := h.billings.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingResponse(b))
}

// CreateBilling issues a one-off charge against a contract.
func (h *Handler) CreateBilling(w http.ResponseWriter, r *http.Request) {
	var req CreateBillingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "due_date must be YYYY-MM-DD")
		return
	}

	b, err := h.billings.Create(r.Context(), app.CreateBillingInput{
		ContractID:  req.ContractID,
		Value:       req.Value,
		Description: req.Description,
		DueDate:     dueDate,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBillingResponse(b))
}

// CancelBilling cancels an open billing and its provider payment.
func (h *Handler) CancelBilling(w http.ResponseWriter, r *http.Request) {
	b, err := h.billings.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingResponse(b))
}
