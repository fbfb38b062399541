package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerdesk/ledgerdesk/app"
	"github.com/ledgerdesk/ledgerdesk/domain/contract"
)

// ContractResponse is the wire shape of a contract record.
type ContractResponse struct {
	ID             string  `json:"id"`
	ClientID       string  `json:"client_id"`
	Description    string  `json:"description"`
	Value          int64   `json:"value"`
	BillingDay     int     `json:"billing_day"`
	StartDate      string  `json:"start_date"`
	EndDate        *string `json:"end_date,omitempty"`
	SignedAt       *string `json:"signed_at,omitempty"`
	Status         string  `json:"status"`
	SubscriptionID string  `json:"subscription_id,omitempty"`
	ServiceOrderID string  `json:"service_order_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func toContractResponse(ct contract.Contract) ContractResponse {
	return ContractResponse{
		ID:             ct.ID,
		ClientID:       ct.ClientID,
		Description:    ct.Description,
		Value:          ct.Value,
		BillingDay:     ct.BillingDay,
		StartDate:      ct.StartDate.Format("2006-01-02"),
		EndDate:        formatDatePtr(ct.EndDate),
		SignedAt:       formatTimePtr(ct.SignedAt),
		Status:         string(ct.Status),
		SubscriptionID: ct.SubscriptionID,
		ServiceOrderID: ct.ServiceOrderID,
		CreatedAt:      ct.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      ct.UpdatedAt.Format(time.RFC3339),
	}
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// CreateContractRequest carries the fields accepted when drafting a contract.
type CreateContractRequest struct {
	ClientID    string `json:"client_id"`
	Description string `json:"description"`
	Value       int64  `json:"value"` // cents per cycle
	BillingDay  int    `json:"billing_day"`
	StartDate   string `json:"start_date"` // 2006-01-02
	EndDate     string `json:"end_date"`   // optional
}

// ListContracts returns a page of contracts.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	contracts, total, err := h.contracts.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]ContractResponse, 0, len(contracts))
	for _, ct := range contracts {
		out = append(out, toContractResponse(ct))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contracts": out,
		"total":     total,
	})
}

// GetContract returns a contract and its billings.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	ct, billings, err := h.contracts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	bills := make([]BillingResponse, 0, len(billings))
	for _, b := range billings {
		bills = append(bills, toBillingResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contract": toContractResponse(ct),
		"billings": bills,
	})
}

// CreateContract drafts a contract for a client.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "start_date must be YYYY-MM-DD")
		return
	}
	var endDate *time.Time
	if req.EndDate != "" {
		t, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "end_date must be YYYY-MM-DD")
			return
		}
		endDate = &t
	}

	ct, err := h.contracts.Create(r.Context(), app.CreateContractInput{
		ClientID:    req.ClientID,
		Description: req.Description,
		Value:       req.Value,
		BillingDay:  req.BillingDay,
		StartDate:   startDate,
		EndDate:     endDate,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toContractResponse(ct))
}

// SignContract activates a contract and opens its provider subscription.
func (h *Handler) SignContract(w http.ResponseWriter, r *http.Request) {
	ct, err := h.contracts.Sign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractResponse(ct))
}

// CancelContract cancels a contract, its subscription and its open billings.
func (h *Handler) CancelContract(w http.ResponseWriter, r *http.Request) {
	ct, err := h.contracts.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContractResponse(ct))
}
