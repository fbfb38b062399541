package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/client"
)

func TestNewAsaasProvider(t *testing.T) {
	config := AsaasConfig{
		APIKey:       "api_key_123",
		WebhookToken: "hook_token",
	}

	provider := NewAsaasProvider(config)

	if provider == nil {
		t.Fatal("expected non-nil provider")
	}
	if provider.baseURL != "https://api.asaas.com/v3" {
		t.Errorf("baseURL = %s, want https://api.asaas.com/v3", provider.baseURL)
	}
	if provider.httpClient == nil {
		t.Error("expected non-nil httpClient")
	}
}

func TestNewAsaasProvider_CustomBaseURL(t *testing.T) {
	provider := NewAsaasProvider(AsaasConfig{BaseURL: "https://sandbox.asaas.com/api/v3"})

	if provider.baseURL != "https://sandbox.asaas.com/api/v3" {
		t.Errorf("baseURL = %s, want sandbox URL", provider.baseURL)
	}
}

func TestAsaasProvider_Name(t *testing.T) {
	provider := &AsaasProvider{}

	if provider.Name() != "asaas" {
		t.Errorf("Name() = %s, want asaas", provider.Name())
	}
}

func TestAsaasProvider_CreateCustomer_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/customers" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("unexpected method: %s", r.Method)
		}

		// Check headers
		if r.Header.Get("access_token") != "api_key_123" {
			t.Error("missing or incorrect access_token header")
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Error("missing or incorrect Content-Type header")
		}

		var reqBody map[string]interface{}
		json.NewDecoder(r.Body).Decode(&reqBody)

		if reqBody["cpfCnpj"] != "12345678901" {
			t.Errorf("cpfCnpj = %v, want 12345678901", reqBody["cpfCnpj"])
		}
		if reqBody["externalReference"] != "cli-1" {
			t.Errorf("externalReference = %v, want cli-1", reqBody["externalReference"])
		}

		resp := map[string]interface{}{
			"id":     "cus_000001",
			"object": "customer",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewAsaasProvider(AsaasConfig{APIKey: "api_key_123"})
	provider.baseURL = server.URL

	c := client.Client{
		ID:       "cli-1",
		Name:     "Acme Ltda",
		Email:    "billing@acme.example.com",
		Document: "12345678901",
	}

	customerID, err := provider.CreateCustomer(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}
	if customerID != "cus_000001" {
		t.Errorf("customerID = %s, want cus_000001", customerID)
	}
}

func TestAsaasProvider_CreateCustomer_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"object": "customer",
			// Missing "id"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewAsaasProvider(AsaasConfig{APIKey: "api_key_123"})
	provider.baseURL = server.URL

	_, err := provider.CreateCustomer(context.Background(), client.Client{ID: "cli-1"})
	if err == nil {
		t.Error("expected error for missing customer ID")
	}
}

func TestAsaasProvider_CreateSubscription_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscriptions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var reqBody map[string]interface{}
		json.NewDecoder(r.Body).Decode(&reqBody)

		if reqBody["customer"] != "cus_000001" {
			t.Errorf("customer = %v, want cus_000001", reqBody["customer"])
		}
		if reqBody["cycle"] != "MONTHLY" {
			t.Errorf("cycle = %v, want MONTHLY", reqBody["cycle"])
		}
		if reqBody["value"].(float64) != 1500.00 {
			t.Errorf("value = %v, want 1500", reqBody["value"])
		}
		if reqBody["billingType"] != "BOLETO" {
			t.Errorf("billingType = %v, want BOLETO", reqBody["billingType"])
		}

		resp := map[string]interface{}{"id": "sub_000001"}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewAsaasProvider(AsaasConfig{APIKey: "api_key_123"})
	provider.baseURL = server.URL

	subID, err := provider.CreateSubscription(context.Background(), "cus_000001", 150000, 10, "Retainer")
	if err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
	if subID != "sub_000001" {
		t.Errorf("subID = %s, want sub_000001", subID)
	}
}

func TestAsaasProvider_CancelSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscriptions/sub_000001" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != "DELETE" {
			t.Errorf("unexpected method: %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	provider := NewAsaasProvider(AsaasConfig{APIKey: "api_key_123"})
	provider.baseURL = server.URL

	if err := provider.CancelSubscription(context.Background(), "sub_000001"); err != nil {
		t.Fatalf("CancelSubscription failed: %v", err)
	}
}

func TestAsaasProvider_CreatePayment_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var reqBody map[string]interface{}
		json.NewDecoder(r.Body).Decode(&reqBody)

		if reqBody["dueDate"] != "2025-03-10" {
			t.Errorf("dueDate = %v, want 2025-03-10", reqBody["dueDate"])
		}

		resp := map[string]interface{}{
			"id":         "pay_000001",
			"invoiceUrl": "https://invoices.example.com/pay_000001",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewAsaasProvider(AsaasConfig{APIKey: "api_key_123"})
	provider.baseURL = server.URL

	due := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	id, invoiceURL, err := provider.CreatePayment(context.Background(), "cus_000001", 150000, due, "March installment")
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	if id != "pay_000001" {
		t.Errorf("id = %s, want pay_000001", id)
	}
	if invoiceURL != "https://invoices.example.com/pay_000001" {
		t.Errorf("invoiceURL = %s", invoiceURL)
	}
}

func TestAsaasProvider_CancelPayment_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"description":"payment already received"}]}`))
	}))
	defer server.Close()

	provider := NewAsaasProvider(AsaasConfig{APIKey: "api_key_123"})
	provider.baseURL = server.URL

	if err := provider.CancelPayment(context.Background(), "pay_000001"); err == nil {
		t.Error("expected error for API error response")
	}
}

func TestAsaasProvider_VerifyWebhookToken(t *testing.T) {
	provider := NewAsaasProvider(AsaasConfig{WebhookToken: "secret_token"})

	if !provider.VerifyWebhookToken("secret_token") {
		t.Error("expected matching token to verify")
	}
	if provider.VerifyWebhookToken("wrong_token") {
		t.Error("expected mismatched token to fail")
	}
}

func TestAsaasProvider_VerifyWebhookToken_Unconfigured(t *testing.T) {
	provider := NewAsaasProvider(AsaasConfig{})

	if provider.VerifyWebhookToken("") {
		t.Error("unconfigured token must reject everything")
	}
	if provider.VerifyWebhookToken("anything") {
		t.Error("unconfigured token must reject everything")
	}
}

func TestNextDueDate(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		billingDay int
		expected   time.Time
	}{
		{
			name:       "day ahead in current month",
			now:        time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC),
			billingDay: 10,
			expected:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "day already passed rolls to next month",
			now:        time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
			billingDay: 10,
			expected:   time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "same day rolls forward",
			now:        time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
			billingDay: 10,
			expected:   time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "day clamped to 28",
			now:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			billingDay: 31,
			expected:   time.Date(2025, 1, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "day clamped to 1",
			now:        time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
			billingDay: 0,
			expected:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextDueDate(tt.now, tt.billingDay)
			if !got.Equal(tt.expected) {
				t.Errorf("nextDueDate(%v, %d) = %v, want %v", tt.now, tt.billingDay, got, tt.expected)
			}
		})
	}
}

func TestCentsToValue(t *testing.T) {
	if centsToValue(150000) != 1500.00 {
		t.Errorf("centsToValue(150000) = %v, want 1500", centsToValue(150000))
	}
	if centsToValue(99) != 0.99 {
		t.Errorf("centsToValue(99) = %v, want 0.99", centsToValue(99))
	}
}

func TestNoopProvider(t *testing.T) {
	provider := NewNoopProvider()
	ctx := context.Background()

	if provider.Name() != "none" {
		t.Errorf("Name() = %s, want none", provider.Name())
	}
	if _, err := provider.CreateCustomer(ctx, client.Client{}); err != ErrPaymentsDisabled {
		t.Errorf("expected ErrPaymentsDisabled, got %v", err)
	}
	if _, err := provider.CreateSubscription(ctx, "cus", 100, 1, ""); err != ErrPaymentsDisabled {
		t.Errorf("expected ErrPaymentsDisabled, got %v", err)
	}
	if provider.VerifyWebhookToken("any") {
		t.Error("noop provider must reject webhooks")
	}
}
