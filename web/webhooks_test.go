package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/ledgerdesk/ledgerdesk/domain/billing"
	"github.com/ledgerdesk/ledgerdesk/domain/permission"
)

// postWebhook sends an Asaas-shaped event with the given access token.
func (f *fixture) postWebhook(t *testing.T, token string, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		t.Fatalf("encode webhook: %v", err)
	}

	req := httptest.NewRequest("POST", "/webhooks/asaas", &buf)
	if token != "" {
		req.Header.Set("asaas-access-token", token)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// signedContractID drives a client and signed contract through the API
// and returns the contract ID. The fake provider hands out sub_1.
func (f *fixture) signedContractID(t *testing.T) string {
	t.Helper()

	token := f.login(t, permission.ClientsWrite, permission.ContractsWrite)

	rec := f.do(t, "POST", "/api/clients", token, map[string]string{
		"name":     "ACME",
		"email":    "billing@acme.example",
		"document": "12345678000190",
	})
	clientID := decodeBody(t, rec)["id"].(string)

	rec = f.do(t, "POST", "/api/contracts", token, map[string]interface{}{
		"client_id":   clientID,
		"value":       150000,
		"billing_day": 10,
		"start_date":  "2025-03-01",
	})
	contractID := decodeBody(t, rec)["id"].(string)

	rec = f.do(t, "POST", "/api/contracts/"+contractID+"/sign", token, nil)
	if rec.Code != 200 {
		t.Fatalf("sign status = %d, body: %s", rec.Code, rec.Body.String())
	}
	return contractID
}

func TestAsaasWebhook_BadToken(t *testing.T) {
	f := setupWeb(t)

	rec := f.postWebhook(t, "wrong-token", map[string]interface{}{
		"event": "PAYMENT_RECEIVED",
	})
	if rec.Code != 401 {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAsaasWebhook_MalformedBody(t *testing.T) {
	f := setupWeb(t)

	req := httptest.NewRequest("POST", "/webhooks/asaas", bytes.NewBufferString("{not json"))
	req.Header.Set("asaas-access-token", webhookToken)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAsaasWebhook_PaymentRegistersBilling(t *testing.T) {
	f := setupWeb(t)
	contractID := f.signedContractID(t)

	rec := f.postWebhook(t, webhookToken, map[string]interface{}{
		"event": "PAYMENT_CONFIRMED",
		"payment": map[string]interface{}{
			"id":           "pay_hook_1",
			"subscription": "sub_1",
			"status":       "CONFIRMED",
			"value":        1500.00,
			"dueDate":      "2025-03-10",
			"invoiceUrl":   "https://invoice.example/pay_hook_1",
			"billingType":  "BOLETO",
		},
	})
	if rec.Code != 200 {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["status"]; got != "processed" {
		t.Errorf("status field = %v, want processed", got)
	}

	b, err := f.billings.GetByProviderID(context.Background(), "pay_hook_1")
	if err != nil {
		t.Fatalf("billing was not registered: %v", err)
	}
	if b.ContractID != contractID {
		t.Errorf("contract ID = %s, want %s", b.ContractID, contractID)
	}
	if b.Value != 150000 {
		t.Errorf("value = %d cents, want 150000", b.Value)
	}
	if b.Status != billing.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", b.Status)
	}
}

func TestAsaasWebhook_UnmatchedReturns200(t *testing.T) {
	f := setupWeb(t)

	rec := f.postWebhook(t, webhookToken, map[string]interface{}{
		"event": "PAYMENT_RECEIVED",
		"payment": map[string]interface{}{
			"id":       "pay_stranger",
			"customer": "cus_unknown",
			"status":   "RECEIVED",
			"value":    99.90,
			"dueDate":  "2025-03-10",
		},
	})
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200 so the provider stops retrying", rec.Code)
	}
	if got := decodeBody(t, rec)["status"]; got != "unmatched" {
		t.Errorf("status field = %v, want unmatched", got)
	}
}

func TestAsaasWebhook_SubscriptionDeletedCancelsContract(t *testing.T) {
	f := setupWeb(t)
	contractID := f.signedContractID(t)

	rec := f.postWebhook(t, webhookToken, map[string]interface{}{
		"event": "SUBSCRIPTION_DELETED",
		"subscription": map[string]interface{}{
			"id":     "sub_1",
			"status": "INACTIVE",
		},
	})
	if rec.Code != 200 {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}

	ct, err := f.contracts.Get(context.Background(), contractID)
	if err != nil {
		t.Fatalf("get contract: %v", err)
	}
	if string(ct.Status) != "cancelled" {
		t.Errorf("contract status = %s, want cancelled", ct.Status)
	}
}

func TestAsaasWebhook_UnhandledEventIsIgnored(t *testing.T) {
	f := setupWeb(t)

	rec := f.postWebhook(t, webhookToken, map[string]interface{}{
		"event": "TRANSFER_DONE",
	})
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeBody(t, rec)["status"]; got != "ignored" {
		t.Errorf("status field = %v, want ignored", got)
	}
}

func TestPartnerProxy_CacheAndBudget(t *testing.T) {
	f := setupWeb(t)
	token := f.login(t, permission.PartnerManage)

	rec := f.do(t, "GET", "/api/partner/empresas", token, nil)
	if rec.Code != 200 {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first call X-Cache = %s, want MISS", got)
	}

	rec = f.do(t, "GET", "/api/partner/empresas", token, nil)
	if got := rec.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second call X-Cache = %s, want HIT", got)
	}

	// Budget is 2 calls per window; the cache hit spent nothing.
	rec = f.do(t, "GET", "/api/partner/contratos", token, nil)
	if rec.Code != 200 {
		t.Fatalf("second path status = %d", rec.Code)
	}

	rec = f.do(t, "GET", "/api/partner/servicos", token, nil)
	if rec.Code != 429 {
		t.Fatalf("over-budget status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	rec = f.do(t, "GET", "/api/partner/cache/stats", token, nil)
	if got := decodeBody(t, rec)["throttled"]; got != float64(1) {
		t.Errorf("throttled = %v, want 1", got)
	}
}

func TestPartnerCacheStatsAndClear(t *testing.T) {
	f := setupWeb(t)
	token := f.login(t, permission.PartnerManage)

	f.do(t, "GET", "/api/partner/empresas", token, nil)

	rec := f.do(t, "GET", "/api/partner/cache/stats", token, nil)
	if rec.Code != 200 {
		t.Fatalf("stats status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["entries"]; got != float64(1) {
		t.Errorf("entries = %v, want 1", got)
	}

	rec = f.do(t, "POST", "/api/partner/cache/clear", token, nil)
	if rec.Code != 200 {
		t.Fatalf("clear status = %d", rec.Code)
	}

	rec = f.do(t, "GET", "/api/partner/cache/stats", token, nil)
	if got := decodeBody(t, rec)["entries"]; got != float64(0) {
		t.Errorf("entries after clear = %v, want 0", got)
	}
}

func TestListDeliveries(t *testing.T) {
	f := setupWeb(t)
	token := f.login(t, permission.UsersManage)

	rec := f.do(t, "GET", "/api/deliveries", token, nil)
	if rec.Code != 200 {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	if _, ok := decodeBody(t, rec)["deliveries"]; !ok {
		t.Error("response has no deliveries field")
	}
}
