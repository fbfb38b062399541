// Package payment provides payment provider implementations (Asaas).
package payment

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/client"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// AsaasConfig holds Asaas API configuration.
type AsaasConfig struct {
	APIKey       string
	BaseURL      string // defaults to the production API
	WebhookToken string // expected value of the asaas-access-token header
	BillingType  string // default billing type for new charges
}

// AsaasProvider implements ports.PaymentProvider for Asaas.
type AsaasProvider struct {
	config     AsaasConfig
	httpClient *http.Client
	baseURL    string
}

// NewAsaasProvider creates a new Asaas payment provider.
func NewAsaasProvider(config AsaasConfig) *AsaasProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.asaas.com/v3"
	}
	return &AsaasProvider{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// Name returns the provider name.
func (p *AsaasProvider) Name() string {
	return "asaas"
}

// CreateCustomer registers a client in Asaas.
func (p *AsaasProvider) CreateCustomer(ctx context.Context, c client.Client) (string, error) {
	payload := map[string]interface{}{
		"name":    c.Name,
		"email":   c.Email,
		"cpfCnpj": c.Document,
	}
	if c.Phone != "" {
		payload["mobilePhone"] = c.Phone
	}
	if c.City != "" {
		payload["city"] = c.City
	}
	if c.State != "" {
		payload["state"] = c.State
	}
	payload["externalReference"] = c.ID

	resp, err := p.doRequest(ctx, "POST", "/customers", payload)
	if err != nil {
		return "", err
	}

	if id, ok := resp["id"].(string); ok {
		return id, nil
	}
	return "", errors.New("failed to create customer")
}

// CreateSubscription opens a monthly recurring billing schedule.
func (p *AsaasProvider) CreateSubscription(ctx context.Context, customerID string, value int64, billingDay int, description string) (string, error) {
	payload := map[string]interface{}{
		"customer":    customerID,
		"billingType": p.billingType(),
		"value":       centsToValue(value),
		"nextDueDate": nextDueDate(time.Now().UTC(), billingDay).Format("2006-01-02"),
		"cycle":       "MONTHLY",
		"description": description,
	}

	resp, err := p.doRequest(ctx, "POST", "/subscriptions", payload)
	if err != nil {
		return "", err
	}

	if id, ok := resp["id"].(string); ok {
		return id, nil
	}
	return "", errors.New("failed to create subscription")
}

// CancelSubscription stops a recurring billing schedule.
func (p *AsaasProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	_, err := p.doRequest(ctx, "DELETE", "/subscriptions/"+subscriptionID, nil)
	return err
}

// CreatePayment issues a one-off charge.
func (p *AsaasProvider) CreatePayment(ctx context.Context, customerID string, value int64, dueDate time.Time, description string) (string, string, error) {
	payload := map[string]interface{}{
		"customer":    customerID,
		"billingType": p.billingType(),
		"value":       centsToValue(value),
		"dueDate":     dueDate.Format("2006-01-02"),
		"description": description,
	}

	resp, err := p.doRequest(ctx, "POST", "/payments", payload)
	if err != nil {
		return "", "", err
	}

	id, ok := resp["id"].(string)
	if !ok {
		return "", "", errors.New("failed to create payment")
	}
	invoiceURL, _ := resp["invoiceUrl"].(string)
	return id, invoiceURL, nil
}

// CancelPayment cancels a pending charge.
func (p *AsaasProvider) CancelPayment(ctx context.Context, paymentID string) error {
	_, err := p.doRequest(ctx, "DELETE", "/payments/"+paymentID, nil)
	return err
}

// VerifyWebhookToken checks the access token presented on inbound webhooks.
// An unconfigured token rejects everything.
func (p *AsaasProvider) VerifyWebhookToken(token string) bool {
	if p.config.WebhookToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(p.config.WebhookToken)) == 1
}

func (p *AsaasProvider) billingType() string {
	if p.config.BillingType != "" {
		return p.config.BillingType
	}
	return "BOLETO"
}

func (p *AsaasProvider) doRequest(ctx context.Context, method, endpoint string, payload map[string]interface{}) (map[string]interface{}, error) {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("access_token", p.config.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("asaas API error: status %d: %s", resp.StatusCode, string(respBody))
	}

	if resp.StatusCode == 204 {
		return nil, nil // No content
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// centsToValue converts an integer cents amount to the decimal value the
// Asaas API expects.
func centsToValue(cents int64) float64 {
	return float64(cents) / 100
}

// nextDueDate picks the first occurrence of billingDay strictly after now.
func nextDueDate(now time.Time, billingDay int) time.Time {
	if billingDay < 1 {
		billingDay = 1
	}
	if billingDay > 28 {
		billingDay = 28
	}
	due := time.Date(now.Year(), now.Month(), billingDay, 0, 0, 0, 0, time.UTC)
	if !due.After(now) {
		due = due.AddDate(0, 1, 0)
	}
	return due
}

// Ensure interface compliance.
var _ ports.PaymentProvider = (*AsaasProvider)(nil)
