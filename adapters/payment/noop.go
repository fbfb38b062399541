package payment

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/client"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

var (
	// ErrPaymentsDisabled is returned when payments are not configured.
	ErrPaymentsDisabled = errors.New("payments are not configured")
)

// NoopProvider is a no-op payment provider for when payments are disabled.
type NoopProvider struct{}

// NewNoopProvider creates a new no-op payment provider.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Name returns the provider name.
func (p *NoopProvider) Name() string {
	return "none"
}

// CreateCustomer returns an error as payments are disabled.
func (p *NoopProvider) CreateCustomer(ctx context.Context, c client.Client) (string, error) {
	return "", ErrPaymentsDisabled
}

// CreateSubscription returns an error as payments are disabled.
func (p *NoopProvider) CreateSubscription(ctx context.Context, customerID string, value int64, billingDay int, description string) (string, error) {
	return "", ErrPaymentsDisabled
}

// CancelSubscription returns an error as payments are disabled.
func (p *NoopProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return ErrPaymentsDisabled
}

// CreatePayment returns an error as payments are disabled.
func (p *NoopProvider) CreatePayment(ctx context.Context, customerID string, value int64, dueDate time.Time, description string) (string, string, error) {
	return "", "", ErrPaymentsDisabled
}

// CancelPayment returns an error as payments are disabled.
func (p *NoopProvider) CancelPayment(ctx context.Context, paymentID string) error {
	return ErrPaymentsDisabled
}

// VerifyWebhookToken rejects all webhooks when payments are disabled.
func (p *NoopProvider) VerifyWebhookToken(token string) bool {
	return false
}

// Ensure interface compliance.
var _ ports.PaymentProvider = (*NoopProvider)(nil)
