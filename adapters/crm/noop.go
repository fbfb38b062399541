package crm

import (
	"context"
	"net/http"

	"github.com/ledgerdesk/ledgerdesk/ports"
)

// NoopNotifier swallows notifications for when no CRM endpoint is
// configured. Deliveries are recorded as successful.
type NoopNotifier struct{}

// NewNoopNotifier creates a new no-op notifier.
func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

// Send discards the payload.
func (NoopNotifier) Send(ctx context.Context, payload []byte, signature string) (int, string, error) {
	return http.StatusOK, "", nil
}

// Ensure interface compliance.
var _ ports.CRMNotifier = NoopNotifier{}
