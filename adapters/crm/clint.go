// Package crm provides the outbound CRM notifier adapter (Clint).
package crm

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ledgerdesk/ledgerdesk/ports"
)

// maxResponseBody bounds how much of the CRM response is kept for audit.
const maxResponseBody = 1024

// ClintConfig holds Clint webhook configuration.
type ClintConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// ClintNotifier implements ports.CRMNotifier by posting signed JSON
// payloads to the Clint webhook endpoint.
type ClintNotifier struct {
	config     ClintConfig
	httpClient *http.Client
}

// NewClintNotifier creates a new Clint notifier.
func NewClintNotifier(config ClintConfig) *ClintNotifier {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ClintNotifier{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send delivers one notification payload. Returns the HTTP status code
// and the truncated response body.
func (n *ClintNotifier) Send(ctx context.Context, payload []byte, signature string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", n.config.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, "", err
	}

	return resp.StatusCode, string(body), nil
}

// Ensure interface compliance.
var _ ports.CRMNotifier = (*ClintNotifier)(nil)
