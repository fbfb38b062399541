// Package partner provides the client for the guarded commercial partner
// API (BomControle).
package partner

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerdesk/ledgerdesk/ports"
)

// BomControleConfig holds BomControle API configuration.
type BomControleConfig struct {
	APIKey  string
	BaseURL string // defaults to the production API
}

// BomControleClient implements ports.PartnerClient for BomControle.
type BomControleClient struct {
	config     BomControleConfig
	httpClient *http.Client
	baseURL    string
}

// NewBomControleClient creates a new BomControle client.
func NewBomControleClient(config BomControleConfig) *BomControleClient {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://apinewintegracao.bomcontrole.com.br/integracao"
	}
	return &BomControleClient{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Fetch performs a partner call for the given resource path and returns
// the raw JSON response.
func (c *BomControleClient) Fetch(ctx context.Context, path string) ([]byte, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "ApiKey "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bomcontrole API error: status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Ensure interface compliance.
var _ ports.PartnerClient = (*BomControleClient)(nil)
