// Package erp provides the bookkeeping platform adapter (Omie).
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/client"
	"github.com/ledgerdesk/ledgerdesk/domain/contract"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// OmieConfig holds Omie API credentials.
type OmieConfig struct {
	AppKey    string
	AppSecret string
	BaseURL   string // defaults to the production API
}

// OmieBookkeeper implements ports.Bookkeeper against the Omie API.
// Omie exposes an RPC-over-POST interface: every request names a call
// and carries the credentials in the body.
type OmieBookkeeper struct {
	config     OmieConfig
	httpClient *http.Client
	baseURL    string
}

// NewOmieBookkeeper creates a new Omie adapter.
func NewOmieBookkeeper(config OmieConfig) *OmieBookkeeper {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://app.omie.com.br/api/v1"
	}
	return &OmieBookkeeper{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// UpsertClient pushes a client record and returns the Omie client code.
func (b *OmieBookkeeper) UpsertClient(ctx context.Context, c client.Client) (string, error) {
	param := map[string]interface{}{
		"codigo_cliente_integracao": c.ID,
		"razao_social":              c.Name,
		"email":                     c.Email,
		"cnpj_cpf":                  c.Document,
	}
	if c.Phone != "" {
		param["telefone1_numero"] = c.Phone
	}
	if c.City != "" {
		param["cidade"] = c.City
	}
	if c.State != "" {
		param["estado"] = c.State
	}

	resp, err := b.call(ctx, "/geral/clientes/", "UpsertCliente", param)
	if err != nil {
		return "", err
	}

	switch code := resp["codigo_cliente_omie"].(type) {
	case float64:
		return strconv.FormatInt(int64(code), 10), nil
	case string:
		return code, nil
	}
	return "", errors.New("omie response missing client code")
}

// CreateServiceOrder registers a contract as a service order.
func (b *OmieBookkeeper) CreateServiceOrder(ctx context.Context, ct contract.Contract, clientCode string) (string, error) {
	param := map[string]interface{}{
		"Cabecalho": map[string]interface{}{
			"cCodIntOS":   ct.ID,
			"cCodCliente": clientCode,
			"dDtPrevisao": ct.StartDate.Format("02/01/2006"),
		},
		"InformacoesAdicionais": map[string]interface{}{
			"cDescricao": ct.Description,
		},
	}

	resp, err := b.call(ctx, "/servicos/os/", "IncluirOS", param)
	if err != nil {
		return "", err
	}

	switch id := resp["nCodOS"].(type) {
	case float64:
		return strconv.FormatInt(int64(id), 10), nil
	case string:
		return id, nil
	}
	return "", errors.New("omie response missing order code")
}

func (b *OmieBookkeeper) call(ctx context.Context, endpoint, call string, param map[string]interface{}) (map[string]interface{}, error) {
	envelope := map[string]interface{}{
		"call":       call,
		"app_key":    b.config.AppKey,
		"app_secret": b.config.AppSecret,
		"param":      []interface{}{param},
	}

	jsonBody, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("omie API error: status %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	// Omie reports application faults with a 200 status and a faultstring.
	if fault, ok := result["faultstring"].(string); ok && fault != "" {
		return nil, fmt.Errorf("omie fault: %s", fault)
	}

	return result, nil
}

// Ensure interface compliance.
var _ ports.Bookkeeper = (*OmieBookkeeper)(nil)
