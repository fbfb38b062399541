package erp

import (
	"context"
	"errors"

	"github.com/ledgerdesk/ledgerdesk/domain/client"
	"github.com/ledgerdesk/ledgerdesk/domain/contract"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// ErrERPDisabled is returned when the ERP integration is not configured.
var ErrERPDisabled = errors.New("erp integration is not configured")

// NoopBookkeeper is a no-op bookkeeper for when the ERP is disabled.
// Client syncs record a failure, which the sync retry surfaces.
type NoopBookkeeper struct{}

// NewNoopBookkeeper creates a new no-op bookkeeper.
func NewNoopBookkeeper() *NoopBookkeeper {
	return &NoopBookkeeper{}
}

// UpsertClient returns an error as the ERP is disabled.
func (b *NoopBookkeeper) UpsertClient(ctx context.Context, c client.Client) (string, error) {
	return "", ErrERPDisabled
}

// CreateServiceOrder returns an error as the ERP is disabled.
func (b *NoopBookkeeper) CreateServiceOrder(ctx context.Context, ct contract.Contract, clientCode string) (string, error) {
	return "", ErrERPDisabled
}

// Ensure interface compliance.
var _ ports.Bookkeeper = (*NoopBookkeeper)(nil)
