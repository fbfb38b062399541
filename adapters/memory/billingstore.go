package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/billing"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// BillingStore is an in-memory implementation of ports.BillingStore.
type BillingStore struct {
	mu         sync.RWMutex
	billings   map[string]billing.Billing // by ID
	byProvider map[string]string          // provider payment ID -> ID
	order      []string
}

// NewBillingStore creates a new in-memory billing store.
func NewBillingStore() *BillingStore {
	return &BillingStore{
		billings:   make(map[string]billing.Billing),
		byProvider: make(map[string]string),
	}
}

// Get retrieves a billing by ID.
func (s *BillingStore) Get(ctx context.Context, id string) (billing.Billing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.billings[id]
	if !ok {
		return billing.Billing{}, ports.ErrNotFound
	}
	return b, nil
}

// GetByProviderID retrieves a billing by provider payment ID.
func (s *BillingStore) GetByProviderID(ctx context.Context, providerID string) (billing.Billing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if providerID == "" {
		return billing.Billing{}, ports.ErrNotFound
	}
	id, ok := s.byProvider[providerID]
	if !ok {
		return billing.Billing{}, ports.ErrNotFound
	}
	return s.billings[id], nil
}

// Create stores a new billing.
func (s *BillingStore) Create(ctx context.Context, b billing.Billing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.billings[b.ID]; exists {
		return ports.ErrDuplicate
	}

	s.billings[b.ID] = b
	if b.ProviderID != "" {
		s.byProvider[b.ProviderID] = b.ID
	}
	s.order = append(s.order, b.ID)
	return nil
}

// Update modifies an existing billing.
func (s *BillingStore) Update(ctx context.Context, b billing.Billing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.billings[b.ID]
	if !ok {
		return ports.ErrNotFound
	}

	if old.ProviderID != b.ProviderID {
		delete(s.byProvider, old.ProviderID)
		if b.ProviderID != "" {
			s.byProvider[b.ProviderID] = b.ID
		}
	}
	s.billings[b.ID] = b
	return nil
}

// ListByContract returns all billings for a contract in insertion order.
func (s *BillingStore) ListByContract(ctx context.Context, contractID string) ([]billing.Billing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []billing.Billing
	for _, id := range s.order {
		if b := s.billings[id]; b.ContractID == contractID {
			out = append(out, b)
		}
	}
	return out, nil
}

// List returns billings in insertion order with pagination.
func (s *BillingStore) List(ctx context.Context, limit, offset int) ([]billing.Billing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.order) {
		return nil, nil
	}
	ids := s.order[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	out := make([]billing.Billing, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.billings[id])
	}
	return out, nil
}

// ListPendingDueBefore returns pending billings due strictly before the
// cutoff, oldest first.
func (s *BillingStore) ListPendingDueBefore(ctx context.Context, before time.Time, limit int) ([]billing.Billing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []billing.Billing
	for _, b := range s.billings {
		if b.Status == billing.StatusPending && b.DueDate.Before(before) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Ensure interface compliance.
var _ ports.BillingStore = (*BillingStore)(nil)
