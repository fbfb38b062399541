package memory

import (
	"context"
	"sync"

	"github.com/ledgerdesk/ledgerdesk/domain/contract"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// ContractStore is an in-memory implementation of ports.ContractStore.
type ContractStore struct {
	mu             sync.RWMutex
	contracts      map[string]contract.Contract // by ID
	bySubscription map[string]string            // provider subscription ID -> ID
	order          []string
}

// NewContractStore creates a new in-memory contract store.
func NewContractStore() *ContractStore {
	return &ContractStore{
		contracts:      make(map[string]contract.Contract),
		bySubscription: make(map[string]string),
	}
}

// Get retrieves a contract by ID.
func (s *ContractStore) Get(ctx context.Context, id string) (contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return contract.Contract{}, ports.ErrNotFound
	}
	return c, nil
}

// GetBySubscriptionID retrieves a contract by provider subscription ID.
func (s *ContractStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if subscriptionID == "" {
		return contract.Contract{}, ports.ErrNotFound
	}
	id, ok := s.bySubscription[subscriptionID]
	if !ok {
		return contract.Contract{}, ports.ErrNotFound
	}
	return s.contracts[id], nil
}

// Create stores a new contract.
func (s *ContractStore) Create(ctx context.Context, c contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contracts[c.ID]; exists {
		return ports.ErrDuplicate
	}

	s.contracts[c.ID] = c
	if c.SubscriptionID != "" {
		s.bySubscription[c.SubscriptionID] = c.ID
	}
	s.order = append(s.order, c.ID)
	return nil
}

// Update modifies an existing contract.
func (s *ContractStore) Update(ctx context.Context, c contract.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.contracts[c.ID]
	if !ok {
		return ports.ErrNotFound
	}

	if old.SubscriptionID != c.SubscriptionID {
		delete(s.bySubscription, old.SubscriptionID)
		if c.SubscriptionID != "" {
			s.bySubscription[c.SubscriptionID] = c.ID
		}
	}
	s.contracts[c.ID] = c
	return nil
}

// ListByClient returns all contracts for a client in insertion order.
func (s *ContractStore) ListByClient(ctx context.Context, clientID string) ([]contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []contract.Contract
	for _, id := range s.order {
		if c := s.contracts[id]; c.ClientID == clientID {
			out = append(out, c)
		}
	}
	return out, nil
}

// List returns contracts in insertion order with pagination.
func (s *ContractStore) List(ctx context.Context, limit, offset int) ([]contract.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.order) {
		return nil, nil
	}
	ids := s.order[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	out := make([]contract.Contract, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.contracts[id])
	}
	return out, nil
}

// Count returns the total contract count.
func (s *ContractStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts), nil
}

// Ensure interface compliance.
var _ ports.ContractStore = (*ContractStore)(nil)
