package memory

import (
	"context"
	"sync"

	"github.com/ledgerdesk/ledgerdesk/domain/client"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// ClientStore is an in-memory implementation of ports.ClientStore.
type ClientStore struct {
	mu         sync.RWMutex
	clients    map[string]client.Client // by ID
	byDocument map[string]string        // document -> ID
	byCustomer map[string]string        // provider customer ID -> ID
	order      []string                 // insertion order
}

// NewClientStore creates a new in-memory client store.
func NewClientStore() *ClientStore {
	return &ClientStore{
		clients:    make(map[string]client.Client),
		byDocument: make(map[string]string),
		byCustomer: make(map[string]string),
	}
}

// Get retrieves a client by ID.
func (s *ClientStore) Get(ctx context.Context, id string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[id]
	if !ok {
		return client.Client{}, ports.ErrNotFound
	}
	return c, nil
}

// GetByDocument retrieves a client by normalized CPF/CNPJ.
func (s *ClientStore) GetByDocument(ctx context.Context, document string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDocument[document]
	if !ok {
		return client.Client{}, ports.ErrNotFound
	}
	return s.clients[id], nil
}

// GetByCustomerID retrieves a client by provider customer ID.
func (s *ClientStore) GetByCustomerID(ctx context.Context, customerID string) (client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCustomer[customerID]
	if !ok {
		return client.Client{}, ports.ErrNotFound
	}
	return s.clients[id], nil
}

// Create stores a new client. Documents are unique.
func (s *ClientStore) Create(ctx context.Context, c client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byDocument[c.Document]; exists {
		return ports.ErrDuplicate
	}

	s.clients[c.ID] = c
	s.byDocument[c.Document] = c.ID
	if c.CustomerID != "" {
		s.byCustomer[c.CustomerID] = c.ID
	}
	s.order = append(s.order, c.ID)
	return nil
}

// Update modifies an existing client.
func (s *ClientStore) Update(ctx context.Context, c client.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.clients[c.ID]
	if !ok {
		return ports.ErrNotFound
	}

	if old.CustomerID != c.CustomerID {
		delete(s.byCustomer, old.CustomerID)
		if c.CustomerID != "" {
			s.byCustomer[c.CustomerID] = c.ID
		}
	}
	s.clients[c.ID] = c
	return nil
}

// Delete removes a client.
func (s *ClientStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[id]
	if !ok {
		return ports.ErrNotFound
	}

	delete(s.byDocument, c.Document)
	delete(s.byCustomer, c.CustomerID)
	delete(s.clients, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns clients in insertion order with pagination.
func (s *ClientStore) List(ctx context.Context, limit, offset int) ([]client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset >= len(s.order) {
		return nil, nil
	}
	ids := s.order[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	out := make([]client.Client, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.clients[id])
	}
	return out, nil
}

// Count returns the total client count.
func (s *ClientStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients), nil
}

// Ensure interface compliance.
var _ ports.ClientStore = (*ClientStore)(nil)
