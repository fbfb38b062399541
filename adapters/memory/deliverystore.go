package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/notify"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// DeliveryStore is an in-memory implementation of ports.DeliveryStore.
type DeliveryStore struct {
	mu         sync.RWMutex
	deliveries map[string]notify.Delivery
	order      []string
}

// NewDeliveryStore creates a new in-memory delivery store.
func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{
		deliveries: make(map[string]notify.Delivery),
	}
}

// Create stores a new delivery record.
func (s *DeliveryStore) Create(ctx context.Context, d notify.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deliveries[d.ID]; exists {
		return ports.ErrDuplicate
	}
	s.deliveries[d.ID] = d
	s.order = append(s.order, d.ID)
	return nil
}

// Update modifies an existing delivery record.
func (s *DeliveryStore) Update(ctx context.Context, d notify.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deliveries[d.ID]; !ok {
		return ports.ErrNotFound
	}
	s.deliveries[d.ID] = d
	return nil
}

// ListRecent returns deliveries newest first.
func (s *DeliveryStore) ListRecent(ctx context.Context, limit int) ([]notify.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []notify.Delivery
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.deliveries[s.order[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListRetryable returns pending deliveries whose retry time has passed.
func (s *DeliveryStore) ListRetryable(ctx context.Context, now time.Time, limit int) ([]notify.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []notify.Delivery
	for _, id := range s.order {
		d := s.deliveries[id]
		if d.Status != notify.DeliveryPending || d.NextRetry == nil || d.NextRetry.After(now) {
			continue
		}
		out = append(out, d)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Ensure interface compliance.
var _ ports.DeliveryStore = (*DeliveryStore)(nil)
