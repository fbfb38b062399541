package app

import (
	"context"

	"github.com/ledgerdesk/ledgerdesk/domain/client"
	"github.com/ledgerdesk/ledgerdesk/domain/notify"
	"github.com/ledgerdesk/ledgerdesk/ports"
	"github.com/rs/zerolog"
)

// ClientService manages clients and their propagation to the payment
// provider and the ERP. External sync failures never lose the local
// record: the client is persisted first and the sync state tracks what
// still needs pushing.
type ClientService struct {
	clients    ports.ClientStore
	contracts  ports.ContractStore
	payments   ports.PaymentProvider
	bookkeeper ports.Bookkeeper
	notifier   ports.Notifier
	clock      ports.Clock
	idGen      ports.IDGenerator
	logger     zerolog.Logger
}

// NewClientService creates a new client service.
func NewClientService(
	clients ports.ClientStore,
	contracts ports.ContractStore,
	payments ports.PaymentProvider,
	bookkeeper ports.Bookkeeper,
	notifier ports.Notifier,
	clock ports.Clock,
	idGen ports.IDGenerator,
	logger zerolog.Logger,
) *ClientService {
	return &ClientService{
		clients:    clients,
		contracts:  contracts,
		payments:   payments,
		bookkeeper: bookkeeper,
		notifier:   notifier,
		clock:      clock,
		idGen:      idGen,
		logger:     logger,
	}
}

// CreateClientInput carries the fields accepted when registering a client.
type CreateClientInput struct {
	Name     string
	Email    string
	Document string
	Phone    string
	City     string
	State    string
}

// Create registers a client locally and pushes it to the payment provider
// and the ERP.
func (s *ClientService) Create(ctx context.Context, in CreateClientInput) (client.Client, error) {
	now := s.clock.Now()
	c := client.Client{
		ID:        s.idGen.New(),
		Name:      in.Name,
		Email:     in.Email,
		Document:  client.NormalizeDocument(in.Document),
		Phone:     in.Phone,
		City:      in.City,
		State:     in.State,
		ERPSync:   client.SyncPending,
		PaySync:   client.SyncPending,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if reason := client.Validate(c); reason != "" {
		return client.Client{}, ErrValidation{Reason: reason}
	}

	if err := s.clients.Create(ctx, c); err != nil {
		if isDuplicate(err) {
			return client.Client{}, ErrValidation{Reason: "a client with this document already exists"}
		}
		return client.Client{}, err
	}

	s.logger.Info().
		Str("client_id", c.ID).
		Str("document", c.Document).
		Msg("client created")

	c = s.syncExternal(ctx, c)

	s.notifier.Notify(ctx, notify.EventClientCreated, map[string]interface{}{
		"client_id": c.ID,
		"name":      c.Name,
	})

	return c, nil
}

// Get retrieves a client by ID.
func (s *ClientService) Get(ctx context.Context, id string) (client.Client, error) {
	return s.clients.Get(ctx, id)
}

// UpdateClientInput carries the mutable client fields. Nil fields are
// left unchanged.
type UpdateClientInput struct {
	Name   *string
	Email  *string
	Phone  *string
	City   *string
	State  *string
	Active *bool
}

// Update modifies a client's contact fields. The document is immutable;
// a typo'd document means a new client.
func (s *ClientService) Update(ctx context.Context, id string, in UpdateClientInput) (client.Client, error) {
	c, err := s.clients.Get(ctx, id)
	if err != nil {
		return client.Client{}, err
	}

	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Email != nil {
		c.Email = *in.Email
	}
	if in.Phone != nil {
		c.Phone = *in.Phone
	}
	if in.City != nil {
		c.City = *in.City
	}
	if in.State != nil {
		c.State = *in.State
	}
	if in.Active != nil {
		c.Active = *in.Active
	}
	c.UpdatedAt = s.clock.Now()

	if reason := client.Validate(c); reason != "" {
		return client.Client{}, ErrValidation{Reason: reason}
	}

	if err := s.clients.Update(ctx, c); err != nil {
		return client.Client{}, err
	}

	s.notifier.Notify(ctx, notify.EventClientUpdated, map[string]interface{}{
		"client_id": c.ID,
		"name":      c.Name,
	})

	return c, nil
}

// Delete removes a client that has no contracts.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	contracts, err := s.contracts.ListByClient(ctx, id)
	if err != nil {
		return err
	}
	if len(contracts) > 0 {
		return ErrValidation{Reason: "client has contracts and cannot be deleted"}
	}
	return s.clients.Delete(ctx, id)
}

// List returns clients with pagination plus the total count.
func (s *ClientService) List(ctx context.Context, limit, offset int) ([]client.Client, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	clients, err := s.clients.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.clients.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

// RetrySync re-attempts the external pushes for a client whose sync
// previously failed.
func (s *ClientService) RetrySync(ctx context.Context, id string) (client.Client, error) {
	c, err := s.clients.Get(ctx, id)
	if err != nil {
		return client.Client{}, err
	}
	return s.syncExternal(ctx, c), nil
}

// syncExternal pushes the client to Asaas and Omie, recording the outcome
// in the sync state fields. Failures are logged, never fatal.
func (s *ClientService) syncExternal(ctx context.Context, c client.Client) client.Client {
	changed := false

	if c.PaySync != client.SyncDone {
		customerID, err := s.payments.CreateCustomer(ctx, c)
		if err != nil {
			s.logger.Error().Err(err).
				Str("client_id", c.ID).
				Msg("failed to push client to payment provider")
			c.PaySync = client.SyncFailed
		} else {
			c.CustomerID = customerID
			c.PaySync = client.SyncDone
			s.logger.Info().
				Str("client_id", c.ID).
				Str("customer_id", customerID).
				Msg("client registered with payment provider")
		}
		changed = true
	}

	if c.ERPSync != client.SyncDone {
		erpCode, err := s.bookkeeper.UpsertClient(ctx, c)
		if err != nil {
			s.logger.Error().Err(err).
				Str("client_id", c.ID).
				Msg("failed to push client to ERP")
			c.ERPSync = client.SyncFailed
		} else {
			c.ERPCode = erpCode
			c.ERPSync = client.SyncDone
			s.logger.Info().
				Str("client_id", c.ID).
				Str("erp_code", erpCode).
				Msg("client registered with ERP")
		}
		changed = true
	}

	if changed {
		c.UpdatedAt = s.clock.Now()
		if err := s.clients.Update(ctx, c); err != nil {
			s.logger.Error().Err(err).
				Str("client_id", c.ID).
				Msg("failed to persist client sync state")
		}
	}

	return c
}
