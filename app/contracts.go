package app

import (
	"context"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/billing"
	"github.com/ledgerdesk/ledgerdesk/domain/client"
	"github.com/ledgerdesk/ledgerdesk/domain/contract"
	"github.com/ledgerdesk/ledgerdesk/domain/notify"
	"github.com/ledgerdesk/ledgerdesk/ports"
	"github.com/rs/zerolog"
)

// ContractService manages the contract lifecycle: draft, signature (which
// opens the recurring billing schedule), and cancellation.
type ContractService struct {
	clients    ports.ClientStore
	contracts  ports.ContractStore
	billings   ports.BillingStore
	payments   ports.PaymentProvider
	bookkeeper ports.Bookkeeper
	notifier   ports.Notifier
	clock      ports.Clock
	idGen      ports.IDGenerator
	logger     zerolog.Logger
}

// NewContractService creates a new contract service.
func NewContractService(
	clients ports.ClientStore,
	contracts ports.ContractStore,
	billings ports.BillingStore,
	payments ports.PaymentProvider,
	bookkeeper ports.Bookkeeper,
	notifier ports.Notifier,
	clock ports.Clock,
	idGen ports.IDGenerator,
	logger zerolog.Logger,
) *ContractService {
	return &ContractService{
		clients:    clients,
		contracts:  contracts,
		billings:   billings,
		payments:   payments,
		bookkeeper: bookkeeper,
		notifier:   notifier,
		clock:      clock,
		idGen:      idGen,
		logger:     logger,
	}
}

// CreateContractInput carries the fields accepted when drafting a contract.
type CreateContractInput struct {
	ClientID    string
	Description string
	Value       int64 // cents per cycle
	BillingDay  int
	StartDate   time.Time
	EndDate     *time.Time
}

// Create drafts a contract for an existing client. Nothing is pushed to
// external platforms until the contract is signed.
func (s *ContractService) Create(ctx context.Context, in CreateContractInput) (contract.Contract, error) {
	if in.Value <= 0 {
		return contract.Contract{}, ErrValidation{Reason: "value must be positive"}
	}
	if in.BillingDay < 1 || in.BillingDay > 28 {
		return contract.Contract{}, ErrValidation{Reason: "billing day must be between 1 and 28"}
	}
	if in.EndDate != nil && !in.EndDate.After(in.StartDate) {
		return contract.Contract{}, ErrValidation{Reason: "end date must be after start date"}
	}

	if _, err := s.clients.Get(ctx, in.ClientID); err != nil {
		if isNotFound(err) {
			return contract.Contract{}, ErrValidation{Reason: "client not found"}
		}
		return contract.Contract{}, err
	}

	now := s.clock.Now()
	ct := contract.Contract{
		ID:          s.idGen.New(),
		ClientID:    in.ClientID,
		Description: in.Description,
		Value:       in.Value,
		BillingDay:  in.BillingDay,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      contract.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.contracts.Create(ctx, ct); err != nil {
		return contract.Contract{}, err
	}

	s.logger.Info().
		Str("contract_id", ct.ID).
		Str("client_id", ct.ClientID).
		Int64("value", ct.Value).
		Msg("contract drafted")

	return ct, nil
}

// Sign marks a contract as signed, opens the recurring billing schedule at
// the payment provider, and registers a service order in the ERP.
func (s *ContractService) Sign(ctx context.Context, id string) (contract.Contract, error) {
	ct, err := s.contracts.Get(ctx, id)
	if err != nil {
		return contract.Contract{}, err
	}
	if ct.IsSigned() {
		return contract.Contract{}, ErrValidation{Reason: "contract is already signed"}
	}
	if ct.IsTerminal() {
		return contract.Contract{}, ErrValidation{Reason: "contract is closed"}
	}

	c, err := s.clients.Get(ctx, ct.ClientID)
	if err != nil {
		return contract.Contract{}, err
	}
	if c.CustomerID == "" {
		return contract.Contract{}, ErrValidation{Reason: "client is not registered with the payment provider yet"}
	}

	subscriptionID, err := s.payments.CreateSubscription(ctx, c.CustomerID, ct.Value, ct.BillingDay, ct.Description)
	if err != nil {
		s.logger.Error().Err(err).
			Str("contract_id", ct.ID).
			Msg("failed to open subscription")
		return contract.Contract{}, err
	}

	now := s.clock.Now()
	ct.SignedAt = &now
	ct.SubscriptionID = subscriptionID
	ct.Status = contract.StatusActive
	ct.UpdatedAt = now

	if err := s.contracts.Update(ctx, ct); err != nil {
		// Compensation: close the subscription we just opened to avoid
		// charging a contract we failed to record as signed.
		s.logger.Error().Err(err).
			Str("contract_id", ct.ID).
			Str("subscription_id", subscriptionID).
			Msg("failed to persist signed contract, cancelling subscription")
		if cancelErr := s.payments.CancelSubscription(ctx, subscriptionID); cancelErr != nil {
			s.logger.Error().Err(cancelErr).
				Str("subscription_id", subscriptionID).
				Msg("failed to cancel subscription after signature rollback")
		}
		return contract.Contract{}, err
	}

	s.registerServiceOrder(ctx, &ct, c)

	s.logger.Info().
		Str("contract_id", ct.ID).
		Str("subscription_id", subscriptionID).
		Msg("contract signed")

	s.notifier.Notify(ctx, notify.EventContractSigned, map[string]interface{}{
		"contract_id": ct.ID,
		"client_id":   ct.ClientID,
		"value":       ct.Value,
	})

	return ct, nil
}

// Cancel terminates a contract: the subscription is closed at the provider
// and open billings are cancelled both remotely and locally.
func (s *ContractService) Cancel(ctx context.Context, id string) (contract.Contract, error) {
	ct, err := s.contracts.Get(ctx, id)
	if err != nil {
		return contract.Contract{}, err
	}
	if ct.IsTerminal() {
		return contract.Contract{}, ErrValidation{Reason: "contract is already closed"}
	}

	if ct.SubscriptionID != "" {
		if err := s.payments.CancelSubscription(ctx, ct.SubscriptionID); err != nil {
			s.logger.Error().Err(err).
				Str("contract_id", ct.ID).
				Str("subscription_id", ct.SubscriptionID).
				Msg("failed to cancel subscription")
			return contract.Contract{}, err
		}
	}

	now := s.clock.Now()
	s.cancelOpenBillings(ctx, ct.ID, now)

	ct.Status = contract.StatusCancelled
	ct.UpdatedAt = now
	if err := s.contracts.Update(ctx, ct); err != nil {
		return contract.Contract{}, err
	}

	s.logger.Info().
		Str("contract_id", ct.ID).
		Msg("contract cancelled")

	s.notifier.Notify(ctx, notify.EventContractCancelled, map[string]interface{}{
		"contract_id": ct.ID,
		"client_id":   ct.ClientID,
	})

	return ct, nil
}

// Get retrieves a contract plus its billing children.
func (s *ContractService) Get(ctx context.Context, id string) (contract.Contract, []billing.Billing, error) {
	ct, err := s.contracts.Get(ctx, id)
	if err != nil {
		return contract.Contract{}, nil, err
	}
	billings, err := s.billings.ListByContract(ctx, id)
	if err != nil {
		return contract.Contract{}, nil, err
	}
	return ct, billings, nil
}

// List returns contracts with pagination plus the total count.
func (s *ContractService) List(ctx context.Context, limit, offset int) ([]contract.Contract, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	contracts, err := s.contracts.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.contracts.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return contracts, total, nil
}

// ListByClient returns all contracts of a client.
func (s *ContractService) ListByClient(ctx context.Context, clientID string) ([]contract.Contract, error) {
	return s.contracts.ListByClient(ctx, clientID)
}

// registerServiceOrder pushes the signed contract to the ERP. A failure
// here never blocks the signature: the order can be registered later.
func (s *ContractService) registerServiceOrder(ctx context.Context, ct *contract.Contract, c client.Client) {
	if c.ERPCode == "" {
		s.logger.Warn().
			Str("contract_id", ct.ID).
			Msg("client has no ERP code, skipping service order")
		return
	}

	orderID, err := s.bookkeeper.CreateServiceOrder(ctx, *ct, c.ERPCode)
	if err != nil {
		s.logger.Error().Err(err).
			Str("contract_id", ct.ID).
			Msg("failed to register service order in ERP")
		return
	}

	ct.ServiceOrderID = orderID
	ct.UpdatedAt = s.clock.Now()
	if err := s.contracts.Update(ctx, *ct); err != nil {
		s.logger.Error().Err(err).
			Str("contract_id", ct.ID).
			Msg("failed to persist service order ID")
	}
}

// cancelOpenBillings cancels every open billing of a contract, remotely
// when a provider payment exists.
func (s *ContractService) cancelOpenBillings(ctx context.Context, contractID string, now time.Time) {
	billings, err := s.billings.ListByContract(ctx, contractID)
	if err != nil {
		s.logger.Error().Err(err).
			Str("contract_id", contractID).
			Msg("failed to list billings for cancellation")
		return
	}

	for _, b := range billings {
		if !b.IsOpen() {
			continue
		}
		if b.ProviderID != "" {
			if err := s.payments.CancelPayment(ctx, b.ProviderID); err != nil {
				s.logger.Error().Err(err).
					Str("billing_id", b.ID).
					Str("payment_id", b.ProviderID).
					Msg("failed to cancel provider payment")
				continue
			}
		}
		b.Status = billing.StatusCancelled
		b.CancelledAt = &now
		b.UpdatedAt = now
		if err := s.billings.Update(ctx, b); err != nil {
			s.logger.Error().Err(err).
				Str("billing_id", b.ID).
				Msg("failed to persist billing cancellation")
		}
	}
}
