package app

import (
	"context"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/billing"
	"github.com/ledgerdesk/ledgerdesk/ports"
	"github.com/rs/zerolog"
)

// BillingService manages one-off billings: charges issued outside the
// recurring subscription schedule.
type BillingService struct {
	clients   ports.ClientStore
	contracts ports.ContractStore
	billings  ports.BillingStore
	payments  ports.PaymentProvider
	clock     ports.Clock
	idGen     ports.IDGenerator
	logger    zerolog.Logger
}

// NewBillingService creates a new billing service.
func NewBillingService(
	clients ports.ClientStore,
	contracts ports.ContractStore,
	billings ports.BillingStore,
	payments ports.PaymentProvider,
	clock ports.Clock,
	idGen ports.IDGenerator,
	logger zerolog.Logger,
) *BillingService {
	return &BillingService{
		clients:   clients,
		contracts: contracts,
		billings:  billings,
		payments:  payments,
		clock:     clock,
		idGen:     idGen,
		logger:    logger,
	}
}

// CreateBillingInput carries the fields for issuing a one-off charge.
type CreateBillingInput struct {
	ContractID  string
	Value       int64 // cents
	Description string
	DueDate     time.Time
}

// Create issues a one-off charge against a contract's client at the
// payment provider and records the billing locally.
func (s *BillingService) Create(ctx context.Context, in CreateBillingInput) (billing.Billing, error) {
	if in.Value <= 0 {
		return billing.Billing{}, ErrValidation{Reason: "value must be positive"}
	}
	if in.DueDate.Before(s.clock.Now().Truncate(24 * time.Hour)) {
		return billing.Billing{}, ErrValidation{Reason: "due date must not be in the past"}
	}

	ct, err := s.contracts.Get(ctx, in.ContractID)
	if err != nil {
		if isNotFound(err) {
			return billing.Billing{}, ErrValidation{Reason: "contract not found"}
		}
		return billing.Billing{}, err
	}
	if ct.IsTerminal() {
		return billing.Billing{}, ErrValidation{Reason: "contract is closed"}
	}

	c, err := s.clients.Get(ctx, ct.ClientID)
	if err != nil {
		return billing.Billing{}, err
	}
	if c.CustomerID == "" {
		return billing.Billing{}, ErrValidation{Reason: "client is not registered with the payment provider yet"}
	}

	paymentID, invoiceURL, err := s.payments.CreatePayment(ctx, c.CustomerID, in.Value, in.DueDate, in.Description)
	if err != nil {
		s.logger.Error().Err(err).
			Str("contract_id", ct.ID).
			Msg("failed to create provider payment")
		return billing.Billing{}, err
	}

	now := s.clock.Now()
	b := billing.Billing{
		ID:          s.idGen.New(),
		ContractID:  ct.ID,
		ClientID:    ct.ClientID,
		Value:       in.Value,
		Description: in.Description,
		DueDate:     in.DueDate,
		Status:      billing.StatusPending,
		ProviderID:  paymentID,
		InvoiceURL:  invoiceURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.billings.Create(ctx, b); err != nil {
		// Compensation: the provider charge exists but we failed to record
		// it. Cancel it rather than letting the client be billed invisibly.
		s.logger.Error().Err(err).
			Str("payment_id", paymentID).
			Msg("failed to record billing, cancelling provider payment")
		if cancelErr := s.payments.CancelPayment(ctx, paymentID); cancelErr != nil {
			s.logger.Error().Err(cancelErr).
				Str("payment_id", paymentID).
				Msg("failed to cancel provider payment after record failure")
		}
		return billing.Billing{}, err
	}

	s.logger.Info().
		Str("billing_id", b.ID).
		Str("contract_id", ct.ID).
		Int64("value", b.Value).
		Msg("one-off billing issued")

	return b, nil
}

// Cancel cancels an open billing, remotely first when a provider payment
// exists.
func (s *BillingService) Cancel(ctx context.Context, id string) (billing.Billing, error) {
	b, err := s.billings.Get(ctx, id)
	if err != nil {
		return billing.Billing{}, err
	}
	if !b.IsOpen() {
		return billing.Billing{}, ErrValidation{Reason: "billing is not open"}
	}

	if b.ProviderID != "" {
		if err := s.payments.CancelPayment(ctx, b.ProviderID); err != nil {
			s.logger.Error().Err(err).
				Str("billing_id", b.ID).
				Str("payment_id", b.ProviderID).
				Msg("failed to cancel provider payment")
			return billing.Billing{}, err
		}
	}

	now := s.clock.Now()
	b.Status = billing.StatusCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now

	if err := s.billings.Update(ctx, b); err != nil {
		return billing.Billing{}, err
	}

	s.logger.Info().
		Str("billing_id", b.ID).
		Msg("billing cancelled")

	return b, nil
}

// Get retrieves a billing by ID.
func (s *BillingService) Get(ctx context.Context, id string) (billing.Billing, error) {
	return s.billings.Get(ctx, id)
}

// List returns billings with pagination.
func (s *BillingService) List(ctx context.Context, limit, offset int) ([]billing.Billing, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.billings.List(ctx, limit, offset)
}

// ListByContract returns all billings of a contract.
func (s *BillingService) ListByContract(ctx context.Context, contractID string) ([]billing.Billing, error) {
	return s.billings.ListByContract(ctx, contractID)
}
