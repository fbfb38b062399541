// Package app contains application services. Services orchestrate stores
// and external adapters; business decisions live in domain as pure functions.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/billing"
	"github.com/ledgerdesk/ledgerdesk/domain/contract"
	"github.com/ledgerdesk/ledgerdesk/domain/notify"
	"github.com/ledgerdesk/ledgerdesk/ports"
	"github.com/rs/zerolog"
)

// ErrUnmatchedPayment is returned when a payment event references a
// subscription or customer this system does not track.
var ErrUnmatchedPayment = errors.New("payment event does not match any contract")

// PaymentEvent carries the fields extracted from a provider payment webhook.
type PaymentEvent struct {
	Event          string
	ProviderID     string // provider payment ID
	CustomerID     string // provider customer ID
	SubscriptionID string // provider subscription ID, if recurring
	Status         string // provider payment status
	Value          int64  // cents
	DueDate        time.Time
	PaymentDate    *time.Time
	InvoiceURL     string
	BillingType    string
	Description    string
}

// ReconcileService applies provider webhook events to local billings and
// recomputes contract status from the billing children.
type ReconcileService struct {
	clients   ports.ClientStore
	contracts ports.ContractStore
	billings  ports.BillingStore
	notifier  ports.Notifier
	clock     ports.Clock
	idGen     ports.IDGenerator
	logger    zerolog.Logger

	onTransition func(entity, status string)
}

// NewReconcileService creates a new reconcile service.
func NewReconcileService(
	clients ports.ClientStore,
	contracts ports.ContractStore,
	billings ports.BillingStore,
	notifier ports.Notifier,
	clock ports.Clock,
	idGen ports.IDGenerator,
	logger zerolog.Logger,
) *ReconcileService {
	return &ReconcileService{
		clients:   clients,
		contracts: contracts,
		billings:  billings,
		notifier:  notifier,
		clock:     clock,
		idGen:     idGen,
		logger:    logger,
	}
}

// SetTransitionHook registers a callback invoked on every billing or
// contract status transition the reconciler applies. Used for metrics.
func (s *ReconcileService) SetTransitionHook(fn func(entity, status string)) {
	s.onTransition = fn
}

func (s *ReconcileService) recordTransition(entity, status string) {
	if s.onTransition != nil {
		s.onTransition(entity, status)
	}
}

// HandlePaymentEvent processes one payment-family webhook event. Unknown
// payments belonging to a tracked subscription are registered on first
// sight; known payments have their status reconciled. The owning contract
// is recomputed afterwards.
func (s *ReconcileService) HandlePaymentEvent(ctx context.Context, evt PaymentEvent) error {
	s.logger.Info().
		Str("event", evt.Event).
		Str("payment_id", evt.ProviderID).
		Str("provider_status", evt.Status).
		Msg("handling payment webhook")

	b, err := s.billings.GetByProviderID(ctx, evt.ProviderID)
	switch {
	case err == nil:
		if err := s.reconcileExisting(ctx, b, evt); err != nil {
			return err
		}
		return s.recomputeContract(ctx, b.ContractID)
	case isNotFound(err):
		created, err := s.registerBilling(ctx, evt)
		if err != nil {
			return err
		}
		return s.recomputeContract(ctx, created.ContractID)
	default:
		return err
	}
}

// HandleSubscriptionEvent processes one subscription-family webhook event.
func (s *ReconcileService) HandleSubscriptionEvent(ctx context.Context, event, subscriptionID, providerStatus string) error {
	s.logger.Info().
		Str("event", event).
		Str("subscription_id", subscriptionID).
		Str("provider_status", providerStatus).
		Msg("handling subscription webhook")

	ct, err := s.contracts.GetBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn().
				Str("subscription_id", subscriptionID).
				Msg("subscription event does not match any contract")
			return ErrUnmatchedPayment
		}
		return err
	}

	if event == "SUBSCRIPTION_DELETED" {
		// A redelivered delete on an already-terminal contract must not
		// re-persist or emit another CRM event.
		if ct.IsTerminal() {
			return nil
		}
		return s.transitionContract(ctx, ct, contract.StatusCancelled)
	}

	next, changed := contract.ApplySubscriptionStatus(ct, providerStatus)
	if !changed {
		return nil
	}
	return s.transitionContract(ctx, ct, next)
}

// RecomputeContract re-derives one contract's status from its billings.
// Used by the overdue sweep and exposed for manual reconciliation.
func (s *ReconcileService) RecomputeContract(ctx context.Context, contractID string) error {
	return s.recomputeContract(ctx, contractID)
}

// MarkOverdue flags pending billings whose due date has passed as overdue
// and recomputes the owning contracts. Returns how many billings changed.
// Webhooks normally deliver PAYMENT_OVERDUE first; this sweep covers missed
// or delayed deliveries.
func (s *ReconcileService) MarkOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	cutoff := now.Truncate(24 * time.Hour)

	candidates, err := s.billings.ListPendingDueBefore(ctx, cutoff, 200)
	if err != nil {
		return 0, err
	}

	changed := 0
	contracts := make(map[string]struct{})
	for _, b := range candidates {
		b.Status = billing.StatusOverdue
		if err := s.billings.Update(ctx, b); err != nil {
			s.logger.Error().Err(err).
				Str("billing_id", b.ID).
				Msg("failed to mark billing overdue")
			continue
		}
		changed++
		contracts[b.ContractID] = struct{}{}
		s.recordTransition("billing", string(b.Status))
		s.notifyBilling(ctx, b)
	}

	for contractID := range contracts {
		if err := s.recomputeContract(ctx, contractID); err != nil {
			s.logger.Error().Err(err).
				Str("contract_id", contractID).
				Msg("failed to recompute contract after overdue sweep")
		}
	}
	return changed, nil
}

func (s *ReconcileService) reconcileExisting(ctx context.Context, b billing.Billing, evt PaymentEvent) error {
	next, known := billing.ApplyEvent(b.Status, evt.Event, evt.Status)
	if !known {
		s.logger.Warn().
			Str("payment_id", evt.ProviderID).
			Str("provider_status", evt.Status).
			Msg("unknown provider status, billing left unchanged")
		return nil
	}
	if next == b.Status {
		return nil
	}

	prev := b.Status
	now := s.clock.Now()
	b.Status = next
	switch next {
	case billing.StatusPaid:
		if evt.PaymentDate != nil {
			b.PaidAt = evt.PaymentDate
		} else {
			b.PaidAt = &now
		}
	case billing.StatusCancelled:
		b.CancelledAt = &now
	}
	if evt.InvoiceURL != "" {
		b.InvoiceURL = evt.InvoiceURL
	}

	if err := s.billings.Update(ctx, b); err != nil {
		s.logger.Error().Err(err).
			Str("billing_id", b.ID).
			Msg("failed to update billing")
		return err
	}

	s.logger.Info().
		Str("billing_id", b.ID).
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("billing status reconciled")

	s.recordTransition("billing", string(b.Status))
	s.notifyBilling(ctx, b)
	return nil
}

func (s *ReconcileService) registerBilling(ctx context.Context, evt PaymentEvent) (billing.Billing, error) {
	ct, err := s.matchContract(ctx, evt)
	if err != nil {
		return billing.Billing{}, err
	}

	res := billing.MapProviderStatus(evt.Status)
	if !res.Known {
		s.logger.Warn().
			Str("payment_id", evt.ProviderID).
			Str("provider_status", evt.Status).
			Msg("unknown provider status on new payment, registering as pending")
	}

	now := s.clock.Now()
	b := billing.Billing{
		ID:          s.idGen.New(),
		ContractID:  ct.ID,
		ClientID:    ct.ClientID,
		Value:       evt.Value,
		Description: evt.Description,
		DueDate:     evt.DueDate,
		Status:      res.Status,
		ProviderID:  evt.ProviderID,
		InvoiceURL:  evt.InvoiceURL,
		BillingType: evt.BillingType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if res.Status == billing.StatusPaid {
		if evt.PaymentDate != nil {
			b.PaidAt = evt.PaymentDate
		} else {
			b.PaidAt = &now
		}
	}

	if err := s.billings.Create(ctx, b); err != nil {
		s.logger.Error().Err(err).
			Str("payment_id", evt.ProviderID).
			Msg("failed to register billing")
		return billing.Billing{}, err
	}

	s.logger.Info().
		Str("billing_id", b.ID).
		Str("contract_id", ct.ID).
		Str("status", string(b.Status)).
		Msg("billing registered from webhook")

	s.recordTransition("billing", string(b.Status))
	s.notifyBilling(ctx, b)
	return b, nil
}

// matchContract resolves the contract a payment event belongs to, first by
// subscription ID, then by the customer's single open contract.
func (s *ReconcileService) matchContract(ctx context.Context, evt PaymentEvent) (contract.Contract, error) {
	if evt.SubscriptionID != "" {
		ct, err := s.contracts.GetBySubscriptionID(ctx, evt.SubscriptionID)
		if err == nil {
			return ct, nil
		}
		if !isNotFound(err) {
			return contract.Contract{}, err
		}
	}

	if evt.CustomerID != "" {
		c, err := s.clients.GetByCustomerID(ctx, evt.CustomerID)
		if err != nil {
			if isNotFound(err) {
				s.logger.Warn().
					Str("payment_id", evt.ProviderID).
					Str("customer_id", evt.CustomerID).
					Msg("payment event for untracked customer")
				return contract.Contract{}, ErrUnmatchedPayment
			}
			return contract.Contract{}, err
		}

		contracts, err := s.contracts.ListByClient(ctx, c.ID)
		if err != nil {
			return contract.Contract{}, err
		}
		for _, ct := range contracts {
			if !ct.IsTerminal() {
				return ct, nil
			}
		}
	}

	s.logger.Warn().
		Str("payment_id", evt.ProviderID).
		Str("subscription_id", evt.SubscriptionID).
		Msg("payment event does not match any contract")
	return contract.Contract{}, ErrUnmatchedPayment
}

func (s *ReconcileService) recomputeContract(ctx context.Context, contractID string) error {
	ct, err := s.contracts.Get(ctx, contractID)
	if err != nil {
		return err
	}

	billings, err := s.billings.ListByContract(ctx, contractID)
	if err != nil {
		return err
	}

	next := contract.DeriveStatus(ct, billings, s.clock.Now())
	if next == ct.Status {
		return nil
	}
	return s.transitionContract(ctx, ct, next)
}

func (s *ReconcileService) transitionContract(ctx context.Context, ct contract.Contract, next contract.Status) error {
	prev := ct.Status
	ct.Status = next

	if err := s.contracts.Update(ctx, ct); err != nil {
		s.logger.Error().Err(err).
			Str("contract_id", ct.ID).
			Msg("failed to update contract status")
		return err
	}

	s.logger.Info().
		Str("contract_id", ct.ID).
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("contract status changed")

	s.recordTransition("contract", string(next))

	if event, ok := contractEvent(prev, next); ok {
		s.notifier.Notify(ctx, event, map[string]interface{}{
			"contract_id": ct.ID,
			"client_id":   ct.ClientID,
			"from":        string(prev),
			"to":          string(next),
		})
	}
	return nil
}

func (s *ReconcileService) notifyBilling(ctx context.Context, b billing.Billing) {
	event, ok := billingEvent(b.Status)
	if !ok {
		return
	}
	s.notifier.Notify(ctx, event, map[string]interface{}{
		"billing_id":  b.ID,
		"contract_id": b.ContractID,
		"client_id":   b.ClientID,
		"value":       b.Value,
		"status":      string(b.Status),
	})
}

// billingEvent maps a billing status to the CRM event it announces.
func billingEvent(st billing.Status) (notify.EventType, bool) {
	switch st {
	case billing.StatusConfirmed:
		return notify.EventPaymentConfirmed, true
	case billing.StatusPaid:
		return notify.EventPaymentReceived, true
	case billing.StatusOverdue:
		return notify.EventPaymentOverdue, true
	case billing.StatusRefunded:
		return notify.EventPaymentRefunded, true
	case billing.StatusChargeback:
		return notify.EventPaymentChargeback, true
	default:
		return "", false
	}
}

// contractEvent maps a contract transition to the CRM event it announces.
func contractEvent(from, to contract.Status) (notify.EventType, bool) {
	switch to {
	case contract.StatusDelinquent:
		return notify.EventContractDelinquent, true
	case contract.StatusSuspended:
		return notify.EventContractSuspended, true
	case contract.StatusCompleted:
		return notify.EventContractCompleted, true
	case contract.StatusCancelled:
		return notify.EventContractCancelled, true
	case contract.StatusActive:
		if from == contract.StatusSuspended || from == contract.StatusDelinquent {
			return notify.EventContractReactivated, true
		}
	}
	return "", false
}
