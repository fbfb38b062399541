// Package contract provides contract value types and the pure derivation
// of contract status from its billing line items.
package contract

import (
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/billing"
)

// Status represents the local state of a contract.
type Status string

const (
	StatusDraft      Status = "draft"      // Created, not yet signed
	StatusActive     Status = "active"     // Signed, billings up to date
	StatusDelinquent Status = "delinquent" // Has at least one overdue billing
	StatusSuspended  Status = "suspended"  // Chargeback in dispute or provider inactivation
	StatusCompleted  Status = "completed"  // Ended with all billings settled
	StatusCancelled  Status = "cancelled"  // Terminated before completion
)

// Contract represents a service contract with a client (value type).
type Contract struct {
	ID             string
	ClientID       string
	Description    string
	Value          int64 // cents, per billing cycle
	BillingDay     int   // day of month billings fall due
	StartDate      time.Time
	EndDate        *time.Time
	SignedAt       *time.Time
	Status         Status
	SubscriptionID string // Asaas subscription ID
	ServiceOrderID string // Omie service order ID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsSigned returns true once the contract has been signed.
func (c Contract) IsSigned() bool {
	return c.SignedAt != nil
}

// IsTerminal returns true for states that never transition again via
// billing recomputation.
func (c Contract) IsTerminal() bool {
	return c.Status == StatusCancelled || c.Status == StatusCompleted
}

// DeriveStatus recomputes a contract's status from the statuses of its
// billing children. Dominant states win over the recompute:
// a chargeback suspends the contract outright, and any overdue billing
// marks it delinquent regardless of how many others are settled.
// Terminal states (cancelled) are never overridden.
// This is a PURE function.
func DeriveStatus(c Contract, billings []billing.Billing, now time.Time) Status {
	if c.Status == StatusCancelled {
		return StatusCancelled
	}

	var open, settled int
	for _, b := range billings {
		switch b.Status {
		case billing.StatusChargeback:
			return StatusSuspended
		case billing.StatusOverdue:
			// Keep scanning: a later chargeback still dominates.
			open++
		case billing.StatusPending, billing.StatusConfirmed:
			open++
		case billing.StatusPaid:
			settled++
		}
	}

	for _, b := range billings {
		if b.Status == billing.StatusOverdue {
			return StatusDelinquent
		}
	}

	if !c.IsSigned() {
		return StatusDraft
	}

	// Signed, nothing overdue. If the contract has ended and every billing
	// reached a terminal state, it is complete.
	if c.EndDate != nil && !c.EndDate.After(now) && open == 0 && settled > 0 {
		return StatusCompleted
	}

	return StatusActive
}

// ApplySubscriptionStatus maps an Asaas subscription status onto the
// contract, used when subscription-level events arrive. Returns the new
// status and whether a change should be applied.
// This is a PURE function.
func ApplySubscriptionStatus(c Contract, providerStatus string) (Status, bool) {
	if c.IsTerminal() {
		return c.Status, false
	}
	switch providerStatus {
	case "ACTIVE":
		if c.Status == StatusSuspended {
			return StatusActive, true
		}
		return c.Status, false
	case "INACTIVE":
		return StatusSuspended, c.Status != StatusSuspended
	case "EXPIRED":
		return StatusCompleted, true
	default:
		return c.Status, false
	}
}
