// Package billing provides billing (cobrança) value types and the pure
// status-reconciliation functions that map the payment provider's status
// vocabulary onto local billing states.
package billing

import "time"

// Status represents the local state of a billing line item.
type Status string

const (
	StatusPending    Status = "pending"    // Issued, awaiting payment
	StatusConfirmed  Status = "confirmed"  // Payment confirmed, funds not yet settled
	StatusPaid       Status = "paid"       // Funds settled
	StatusOverdue    Status = "overdue"    // Past due date, unpaid
	StatusRefunded   Status = "refunded"   // Payment returned to the client
	StatusChargeback Status = "chargeback" // Disputed by the card holder
	StatusCancelled  Status = "cancelled"  // Deleted at the provider or cancelled locally
)

// Billing represents a billing line item belonging to a contract (value type).
type Billing struct {
	ID          string
	ContractID  string
	ClientID    string
	Value       int64 // cents
	Description string
	DueDate     time.Time
	Status      Status
	ProviderID  string // Asaas payment ID
	InvoiceURL  string
	BillingType string // "BOLETO", "PIX", "CREDIT_CARD"
	PaidAt      *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsSettled returns true once the billing reached a terminal paid state.
func (b Billing) IsSettled() bool {
	return b.Status == StatusPaid
}

// IsOpen returns true while the billing still awaits payment.
func (b Billing) IsOpen() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed || b.Status == StatusOverdue
}

// MapResult carries the outcome of a provider status translation.
type MapResult struct {
	Status  Status
	Known   bool // false when the provider status was not recognised
}

// MapProviderStatus translates an Asaas payment status into the local
// billing status. Unknown statuses map to pending so a misread never
// settles or cancels a billing by accident.
// This is a PURE function.
func MapProviderStatus(provider string) MapResult {
	switch provider {
	case "PENDING", "AWAITING_RISK_ANALYSIS":
		return MapResult{Status: StatusPending, Known: true}
	case "CONFIRMED":
		return MapResult{Status: StatusConfirmed, Known: true}
	case "RECEIVED", "RECEIVED_IN_CASH", "DUNNING_RECEIVED":
		return MapResult{Status: StatusPaid, Known: true}
	case "OVERDUE", "DUNNING_REQUESTED":
		return MapResult{Status: StatusOverdue, Known: true}
	case "REFUNDED", "REFUND_REQUESTED", "REFUND_IN_PROGRESS":
		return MapResult{Status: StatusRefunded, Known: true}
	case "CHARGEBACK_REQUESTED", "CHARGEBACK_DISPUTE", "AWAITING_CHARGEBACK_REVERSAL":
		return MapResult{Status: StatusChargeback, Known: true}
	default:
		return MapResult{Status: StatusPending, Known: false}
	}
}

// EventKind classifies an inbound provider webhook event.
type EventKind string

const (
	EventKindPayment      EventKind = "payment"
	EventKindSubscription EventKind = "subscription"
	EventKindUnknown      EventKind = "unknown"
)

// ClassifyEvent returns the family of a provider event name.
// This is a PURE function.
func ClassifyEvent(event string) EventKind {
	switch {
	case len(event) >= 8 && event[:8] == "PAYMENT_":
		return EventKindPayment
	case len(event) >= 13 && event[:13] == "SUBSCRIPTION_":
		return EventKindSubscription
	default:
		return EventKindUnknown
	}
}

// ApplyEvent resolves the next billing status given the current status,
// the provider event name, and the provider payment status carried in the
// event payload. Event-level transitions (deletion, restoration) take
// precedence over the payload status; a refunded billing only leaves that
// state through an explicit restore.
// This is a PURE function.
func ApplyEvent(current Status, event, providerStatus string) (Status, bool) {
	switch event {
	case "PAYMENT_DELETED":
		return StatusCancelled, true
	case "PAYMENT_RESTORED":
		res := MapProviderStatus(providerStatus)
		return res.Status, res.Known
	}

	res := MapProviderStatus(providerStatus)

	// Refunds and chargebacks are sticky: a stale or out-of-order update
	// must not move the billing back to a payable state.
	if current == StatusRefunded || current == StatusChargeback {
		if res.Status != StatusRefunded && res.Status != StatusChargeback {
			return current, res.Known
		}
	}

	return res.Status, res.Known
}
