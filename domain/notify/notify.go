// Package notify provides value types and pure functions for outbound CRM
// notifications. Every state change the CRM cares about is expressed as an
// Event and delivered as a signed HTTP callback.
// All types are immutable values; all functions are pure.
package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// EventType names a CRM-visible state change.
type EventType string

const (
	EventClientCreated       EventType = "client.created"
	EventClientUpdated       EventType = "client.updated"
	EventContractSigned      EventType = "contract.signed"
	EventContractDelinquent  EventType = "contract.delinquent"
	EventContractSuspended   EventType = "contract.suspended"
	EventContractReactivated EventType = "contract.reactivated"
	EventContractCompleted   EventType = "contract.completed"
	EventContractCancelled   EventType = "contract.cancelled"
	EventPaymentConfirmed    EventType = "payment.confirmed"
	EventPaymentReceived     EventType = "payment.received"
	EventPaymentOverdue      EventType = "payment.overdue"
	EventPaymentRefunded     EventType = "payment.refunded"
	EventPaymentChargeback   EventType = "payment.chargeback"
)

// DeliveryStatus represents the status of a notification delivery.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Event represents a notification to be dispatched (value type).
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Data      map[string]interface{}
}

// Payload is the JSON body posted to the CRM endpoint.
type Payload struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Delivery records one delivery attempt for audit and retry (value type).
type Delivery struct {
	ID           string
	EventID      string
	EventType    EventType
	Payload      string // JSON payload as sent
	Status       DeliveryStatus
	Attempt      int
	MaxAttempts  int
	StatusCode   int
	ResponseBody string // truncated
	Error        string
	DurationMS   int
	NextRetry    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BuildPayload creates the wire payload for an event.
// This is a PURE function.
func BuildPayload(event Event) Payload {
	return Payload{
		ID:        event.ID,
		Type:      string(event.Type),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Data:      event.Data,
	}
}

// SerializePayload serializes a payload to JSON bytes.
// This is a PURE function.
func SerializePayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

// Sign signs a payload with the shared secret using HMAC-SHA256.
// This is a PURE function.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies that a signature matches the payload.
// This is a PURE function.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ShouldRetry determines whether a delivery attempt merits a retry.
// This is a PURE function.
func ShouldRetry(statusCode int) bool {
	if statusCode >= 500 {
		return true
	}
	return statusCode == 408 || statusCode == 429
}

// NextRetry calculates the next retry time using a capped backoff.
// This is a PURE function.
func NextRetry(attempt int, now time.Time) time.Time {
	delays := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		30 * time.Minute,
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(delays) {
		idx = len(delays) - 1
	}
	return now.Add(delays[idx])
}

// NewDelivery creates the initial delivery record for an event.
// This is a PURE function.
func NewDelivery(id string, event Event, payload string, maxAttempts int, now time.Time) Delivery {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return Delivery{
		ID:          id,
		EventID:     event.ID,
		EventType:   event.Type,
		Payload:     payload,
		Status:      DeliveryPending,
		Attempt:     1,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
