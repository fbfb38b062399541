// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/billing"
	"github.com/ledgerdesk/ledgerdesk/domain/client"
	"github.com/ledgerdesk/ledgerdesk/domain/contract"
	"github.com/ledgerdesk/ledgerdesk/domain/notify"
	"github.com/ledgerdesk/ledgerdesk/domain/permission"
)

// Sentinel errors shared by all store implementations.
var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("already exists")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher provides password hashing.
type Hasher interface {
	// Hash generates a hash from a plaintext value.
	Hash(plaintext string) ([]byte, error)

	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ClientStore persists clients.
type ClientStore interface {
	Get(ctx context.Context, id string) (client.Client, error)
	GetByDocument(ctx context.Context, document string) (client.Client, error)
	GetByCustomerID(ctx context.Context, customerID string) (client.Client, error)
	Create(ctx context.Context, c client.Client) error
	Update(ctx context.Context, c client.Client) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]client.Client, error)
	Count(ctx context.Context) (int, error)
}

// ContractStore persists contracts.
type ContractStore interface {
	Get(ctx context.Context, id string) (contract.Contract, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (contract.Contract, error)
	Create(ctx context.Context, c contract.Contract) error
	Update(ctx context.Context, c contract.Contract) error
	ListByClient(ctx context.Context, clientID string) ([]contract.Contract, error)
	List(ctx context.Context, limit, offset int) ([]contract.Contract, error)
	Count(ctx context.Context) (int, error)
}

// BillingStore persists billing line items.
type BillingStore interface {
	Get(ctx context.Context, id string) (billing.Billing, error)
	GetByProviderID(ctx context.Context, providerID string) (billing.Billing, error)
	Create(ctx context.Context, b billing.Billing) error
	Update(ctx context.Context, b billing.Billing) error
	ListByContract(ctx context.Context, contractID string) ([]billing.Billing, error)
	List(ctx context.Context, limit, offset int) ([]billing.Billing, error)
	ListPendingDueBefore(ctx context.Context, before time.Time, limit int) ([]billing.Billing, error)
}

// User represents a back-office user account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	Permissions  []permission.Permission
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStore persists user accounts.
type UserStore interface {
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]User, error)
}

// DeliveryStore persists CRM notification deliveries.
type DeliveryStore interface {
	Create(ctx context.Context, d notify.Delivery) error
	Update(ctx context.Context, d notify.Delivery) error
	ListRecent(ctx context.Context, limit int) ([]notify.Delivery, error)
	ListRetryable(ctx context.Context, now time.Time, limit int) ([]notify.Delivery, error)
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// PaymentProvider interfaces with the payments/subscriptions platform (Asaas).
type PaymentProvider interface {
	// Name returns the provider name.
	Name() string

	// CreateCustomer registers a client and returns the provider customer ID.
	CreateCustomer(ctx context.Context, c client.Client) (string, error)

	// CreateSubscription opens a recurring billing schedule for a contract.
	// Returns the provider subscription ID.
	CreateSubscription(ctx context.Context, customerID string, value int64, billingDay int, description string) (string, error)

	// CancelSubscription stops a recurring billing schedule.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// CreatePayment issues a one-off charge. Returns the provider payment ID
	// and the invoice URL.
	CreatePayment(ctx context.Context, customerID string, value int64, dueDate time.Time, description string) (paymentID, invoiceURL string, err error)

	// CancelPayment cancels a pending charge.
	CancelPayment(ctx context.Context, paymentID string) error

	// VerifyWebhookToken checks the access token presented on inbound webhooks.
	VerifyWebhookToken(token string) bool
}

// Bookkeeper interfaces with the ERP bookkeeping platform (Omie).
type Bookkeeper interface {
	// UpsertClient pushes a client record and returns the ERP client code.
	UpsertClient(ctx context.Context, c client.Client) (string, error)

	// CreateServiceOrder registers a contract as a service order.
	// Returns the ERP order ID.
	CreateServiceOrder(ctx context.Context, ct contract.Contract, clientCode string) (string, error)
}

// PartnerClient interfaces with the guarded commercial partner API (BomControle).
type PartnerClient interface {
	// Fetch performs a partner call for the given resource path and
	// returns the raw JSON response.
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// CRMNotifier delivers signed notifications to the CRM endpoint (Clint).
type CRMNotifier interface {
	// Send delivers one notification payload. Returns the HTTP status code
	// and the (truncated) response body.
	Send(ctx context.Context, payload []byte, signature string) (int, string, error)
}

// Notifier is the application-facing event dispatch port.
type Notifier interface {
	// Notify queues an event for delivery. Non-blocking.
	Notify(ctx context.Context, eventType notify.EventType, data map[string]interface{})
}

// -----------------------------------------------------------------------------
// Partner Cache Ports
// -----------------------------------------------------------------------------

// CacheStats is a snapshot of partner cache counters. Throttled counts
// budget refusals and is filled in by the service, not the cache.
type CacheStats struct {
	Entries   int
	Hits      int64
	Misses    int64
	Evictions int64
	Throttled int64
}

// PartnerCache caches partner API responses.
type PartnerCache interface {
	// Get returns the cached body for a key, if present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a response body under a key with a TTL.
	Set(ctx context.Context, key string, body []byte, ttl time.Duration) error

	// Sweep removes expired entries and returns how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// Clear empties the cache.
	Clear(ctx context.Context) error

	// Stats returns current counters.
	Stats(ctx context.Context) (CacheStats, error)
}
