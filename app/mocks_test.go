package app

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/billing"
	"github.com/ledgerdesk/ledgerdesk/domain/client"
	"github.com/ledgerdesk/ledgerdesk/domain/contract"
	"github.com/ledgerdesk/ledgerdesk/domain/notify"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// Mock implementations for testing

type mockClientStore struct {
	mu        sync.Mutex
	clients   []client.Client
	createErr error
	updateErr error
}

func (m *mockClientStore) Get(ctx context.Context, id string) (client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return client.Client{}, ports.ErrNotFound
}

func (m *mockClientStore) GetByDocument(ctx context.Context, document string) (client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.Document == document {
			return c, nil
		}
	}
	return client.Client{}, ports.ErrNotFound
}

func (m *mockClientStore) GetByCustomerID(ctx context.Context, customerID string) (client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.CustomerID == customerID {
			return c, nil
		}
	}
	return client.Client{}, ports.ErrNotFound
}

func (m *mockClientStore) Create(ctx context.Context, c client.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.clients {
		if existing.Document == c.Document {
			return ports.ErrDuplicate
		}
	}
	m.clients = append(m.clients, c)
	return nil
}

func (m *mockClientStore) Update(ctx context.Context, c client.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for i, existing := range m.clients {
		if existing.ID == c.ID {
			m.clients[i] = c
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *mockClientStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.clients {
		if c.ID == id {
			m.clients = append(m.clients[:i], m.clients[i+1:]...)
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *mockClientStore) List(ctx context.Context, limit, offset int) ([]client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]client.Client(nil), m.clients...), nil
}

func (m *mockClientStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients), nil
}

type mockContractStore struct {
	mu        sync.Mutex
	contracts []contract.Contract
	createErr error
	updateErr error
}

func (m *mockContractStore) Get(ctx context.Context, id string) (contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ct := range m.contracts {
		if ct.ID == id {
			return ct, nil
		}
	}
	return contract.Contract{}, ports.ErrNotFound
}

func (m *mockContractStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ct := range m.contracts {
		if ct.SubscriptionID == subscriptionID && subscriptionID != "" {
			return ct, nil
		}
	}
	return contract.Contract{}, ports.ErrNotFound
}

func (m *mockContractStore) Create(ctx context.Context, ct contract.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.contracts = append(m.contracts, ct)
	return nil
}

func (m *mockContractStore) Update(ctx context.Context, ct contract.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for i, existing := range m.contracts {
		if existing.ID == ct.ID {
			m.contracts[i] = ct
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *mockContractStore) ListByClient(ctx context.Context, clientID string) ([]contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []contract.Contract
	for _, ct := range m.contracts {
		if ct.ClientID == clientID {
			out = append(out, ct)
		}
	}
	return out, nil
}

func (m *mockContractStore) List(ctx context.Context, limit, offset int) ([]contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]contract.Contract(nil), m.contracts...), nil
}

func (m *mockContractStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.contracts), nil
}

type mockBillingStore struct {
	mu        sync.Mutex
	billings  []billing.Billing
	createErr error
	updateErr error
}

func (m *mockBillingStore) Get(ctx context.Context, id string) (billing.Billing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.billings {
		if b.ID == id {
			return b, nil
		}
	}
	return billing.Billing{}, ports.ErrNotFound
}

func (m *mockBillingStore) GetByProviderID(ctx context.Context, providerID string) (billing.Billing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.billings {
		if b.ProviderID == providerID && providerID != "" {
			return b, nil
		}
	}
	return billing.Billing{}, ports.ErrNotFound
}

func (m *mockBillingStore) Create(ctx context.Context, b billing.Billing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.billings = append(m.billings, b)
	return nil
}

func (m *mockBillingStore) Update(ctx context.Context, b billing.Billing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for i, existing := range m.billings {
		if existing.ID == b.ID {
			m.billings[i] = b
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *mockBillingStore) ListByContract(ctx context.Context, contractID string) ([]billing.Billing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []billing.Billing
	for _, b := range m.billings {
		if b.ContractID == contractID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBillingStore) List(ctx context.Context, limit, offset int) ([]billing.Billing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]billing.Billing(nil), m.billings...), nil
}

func (m *mockBillingStore) ListPendingDueBefore(ctx context.Context, before time.Time, limit int) ([]billing.Billing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []billing.Billing
	for _, b := range m.billings {
		if b.Status == billing.StatusPending && b.DueDate.Before(before) {
			out = append(out, b)
		}
	}
	return out, nil
}

type mockUserStore struct {
	mu    sync.Mutex
	users []ports.User
}

func (m *mockUserStore) Get(ctx context.Context, id string) (ports.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return ports.User{}, ports.ErrNotFound
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (ports.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return ports.User{}, ports.ErrNotFound
}

func (m *mockUserStore) Create(ctx context.Context, u ports.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ports.ErrDuplicate
		}
	}
	m.users = append(m.users, u)
	return nil
}

func (m *mockUserStore) Update(ctx context.Context, u ports.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.users {
		if existing.ID == u.ID {
			m.users[i] = u
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *mockUserStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *mockUserStore) List(ctx context.Context, limit, offset int) ([]ports.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.User(nil), m.users...), nil
}

type mockDeliveryStore struct {
	mu         sync.Mutex
	deliveries []notify.Delivery
}

func (m *mockDeliveryStore) Create(ctx context.Context, d notify.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
	return nil
}

func (m *mockDeliveryStore) Update(ctx context.Context, d notify.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.deliveries {
		if existing.ID == d.ID {
			m.deliveries[i] = d
			return nil
		}
	}
	return ports.ErrNotFound
}

func (m *mockDeliveryStore) ListRecent(ctx context.Context, limit int) ([]notify.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Delivery(nil), m.deliveries...), nil
}

func (m *mockDeliveryStore) ListRetryable(ctx context.Context, now time.Time, limit int) ([]notify.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.Delivery
	for _, d := range m.deliveries {
		if d.Status == notify.DeliveryPending && d.NextRetry != nil && !d.NextRetry.After(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDeliveryStore) get(id string) (notify.Delivery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deliveries {
		if d.ID == id {
			return d, true
		}
	}
	return notify.Delivery{}, false
}

type mockPaymentProvider struct {
	mu sync.Mutex

	customerID     string
	subscriptionID string
	paymentID      string
	invoiceURL     string
	webhookToken   string

	customerErr     error
	subscriptionErr error
	paymentErr      error
	cancelSubErr    error
	cancelPayErr    error

	createdCustomers  []string // client IDs
	createdPayments   []string // customer IDs
	cancelledSubs     []string
	cancelledPayments []string
}

func (m *mockPaymentProvider) Name() string { return "mock" }

func (m *mockPaymentProvider) CreateCustomer(ctx context.Context, c client.Client) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.customerErr != nil {
		return "", m.customerErr
	}
	m.createdCustomers = append(m.createdCustomers, c.ID)
	return m.customerID, nil
}

func (m *mockPaymentProvider) CreateSubscription(ctx context.Context, customerID string, value int64, billingDay int, description string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscriptionErr != nil {
		return "", m.subscriptionErr
	}
	return m.subscriptionID, nil
}

func (m *mockPaymentProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelSubErr != nil {
		return m.cancelSubErr
	}
	m.cancelledSubs = append(m.cancelledSubs, subscriptionID)
	return nil
}

func (m *mockPaymentProvider) CreatePayment(ctx context.Context, customerID string, value int64, dueDate time.Time, description string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paymentErr != nil {
		return "", "", m.paymentErr
	}
	m.createdPayments = append(m.createdPayments, customerID)
	return m.paymentID, m.invoiceURL, nil
}

func (m *mockPaymentProvider) CancelPayment(ctx context.Context, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelPayErr != nil {
		return m.cancelPayErr
	}
	m.cancelledPayments = append(m.cancelledPayments, paymentID)
	return nil
}

func (m *mockPaymentProvider) VerifyWebhookToken(token string) bool {
	return m.webhookToken != "" && token == m.webhookToken
}

type mockBookkeeper struct {
	mu sync.Mutex

	erpCode   string
	orderID   string
	clientErr error
	orderErr  error

	upserts []string // client IDs
	orders  []string // contract IDs
}

func (m *mockBookkeeper) UpsertClient(ctx context.Context, c client.Client) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clientErr != nil {
		return "", m.clientErr
	}
	m.upserts = append(m.upserts, c.ID)
	return m.erpCode, nil
}

func (m *mockBookkeeper) CreateServiceOrder(ctx context.Context, ct contract.Contract, clientCode string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orderErr != nil {
		return "", m.orderErr
	}
	m.orders = append(m.orders, ct.ID)
	return m.orderID, nil
}

type notifiedEvent struct {
	eventType notify.EventType
	data      map[string]interface{}
}

type mockNotifier struct {
	mu     sync.Mutex
	events []notifiedEvent
}

func (m *mockNotifier) Notify(ctx context.Context, eventType notify.EventType, data map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, notifiedEvent{eventType: eventType, data: data})
}

func (m *mockNotifier) types() []notify.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.EventType
	for _, e := range m.events {
		out = append(out, e.eventType)
	}
	return out
}

type mockCRMNotifier struct {
	mu         sync.Mutex
	status     int
	body       string
	err        error
	payloads   [][]byte
	signatures []string
	received   chan struct{}
}

func newMockCRMNotifier(status int) *mockCRMNotifier {
	return &mockCRMNotifier{status: status, received: make(chan struct{}, 16)}
}

func (m *mockCRMNotifier) Send(ctx context.Context, payload []byte, signature string) (int, string, error) {
	m.mu.Lock()
	m.payloads = append(m.payloads, payload)
	m.signatures = append(m.signatures, signature)
	status, body, err := m.status, m.body, m.err
	m.mu.Unlock()

	m.received <- struct{}{}
	return status, body, err
}

func (m *mockCRMNotifier) sends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payloads)
}

type mockPartnerClient struct {
	mu      sync.Mutex
	body    []byte
	err     error
	fetches []string
}

func (m *mockPartnerClient) Fetch(ctx context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.fetches = append(m.fetches, path)
	return m.body, nil
}

func (m *mockPartnerClient) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetches)
}

// Interface compliance for the mocks.
var (
	_ ports.ClientStore     = (*mockClientStore)(nil)
	_ ports.ContractStore   = (*mockContractStore)(nil)
	_ ports.BillingStore    = (*mockBillingStore)(nil)
	_ ports.UserStore       = (*mockUserStore)(nil)
	_ ports.DeliveryStore   = (*mockDeliveryStore)(nil)
	_ ports.PaymentProvider = (*mockPaymentProvider)(nil)
	_ ports.Bookkeeper      = (*mockBookkeeper)(nil)
	_ ports.Notifier        = (*mockNotifier)(nil)
	_ ports.CRMNotifier     = (*mockCRMNotifier)(nil)
	_ ports.PartnerClient   = (*mockPartnerClient)(nil)
)
