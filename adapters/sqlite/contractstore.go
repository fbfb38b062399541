package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/contract"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// ContractStore implements ports.ContractStore using SQLite.
type ContractStore struct {
	db *DB
}

// NewContractStore creates a new SQLite contract store.
func NewContractStore(db *DB) *ContractStore {
	return &ContractStore{db: db}
}

const contractColumns = `id, client_id, description, value, billing_day,
	start_date, end_date, signed_at, status, subscription_id, service_order_id,
	created_at, updated_at`

// Get retrieves a contract by ID.
func (s *ContractStore) Get(ctx context.Context, id string) (contract.Contract, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id)
	return scanContractFrom(row)
}

// GetBySubscriptionID retrieves a contract by its provider subscription ID.
func (s *ContractStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (contract.Contract, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE subscription_id = ?`, subscriptionID)
	return scanContractFrom(row)
}

// Create stores a new contract.
func (s *ContractStore) Create(ctx context.Context, c contract.Contract) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contracts (id, client_id, description, value, billing_day,
			start_date, end_date, signed_at, status, subscription_id, service_order_id,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ClientID, nullString(c.Description), c.Value, c.BillingDay,
		c.StartDate, nullTime(c.EndDate), nullTime(c.SignedAt), string(c.Status),
		nullString(c.SubscriptionID), nullString(c.ServiceOrderID), c.CreatedAt, c.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Update modifies an existing contract.
func (s *ContractStore) Update(ctx context.Context, c contract.Contract) error {
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE contracts
		SET client_id = ?, description = ?, value = ?, billing_day = ?,
		    start_date = ?, end_date = ?, signed_at = ?, status = ?,
		    subscription_id = ?, service_order_id = ?, updated_at = ?
		WHERE id = ?
	`, c.ClientID, nullString(c.Description), c.Value, c.BillingDay,
		c.StartDate, nullTime(c.EndDate), nullTime(c.SignedAt), string(c.Status),
		nullString(c.SubscriptionID), nullString(c.ServiceOrderID), c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByClient returns all contracts for a client.
func (s *ContractStore) ListByClient(ctx context.Context, clientID string) ([]contract.Contract, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE client_id = ? ORDER BY created_at DESC`,
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContracts(rows)
}

// List returns contracts with pagination.
func (s *ContractStore) List(ctx context.Context, limit, offset int) ([]contract.Contract, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contractColumns+` FROM contracts ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContracts(rows)
}

// Count returns total contract count.
func (s *ContractStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts`).Scan(&n)
	return n, err
}

func collectContracts(rows *sql.Rows) ([]contract.Contract, error) {
	var contracts []contract.Contract
	for rows.Next() {
		c, err := scanContractFrom(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

func scanContractFrom(r rowScanner) (contract.Contract, error) {
	var c contract.Contract
	var description, subscriptionID, serviceOrderID sql.NullString
	var endDate, signedAt sql.NullTime
	var status string

	err := r.Scan(&c.ID, &c.ClientID, &description, &c.Value, &c.BillingDay,
		&c.StartDate, &endDate, &signedAt, &status, &subscriptionID, &serviceOrderID,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return contract.Contract{}, ErrNotFound
	}
	if err != nil {
		return contract.Contract{}, err
	}

	c.Description = description.String
	c.SubscriptionID = subscriptionID.String
	c.ServiceOrderID = serviceOrderID.String
	c.Status = contract.Status(status)
	if endDate.Valid {
		c.EndDate = &endDate.Time
	}
	if signedAt.Valid {
		c.SignedAt = &signedAt.Time
	}
	return c, nil
}

// Ensure interface compliance.
var _ ports.ContractStore = (*ContractStore)(nil)
