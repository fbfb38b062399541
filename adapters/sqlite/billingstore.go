package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/billing"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// BillingStore implements ports.BillingStore using SQLite.
type BillingStore struct {
	db *DB
}

// NewBillingStore creates a new SQLite billing store.
func NewBillingStore(db *DB) *BillingStore {
	return &BillingStore{db: db}
}

const billingColumns = `id, contract_id, client_id, value, description, due_date,
	status, provider_id, invoice_url, billing_type, paid_at, cancelled_at,
	created_at, updated_at`

// Get retrieves a billing by ID.
func (s *BillingStore) Get(ctx context.Context, id string) (billing.Billing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+billingColumns+` FROM billings WHERE id = ?`, id)
	return scanBillingFrom(row)
}

// GetByProviderID retrieves a billing by its provider payment ID.
func (s *BillingStore) GetByProviderID(ctx context.Context, providerID string) (billing.Billing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+billingColumns+` FROM billings WHERE provider_id = ?`, providerID)
	return scanBillingFrom(row)
}

// Create stores a new billing.
func (s *BillingStore) Create(ctx context.Context, b billing.Billing) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO billings (id, contract_id, client_id, value, description, due_date,
			status, provider_id, invoice_url, billing_type, paid_at, cancelled_at,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.ContractID, b.ClientID, b.Value, nullString(b.Description), b.DueDate,
		string(b.Status), nullString(b.ProviderID), nullString(b.InvoiceURL),
		nullString(b.BillingType), nullTime(b.PaidAt), nullTime(b.CancelledAt),
		b.CreatedAt, b.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Update modifies an existing billing.
func (s *BillingStore) Update(ctx context.Context, b billing.Billing) error {
	b.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE billings
		SET contract_id = ?, client_id = ?, value = ?, description = ?, due_date = ?,
		    status = ?, provider_id = ?, invoice_url = ?, billing_type = ?,
		    paid_at = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ?
	`, b.ContractID, b.ClientID, b.Value, nullString(b.Description), b.DueDate,
		string(b.Status), nullString(b.ProviderID), nullString(b.InvoiceURL),
		nullString(b.BillingType), nullTime(b.PaidAt), nullTime(b.CancelledAt),
		b.UpdatedAt, b.ID)
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

// ListByContract returns all billings belonging to a contract.
func (s *BillingStore) ListByContract(ctx context.Context, contractID string) ([]billing.Billing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+billingColumns+` FROM billings WHERE contract_id = ? ORDER BY due_date ASC`,
		contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBillings(rows)
}

// List returns billings with pagination, most recent due date first.
func (s *BillingStore) List(ctx context.Context, limit, offset int) ([]billing.Billing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+billingColumns+` FROM billings ORDER BY due_date DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBillings(rows)
}

// ListPendingDueBefore returns pending billings whose due date has passed,
// oldest first. Used by the overdue sweep.
func (s *BillingStore) ListPendingDueBefore(ctx context.Context, before time.Time, limit int) ([]billing.Billing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+billingColumns+` FROM billings
		 WHERE status = ? AND due_date < ?
		 ORDER BY due_date ASC LIMIT ?`,
		string(billing.StatusPending), before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBillings(rows)
}

func collectBillings(rows *sql.Rows) ([]billing.Billing, error) {
	var billings []billing.Billing
	for rows.Next() {
		b, err := scanBillingFrom(rows)
		if err != nil {
			return nil, err
		}
		billings = append(billings, b)
	}
	return billings, rows.Err()
}

func scanBillingFrom(r rowScanner) (billing.Billing, error) {
	var b billing.Billing
	var description, providerID, invoiceURL, billingType sql.NullString
	var paidAt, cancelledAt sql.NullTime
	var status string

	err := r.Scan(&b.ID, &b.ContractID, &b.ClientID, &b.Value, &description, &b.DueDate,
		&status, &providerID, &invoiceURL, &billingType, &paidAt, &cancelledAt,
		&b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.Billing{}, ErrNotFound
	}
	if err != nil {
		return billing.Billing{}, err
	}

	b.Description = description.String
	b.ProviderID = providerID.String
	b.InvoiceURL = invoiceURL.String
	b.BillingType = billingType.String
	b.Status = billing.Status(status)
	if paidAt.Valid {
		b.PaidAt = &paidAt.Time
	}
	if cancelledAt.Valid {
		b.CancelledAt = &cancelledAt.Time
	}
	return b, nil
}

// Ensure interface compliance.
var _ ports.BillingStore = (*BillingStore)(nil)
