package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/client"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// ClientStore implements ports.ClientStore using SQLite.
type ClientStore struct {
	db *DB
}

// NewClientStore creates a new SQLite client store.
func NewClientStore(db *DB) *ClientStore {
	return &ClientStore{db: db}
}

const clientColumns = `id, name, email, document, phone, city, state,
	customer_id, erp_code, erp_sync, pay_sync, active, created_at, updated_at`

// Get retrieves a client by ID.
func (s *ClientStore) Get(ctx context.Context, id string) (client.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	return scanClient(row)
}

// GetByDocument retrieves a client by normalized CPF/CNPJ.
func (s *ClientStore) GetByDocument(ctx context.Context, document string) (client.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE document = ?`, document)
	return scanClient(row)
}

// GetByCustomerID retrieves a client by its payment provider customer ID.
func (s *ClientStore) GetByCustomerID(ctx context.Context, customerID string) (client.Client, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE customer_id = ?`, customerID)
	return scanClient(row)
}

// Create stores a new client.
func (s *ClientStore) Create(ctx context.Context, c client.Client) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, email, document, phone, city, state,
			customer_id, erp_code, erp_sync, pay_sync, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Email, c.Document, nullString(c.Phone), nullString(c.City),
		nullString(c.State), nullString(c.CustomerID), nullString(c.ERPCode),
		string(c.ERPSync), string(c.PaySync), boolToInt(c.Active), c.CreatedAt, c.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Update modifies an existing client.
func (s *ClientStore) Update(ctx context.Context, c client.Client) error {
	c.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET name = ?, email = ?, document = ?, phone = ?, city = ?, state = ?,
		    customer_id = ?, erp_code = ?, erp_sync = ?, pay_sync = ?, active = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Email, c.Document, nullString(c.Phone), nullString(c.City),
		nullString(c.State), nullString(c.CustomerID), nullString(c.ERPCode),
		string(c.ERPSync), string(c.PaySync), boolToInt(c.Active), c.UpdatedAt, c.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicate
		}
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

// Delete removes a client.
func (s *ClientStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
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

// List returns clients with pagination.
func (s *ClientStore) List(ctx context.Context, limit, offset int) ([]client.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []client.Client
	for rows.Next() {
		c, err := scanClientRows(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// Count returns total client count.
func (s *ClientStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClientFrom(r rowScanner) (client.Client, error) {
	var c client.Client
	var phone, city, state, customerID, erpCode sql.NullString
	var erpSync, paySync string
	var active int

	err := r.Scan(&c.ID, &c.Name, &c.Email, &c.Document, &phone, &city, &state,
		&customerID, &erpCode, &erpSync, &paySync, &active, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return client.Client{}, ErrNotFound
	}
	if err != nil {
		return client.Client{}, err
	}

	c.Phone = phone.String
	c.City = city.String
	c.State = state.String
	c.CustomerID = customerID.String
	c.ERPCode = erpCode.String
	c.ERPSync = client.SyncState(erpSync)
	c.PaySync = client.SyncState(paySync)
	c.Active = active == 1
	return c, nil
}

func scanClient(row *sql.Row) (client.Client, error) {
	return scanClientFrom(row)
}

func scanClientRows(rows *sql.Rows) (client.Client, error) {
	return scanClientFrom(rows)
}

// Ensure interface compliance.
var _ ports.ClientStore = (*ClientStore)(nil)
