package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/notify"
	"github.com/ledgerdesk/ledgerdesk/ports"
)

// DeliveryStore implements ports.DeliveryStore using SQLite.
type DeliveryStore struct {
	db *DB
}

// NewDeliveryStore creates a new SQLite delivery store.
func NewDeliveryStore(db *DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

const deliveryColumns = `id, event_id, event_type, payload, status, attempt,
	max_attempts, status_code, response_body, error, duration_ms, next_retry,
	created_at, updated_at`

// Create stores a new delivery record.
func (s *DeliveryStore) Create(ctx context.Context, d notify.Delivery) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries (id, event_id, event_type, payload, status, attempt,
			max_attempts, status_code, response_body, error, duration_ms, next_retry,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.EventID, string(d.EventType), d.Payload, string(d.Status), d.Attempt,
		d.MaxAttempts, d.StatusCode, nullString(d.ResponseBody), nullString(d.Error),
		d.DurationMS, nullTime(d.NextRetry), d.CreatedAt, d.UpdatedAt)

	if err != nil && isUniqueConstraintError(err) {
		return ErrDuplicate
	}
	return err
}

// Update modifies an existing delivery record.
func (s *DeliveryStore) Update(ctx context.Context, d notify.Delivery) error {
	d.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE deliveries
		SET status = ?, attempt = ?, status_code = ?, response_body = ?, error = ?,
		    duration_ms = ?, next_retry = ?, updated_at = ?
		WHERE id = ?
	`, string(d.Status), d.Attempt, d.StatusCode, nullString(d.ResponseBody),
		nullString(d.Error), d.DurationMS, nullTime(d.NextRetry), d.UpdatedAt, d.ID)
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

// ListRecent returns the most recent delivery records.
func (s *DeliveryStore) ListRecent(ctx context.Context, limit int) ([]notify.Delivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries ORDER BY created_at DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeliveries(rows)
}

// ListRetryable returns pending deliveries whose retry time has arrived.
func (s *DeliveryStore) ListRetryable(ctx context.Context, now time.Time, limit int) ([]notify.Delivery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+deliveryColumns+` FROM deliveries
		WHERE status = ? AND next_retry IS NOT NULL AND next_retry <= ?
		ORDER BY next_retry ASC LIMIT ?
	`, string(notify.DeliveryPending), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDeliveries(rows)
}

func collectDeliveries(rows *sql.Rows) ([]notify.Delivery, error) {
	var deliveries []notify.Delivery
	for rows.Next() {
		d, err := scanDeliveryFrom(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func scanDeliveryFrom(r rowScanner) (notify.Delivery, error) {
	var d notify.Delivery
	var responseBody, errMsg sql.NullString
	var nextRetry sql.NullTime
	var eventType, status string

	err := r.Scan(&d.ID, &d.EventID, &eventType, &d.Payload, &status, &d.Attempt,
		&d.MaxAttempts, &d.StatusCode, &responseBody, &errMsg, &d.DurationMS, &nextRetry,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Delivery{}, ErrNotFound
	}
	if err != nil {
		return notify.Delivery{}, err
	}

	d.EventType = notify.EventType(eventType)
	d.Status = notify.DeliveryStatus(status)
	d.ResponseBody = responseBody.String
	d.Error = errMsg.String
	if nextRetry.Valid {
		d.NextRetry = &nextRetry.Time
	}
	return d, nil
}

// Ensure interface compliance.
var _ ports.DeliveryStore = (*DeliveryStore)(nil)
