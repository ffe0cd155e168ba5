package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/quillscribe/portal/internal/model"
)

// ErrContactNotFound is returned when a contact message does not exist.
var ErrContactNotFound = errors.New("contact message not found")

// CreateContactMessage inserts a pending contact message.
func (r *Repository) CreateContactMessage(ctx context.Context, m *model.ContactMessage) error {
	if m.Status == "" {
		m.Status = model.ContactStatusPending
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contact_messages (id, name, email, subject, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, m.ID, m.Name, m.Email, m.Subject, m.Message, m.Status, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}
	return nil
}

// GetContactMessage retrieves a contact message by ID.
func (r *Repository) GetContactMessage(ctx context.Context, id string) (*model.ContactMessage, error) {
	var m model.ContactMessage
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, subject, message, status, attempts, last_error, created_at, delivered_at
		FROM contact_messages
		WHERE id = $1
	`, id).Scan(
		&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message,
		&m.Status, &m.Attempts, &m.LastError, &m.CreatedAt, &m.DeliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact message: %w", err)
	}
	return &m, nil
}

// MarkContactDelivered records a successful delivery.
func (r *Repository) MarkContactDelivered(ctx context.Context, id string, attempts int, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE contact_messages
		SET status = $2, attempts = $3, last_error = '', delivered_at = $4
		WHERE id = $1
	`, id, model.ContactStatusDelivered, attempts, at)
	if err != nil {
		return fmt.Errorf("failed to mark contact delivered: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

// MarkContactFailed records a terminal delivery failure.
func (r *Repository) MarkContactFailed(ctx context.Context, id string, attempts int, lastError string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE contact_messages
		SET status = $2, attempts = $3, last_error = $4
		WHERE id = $1
	`, id, model.ContactStatusFailed, attempts, lastError)
	if err != nil {
		return fmt.Errorf("failed to mark contact failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

// CountContactMessagesByStatus returns message counts keyed by status.
// Every status is present, zero when no rows match.
func (r *Repository) CountContactMessagesByStatus(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{
		model.ContactStatusPending:   0,
		model.ContactStatusDelivered: 0,
		model.ContactStatusFailed:    0,
	}

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM contact_messages GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count contact messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan contact count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contact counts: %w", err)
	}
	return counts, nil
}
