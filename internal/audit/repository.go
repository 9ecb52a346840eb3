package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier abstracts the subset of pgx used by the audit log so entries can be
// written through either the shared pool or an open transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists audit log entries.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new audit repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert appends an entry using the shared connection pool.
func (r *Repository) Insert(ctx context.Context, entry *Entry) error {
	return r.InsertIn(ctx, r.db, entry)
}

// InsertIn appends an entry using the given querier. Callers that need the
// audit write to commit atomically with other statements pass their open
// transaction here.
func (r *Repository) InsertIn(ctx context.Context, q Querier, entry *Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO booking_audit_log (id, booking_id, event, payload, actor, ip_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = q.Exec(ctx, query,
		entry.ID, entry.BookingID, entry.Event, payload, entry.Actor, entry.IPHash, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// ListByBooking returns the audit trail for a booking in chronological order.
func (r *Repository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*Entry, error) {
	query := `
		SELECT id, booking_id, event, payload, actor, ip_hash, created_at
		FROM booking_audit_log
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ListByEvent returns recent entries for a given event type, newest first.
func (r *Repository) ListByEvent(ctx context.Context, event Event, limit, offset int) ([]*Entry, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM booking_audit_log WHERE event = $1`, event).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	query := `
		SELECT id, booking_id, event, payload, actor, ip_hash, created_at
		FROM booking_audit_log
		WHERE event = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, event, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	return entries, total, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var entry Entry
	var payload []byte

	if err := row.Scan(&entry.ID, &entry.BookingID, &entry.Event, &payload,
		&entry.Actor, &entry.IPHash, &entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan audit entry: %w", err)
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &entry.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit payload: %w", err)
		}
	}

	return &entry, nil
}
