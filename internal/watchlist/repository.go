package watchlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("watchlist entry not found")
	// ErrDuplicate is returned when an identical entry already exists on the list.
	ErrDuplicate = errors.New("watchlist entry already exists")
)

// Repository persists allow and deny list entries.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new watchlist repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts a new entry. Values must already be normalized.
func (r *Repository) Create(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO watchlist_entries (id, list, type, value, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.List, entry.Type, entry.Value, entry.Notes, entry.CreatedBy, entry.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create watchlist entry: %w", err)
	}

	return nil
}

// Delete removes an entry from the given list.
func (r *Repository) Delete(ctx context.Context, list List, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM watchlist_entries WHERE id = $1 AND list = $2`, id, list)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns entries for one list, newest first, with the total count.
func (r *Repository) List(ctx context.Context, list List, limit, offset int) ([]*Entry, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM watchlist_entries WHERE list = $1`, list).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count watchlist entries: %w", err)
	}

	query := `
		SELECT id, list, type, value, notes, created_by, created_at
		FROM watchlist_entries
		WHERE list = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, list, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list watchlist entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.List, &e.Type, &e.Value, &e.Notes, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, total, rows.Err()
}

// FindMatch returns the first entry on the given list matching any of the
// submission attributes, or nil when nothing matches.
func (r *Repository) FindMatch(ctx context.Context, list List, input MatchInput) (*Entry, error) {
	query := `
		SELECT id, list, type, value, notes, created_by, created_at
		FROM watchlist_entries
		WHERE list = $1 AND (
			(type = 'domain' AND value = $2) OR
			(type = 'phone'  AND value = $3) OR
			(type = 'ip'     AND value = $4) OR
			(type = 'name'   AND value = $5)
		)
		LIMIT 1`

	var e Entry
	err := r.db.QueryRow(ctx, query, list,
		EmailDomain(input.Email),
		NormalizeValue(TypePhone, input.Phone),
		NormalizeValue(TypeIP, input.IP),
		NormalizeValue(TypeName, input.Name),
	).Scan(&e.ID, &e.List, &e.Type, &e.Value, &e.Notes, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to match watchlist: %w", err)
	}

	return &e, nil
}
