package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a booking does not exist.
var ErrNotFound = errors.New("booking not found")

const bookingColumns = `
	id, venue_id, guest_name, guest_email, guest_phone, party_size, event_date,
	status, risk_score, risk_state, risk_reasons, risk_metadata, refund_reason,
	reviewed_by, reviewed_at, confirmed_at, cancelled_at, created_at, updated_at`

// Repository provides read access to bookings and their screening history.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new booking repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByID fetches a single booking.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return b, nil
}

// ListHeld returns bookings waiting on manual review, oldest hold first, with
// the total count for pagination.
func (r *Repository) ListHeld(ctx context.Context, limit, offset int) ([]*Booking, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE risk_state IS NOT NULL AND reviewed_at IS NULL`).
		Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count held bookings: %w", err)
	}

	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE risk_state IS NOT NULL AND reviewed_at IS NULL
		ORDER BY updated_at ASC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list held bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, b)
	}

	return bookings, total, rows.Err()
}

// CountRecentByEmail returns how many bookings the guest email created since
// the given time.
func (r *Repository) CountRecentByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE LOWER(guest_email) = LOWER($1) AND created_at >= $2`,
		email, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent bookings by email: %w", err)
	}
	return count, nil
}

// CountRecentByPhone returns how many bookings the guest phone created since
// the given time.
func (r *Repository) CountRecentByPhone(ctx context.Context, phone string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE guest_phone = $1 AND created_at >= $2`,
		phone, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent bookings by phone: %w", err)
	}
	return count, nil
}

// CountDistinctVenuesByEmail returns how many distinct venues the guest email
// booked since the given time.
func (r *Repository) CountDistinctVenuesByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT venue_id) FROM bookings WHERE LOWER(guest_email) = LOWER($1) AND created_at >= $2`,
		email, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct venues by email: %w", err)
	}
	return count, nil
}

// CountCancelledByEmail returns how many cancelled bookings the guest email
// accumulated since the given time.
func (r *Repository) CountCancelledByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE LOWER(guest_email) = LOWER($1) AND status = $2 AND created_at >= $3`,
		email, StatusCancelled, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cancelled bookings by email: %w", err)
	}
	return count, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var riskState *string

	err := row.Scan(
		&b.ID, &b.VenueID, &b.GuestName, &b.GuestEmail, &b.GuestPhone, &b.PartySize, &b.EventDate,
		&b.Status, &b.RiskScore, &riskState, &b.RiskReasons, &b.RiskMetadata, &b.RefundReason,
		&b.ReviewedBy, &b.ReviewedAt, &b.ConfirmedAt, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if riskState != nil {
		b.RiskState = RiskState(*riskState)
	}

	return &b, nil
}
