package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calebdris/venue-booking/internal/audit"
	"github.com/calebdris/venue-booking/internal/booking"
)

// ErrAlreadyReviewed is returned when a reviewer decision was already
// recorded for the booking.
var ErrAlreadyReviewed = errors.New("booking already reviewed")

const reviewedBookingColumns = `
	id, venue_id, guest_name, guest_email, guest_phone, party_size, event_date,
	status, risk_score, risk_state, risk_reasons, risk_metadata, refund_reason,
	reviewed_by, reviewed_at, confirmed_at, cancelled_at, created_at, updated_at`

// Repository persists screening outcomes and review decisions. Booking
// updates and their audit entries always commit in one transaction.
type Repository struct {
	db    *pgxpool.Pool
	audit *audit.Repository
}

// NewRepository creates a new risk repository.
func NewRepository(db *pgxpool.Pool, auditRepo *audit.Repository) *Repository {
	return &Repository{db: db, audit: auditRepo}
}

// SaveScreening stores the assessment on the booking, transitions a held
// booking into review, and appends the screening audit entries atomically.
func (r *Repository) SaveScreening(ctx context.Context, bookingID uuid.UUID, a *Assessment, state booking.RiskState, entries []*audit.Entry) error {
	metadata, err := a.Marshal()
	if err != nil {
		return err
	}

	var riskState *string
	if state != booking.RiskStateNone {
		s := string(state)
		riskState = &s
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET risk_score = $2, risk_state = $3, risk_reasons = $4, risk_metadata = $5, updated_at = NOW()
		WHERE id = $1`,
		bookingID, a.Score, riskState, a.Reasons, metadata)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}

	if state.Held() {
		// Only pending bookings move into review. A booking that advanced
		// while being re-screened keeps its status.
		if _, err := tx.Exec(ctx, `
			UPDATE bookings SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3`,
			bookingID, booking.StatusReviewPending, booking.StatusPending); err != nil {
			return fmt.Errorf("failed to hold booking: %w", err)
		}
	}

	for _, entry := range entries {
		if err := r.audit.InsertIn(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit screening: %w", err)
	}

	return nil
}

// ApproveBooking confirms a held booking, clears its hold state and appends
// the approval audit entry in one transaction. The reviewer stamp is written
// exactly once; a second decision fails with ErrAlreadyReviewed.
func (r *Repository) ApproveBooking(ctx context.Context, bookingID, reviewerID uuid.UUID, entry *audit.Entry) (*booking.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	priorState, priorScore, err := r.lockForReview(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, confirmed_at = NOW(), risk_state = NULL,
		    reviewed_by = $3, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND reviewed_at IS NULL
		RETURNING `+reviewedBookingColumns,
		bookingID, booking.StatusConfirmed, reviewerID)

	b, err := r.scanReviewedBooking(ctx, row, bookingID)
	if err != nil {
		return nil, err
	}

	stampPriorRisk(entry, priorState, priorScore)
	if err := r.audit.InsertIn(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	return b, nil
}

// RejectBooking cancels a held booking with a refund reason and appends the
// rejection audit entry in one transaction. The risk snapshot is preserved
// as the record of why the booking was held.
func (r *Repository) RejectBooking(ctx context.Context, bookingID, reviewerID uuid.UUID, refundReason string, entry *audit.Entry) (*booking.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	priorState, priorScore, err := r.lockForReview(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2, cancelled_at = NOW(), refund_reason = $3,
		    reviewed_by = $4, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND reviewed_at IS NULL
		RETURNING `+reviewedBookingColumns,
		bookingID, booking.StatusCancelled, refundReason, reviewerID)

	b, err := r.scanReviewedBooking(ctx, row, bookingID)
	if err != nil {
		return nil, err
	}

	stampPriorRisk(entry, priorState, priorScore)
	if err := r.audit.InsertIn(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit rejection: %w", err)
	}

	return b, nil
}

// lockForReview reads the booking's pre-decision risk fields under a row
// lock, so the values recorded in the review audit entry cannot race with
// the UPDATE that clears them.
func (r *Repository) lockForReview(ctx context.Context, tx pgx.Tx, bookingID uuid.UUID) (*string, *int, error) {
	var (
		priorState *string
		priorScore *int
		reviewedAt *time.Time
	)

	err := tx.QueryRow(ctx, `
		SELECT risk_state, risk_score, reviewed_at FROM bookings WHERE id = $1 FOR UPDATE`,
		bookingID).Scan(&priorState, &priorScore, &reviewedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, booking.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to lock booking: %w", err)
	}
	if reviewedAt != nil {
		return nil, nil, ErrAlreadyReviewed
	}

	return priorState, priorScore, nil
}

// stampPriorRisk records the pre-decision risk fields on a review audit
// entry. The approval UPDATE nulls risk_state, so this entry is the only
// durable record of the state the reviewer acted on.
func stampPriorRisk(entry *audit.Entry, priorState *string, priorScore *int) {
	if entry == nil {
		return
	}
	if entry.Payload == nil {
		entry.Payload = make(map[string]interface{}, 2)
	}

	state := string(booking.RiskStateNone)
	if priorState != nil {
		state = *priorState
	}
	entry.Payload["prior_state"] = state
	if priorScore != nil {
		entry.Payload["score"] = *priorScore
	}
}

func (r *Repository) scanReviewedBooking(ctx context.Context, row pgx.Row, bookingID uuid.UUID) (*booking.Booking, error) {
	var b booking.Booking
	var riskState *string

	err := row.Scan(
		&b.ID, &b.VenueID, &b.GuestName, &b.GuestEmail, &b.GuestPhone, &b.PartySize, &b.EventDate,
		&b.Status, &b.RiskScore, &riskState, &b.RiskReasons, &b.RiskMetadata, &b.RefundReason,
		&b.ReviewedBy, &b.ReviewedAt, &b.ConfirmedAt, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing booking from one already decided.
			var exists bool
			if checkErr := r.db.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, bookingID).
				Scan(&exists); checkErr == nil && !exists {
				return nil, booking.ErrNotFound
			}
			return nil, ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}

	if riskState != nil {
		b.RiskState = booking.RiskState(*riskState)
	}

	return &b, nil
}
