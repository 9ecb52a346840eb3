package booking

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a venue booking.
type Status string

const (
	StatusPending       Status = "pending"
	StatusReviewPending Status = "review_pending"
	StatusConfirmed     Status = "confirmed"
	StatusCancelled     Status = "cancelled"
	StatusCompleted     Status = "completed"
)

// RiskState marks how a screened booking was routed. An empty state means the
// booking is not held.
type RiskState string

const (
	RiskStateNone RiskState = ""
	RiskStateSoft RiskState = "soft"
	RiskStateHard RiskState = "hard"
)

// Held reports whether the state requires manual review.
func (s RiskState) Held() bool {
	return s == RiskStateSoft || s == RiskStateHard
}

// Booking represents a venue reservation together with its screening outcome.
type Booking struct {
	ID           uuid.UUID  `json:"id"`
	VenueID      uuid.UUID  `json:"venue_id"`
	GuestName    string     `json:"guest_name"`
	GuestEmail   string     `json:"guest_email"`
	GuestPhone   string     `json:"guest_phone,omitempty"`
	PartySize    int        `json:"party_size"`
	EventDate    time.Time  `json:"event_date"`
	Status       Status     `json:"status"`
	RiskScore    *int       `json:"risk_score,omitempty"`
	RiskState    RiskState  `json:"risk_state,omitempty"`
	RiskReasons  []string   `json:"risk_reasons,omitempty"`
	RiskMetadata []byte     `json:"risk_metadata,omitempty"`
	RefundReason *string    `json:"refund_reason,omitempty"`
	ReviewedBy   *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Reviewed reports whether a human decision was already recorded.
func (b *Booking) Reviewed() bool {
	return b.ReviewedAt != nil
}
