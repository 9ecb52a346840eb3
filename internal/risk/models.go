package risk

import (
	"time"

	"github.com/google/uuid"
)

// Submission carries the guest-supplied attributes of a booking that are
// screened for fraud signals.
type Submission struct {
	BookingID   uuid.UUID `json:"booking_id"`
	VenueID     uuid.UUID `json:"venue_id"`
	GuestName   string    `json:"guest_name"`
	GuestEmail  string    `json:"guest_email"`
	GuestPhone  string    `json:"guest_phone,omitempty"`
	PartySize   int       `json:"party_size"`
	EventDate   time.Time `json:"event_date"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CountryHint string    `json:"country_hint,omitempty"`
}

// ScreenRequest is the internal payload that triggers screening of an
// existing booking.
type ScreenRequest struct {
	IP          string `json:"ip" validate:"max=45"`
	UserAgent   string `json:"user_agent" validate:"max=512"`
	CountryHint string `json:"country_hint" validate:"max=2"`
}

// RejectRequest is the reviewer payload for rejecting a held booking.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required" validate:"required,min=3,max=500"`
}

// ReviewItem is a held booking as presented in the review queue.
type ReviewItem struct {
	ID         uuid.UUID `json:"id"`
	VenueID    uuid.UUID `json:"venue_id"`
	GuestName  string    `json:"guest_name"`
	GuestEmail string    `json:"guest_email"`
	PartySize  int       `json:"party_size"`
	EventDate  time.Time `json:"event_date"`
	RiskScore  int       `json:"risk_score"`
	RiskState  string    `json:"risk_state"`
	Reasons    []string  `json:"reasons"`
	HeldAt     time.Time `json:"held_at"`
}
