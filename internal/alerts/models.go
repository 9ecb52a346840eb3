package alerts

import (
	"time"

	"github.com/google/uuid"
)

// RiskAlert describes a booking event worth surfacing to the review channel.
type RiskAlert struct {
	BookingID  uuid.UUID
	VenueID    uuid.UUID
	GuestName  string
	GuestEmail string
	PartySize  int
	EventDate  time.Time
	Score      int
	State      string
	Reasons    []string
}
