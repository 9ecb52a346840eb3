package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Event identifies a booking lifecycle event recorded in the audit log.
type Event string

// ParseEvent validates a raw event name from an API path or query.
func ParseEvent(raw string) (Event, bool) {
	switch e := Event(raw); e {
	case EventScored, EventAutoApproved, EventAutoHeld, EventApproved,
		EventRejected, EventWhitelisted, EventBlacklisted:
		return e, true
	}
	return "", false
}

const (
	EventScored       Event = "SCORED"
	EventAutoApproved Event = "AUTO_APPROVED"
	EventAutoHeld     Event = "AUTO_HELD"
	EventApproved     Event = "APPROVED"
	EventRejected     Event = "REJECTED"
	EventWhitelisted  Event = "WHITELISTED"
	EventBlacklisted  Event = "BLACKLISTED"
)

// Entry is an append-only audit record. Entries are never updated or deleted;
// a booking accumulates one entry per lifecycle event.
type Entry struct {
	ID        uuid.UUID              `json:"id"`
	BookingID uuid.UUID              `json:"booking_id"`
	Event     Event                  `json:"event"`
	Payload   map[string]interface{} `json:"payload"`
	Actor     *uuid.UUID             `json:"actor,omitempty"`
	IPHash    *string                `json:"ip_hash,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewEntry creates an audit entry for the given booking and event.
func NewEntry(bookingID uuid.UUID, event Event, payload map[string]interface{}) *Entry {
	return &Entry{
		ID:        uuid.New(),
		BookingID: bookingID,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// WithActor attaches the acting user to the entry.
func (e *Entry) WithActor(actor uuid.UUID) *Entry {
	e.Actor = &actor
	return e
}

// WithIP attaches a hashed requester IP to the entry. The raw address is
// never stored.
func (e *Entry) WithIP(ip string) *Entry {
	if ip == "" {
		return e
	}
	h := HashIP(ip)
	e.IPHash = &h
	return e
}

// HashIP returns the hex-encoded SHA-256 digest of an IP address.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
