package watchlist

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// List identifies which watchlist an entry belongs to.
type List string

const (
	ListAllow List = "allow"
	ListDeny  List = "deny"
)

// EntryType categorizes the matched attribute.
type EntryType string

const (
	TypeDomain EntryType = "domain"
	TypePhone  EntryType = "phone"
	TypeIP     EntryType = "ip"
	TypeName   EntryType = "name"
)

// Entry is a single allow or deny list record. Values are stored normalized
// so lookups are exact matches.
type Entry struct {
	ID        uuid.UUID  `json:"id"`
	List      List       `json:"list"`
	Type      EntryType  `json:"type"`
	Value     string     `json:"value"`
	Notes     string     `json:"notes,omitempty"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateEntryRequest is the admin payload for adding a watchlist entry.
type CreateEntryRequest struct {
	Type  string `json:"type" binding:"required" validate:"required,watchlist_type"`
	Value string `json:"value" binding:"required" validate:"required,min=1,max=255"`
	Notes string `json:"notes" validate:"max=1000"`
}

// MatchInput carries the submission attributes checked against both lists.
type MatchInput struct {
	Email string
	Phone string
	IP    string
	Name  string
}

// Match describes which entry matched a submission.
type Match struct {
	List  List      `json:"list"`
	Type  EntryType `json:"type"`
	Value string    `json:"value"`
}

// NormalizeValue canonicalizes a value for storage and lookup. Email values
// are reduced to their domain so a domain entry covers every address on it.
func NormalizeValue(entryType EntryType, value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch entryType {
	case TypeDomain:
		if idx := strings.LastIndex(v, "@"); idx >= 0 {
			v = v[idx+1:]
		}
	case TypePhone:
		v = digitsOnly(v)
	}
	return v
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EmailDomain extracts the lowercased domain from an email address. Returns
// an empty string when no domain is present.
func EmailDomain(email string) string {
	v := strings.ToLower(strings.TrimSpace(email))
	idx := strings.LastIndex(v, "@")
	if idx < 0 || idx == len(v)-1 {
		return ""
	}
	return v[idx+1:]
}
