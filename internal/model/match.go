package model

import "time"

// MatchStatus is the state of a Match.  Initiated is the only entry state;
// completed, cancelled and expired are terminal.
type MatchStatus string

const (
	MatchInitiated MatchStatus = "initiated"
	MatchAccepted  MatchStatus = "accepted"
	MatchCompleted MatchStatus = "completed"
	MatchCancelled MatchStatus = "cancelled"
	MatchExpired   MatchStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s MatchStatus) Terminal() bool {
	return s == MatchCompleted || s == MatchCancelled || s == MatchExpired
}

// HistoryEntry records one transition.  Entries are append-only.
type HistoryEntry struct {
	Status    MatchStatus `json:"status"`
	ChangedBy uint64      `json:"changed_by"`
	ChangedAt time.Time   `json:"changed_at"`
	Notes     string      `json:"notes,omitempty"`
}

// Match is a proposed pairing between two ticket requests.  Matches are
// never deleted; terminal matches remain readable for audit.
type Match struct {
	ID                string         `json:"id"`
	InitiatorTicketID string         `json:"initiator_ticket_id"`
	MatchedTicketID   string         `json:"matched_ticket_id"`
	Status            MatchStatus    `json:"status"`
	History           []HistoryEntry `json:"history"`
	ExpiresAt         *time.Time     `json:"expires_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// DueForExpiry reports whether an unresolved match has passed its deadline.
func (m Match) DueForExpiry(now time.Time) bool {
	return !m.Status.Terminal() && m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}
