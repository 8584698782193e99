package model

import "strings"

// UserSnapshot is the owner's display identity copied onto a request at
// creation time.  It is a value copy and is never re-synced with the user
// record, so it survives account deletion.
type UserSnapshot struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
}

// ContactSnapshot is the counterparty's contact identity frozen when a match
// completes.  Each side receives the other side's snapshot.
type ContactSnapshot struct {
	UserID        uint64 `json:"user_id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	ContactHandle string `json:"contact_handle,omitempty"`
	Email         string `json:"email"`
}

// Redacted returns a copy safe to show to other users: the last name is cut
// to its first character and the email is dropped.
func (s UserSnapshot) Redacted() UserSnapshot {
	out := UserSnapshot{FirstName: s.FirstName}
	if r := []rune(strings.TrimSpace(s.LastName)); len(r) > 0 {
		out.LastName = string(r[:1])
	}
	return out
}
