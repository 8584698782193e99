package model

import "time"

// Game is the event a ticket request refers to.  Games are soft-deleted;
// a request pointing at a deleted game holds a dangling reference.
type Game struct {
	ID        uint64     `json:"id"`
	Opponent  string     `json:"opponent"`
	StartsAt  time.Time  `json:"starts_at"`
	Venue     string     `json:"venue,omitempty"`
	DeletedAt *time.Time `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
}
