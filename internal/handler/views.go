package handler

import (
	"time"

	"github.com/iliyamo/ticket-exchange/internal/matching"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// TicketView is the wire form of a ticket request.  OwnerID and the
// counterparty snapshot are only filled in for the owner (or an admin).
type TicketView struct {
	ID                   string                 `json:"id"`
	Kind                 model.Kind             `json:"kind"`
	OwnerID              uint64                 `json:"owner_id,omitempty"`
	GameID               *uint64                `json:"game_id"`
	NumTickets           int                    `json:"num_tickets"`
	Status               model.TicketStatus     `json:"status"`
	TicketsTogether      bool                   `json:"tickets_together"`
	SectionLabel         string                 `json:"section_label"`
	Buy                  *model.BuyTerms        `json:"buy,omitempty"`
	Sell                 *model.SellTerms       `json:"sell,omitempty"`
	Trade                *model.TradeTerms      `json:"trade,omitempty"`
	User                 model.UserSnapshot     `json:"user"`
	CounterpartySnapshot *model.ContactSnapshot `json:"counterparty,omitempty"`
	IsDirectMatch        bool                   `json:"is_direct_match"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// ownView renders a ticket for its owner.
func ownView(t model.TicketRequest) TicketView {
	v := publicView(t)
	v.OwnerID = t.OwnerID
	return v
}

// publicView renders a ticket already passed through matching.Redact, or
// one whose private fields must not be shown.
func publicView(t model.TicketRequest) TicketView {
	return TicketView{
		ID:                   t.ID,
		Kind:                 t.Kind,
		GameID:               t.GameID,
		NumTickets:           t.NumTickets,
		Status:               t.Status,
		TicketsTogether:      t.TicketsTogether,
		SectionLabel:         model.SectionLabel(t.SectionType()),
		Buy:                  t.Buy,
		Sell:                 t.Sell,
		Trade:                t.Trade,
		User:                 t.UserSnapshot,
		CounterpartySnapshot: t.CounterpartySnapshot,
		IsDirectMatch:        t.IsDirectMatch,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

// viewFor picks the view for viewer.
func viewFor(t model.TicketRequest, viewerID uint64, admin bool) TicketView {
	if admin || t.OwnerID == viewerID {
		return ownView(t)
	}
	return publicView(matching.Redact(t))
}

// PairingView is one ranked candidate.
type PairingView struct {
	Ticket       TicketView           `json:"ticket"`
	Score        int                  `json:"score"`
	Reasons      []string             `json:"reasons"`
	PriceStatus  matching.PriceStatus `json:"price_status"`
	SectionLabel string               `json:"section_label"`
	Weights      matching.Weights     `json:"weights"`
}

// PairingsView is the discovery result for one source ticket.
type PairingsView struct {
	Source   TicketView    `json:"source"`
	Pairings []PairingView `json:"pairings"`
}

// pairingsView renders a result.  Candidates arrive redacted from the
// matchmaker; the source belongs to the caller.
func pairingsView(p matching.Pairings) PairingsView {
	out := PairingsView{Source: ownView(p.Source), Pairings: make([]PairingView, 0, len(p.Pairings))}
	for _, c := range p.Pairings {
		out.Pairings = append(out.Pairings, PairingView{
			Ticket:       publicView(c.Ticket),
			Score:        c.Score,
			Reasons:      c.Reasons,
			PriceStatus:  c.PriceStatus,
			SectionLabel: c.SectionLabel,
			Weights:      c.Weights,
		})
	}
	return out
}
