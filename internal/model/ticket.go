package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tags the variant of a ticket request.  The base record is shared;
// exactly one of the Buy/Sell/Trade terms pointers is populated and it
// must agree with Kind.
type Kind string

const (
	KindBuy   Kind = "buy"
	KindSell  Kind = "sell"
	KindTrade Kind = "trade"
)

// ParseKind normalizes a client supplied kind string.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindBuy, KindSell, KindTrade:
		return k, true
	}
	return "", false
}

// Opposite returns the kind a request of kind k is paired against.
func (k Kind) Opposite() Kind {
	switch k {
	case KindBuy:
		return KindSell
	case KindSell:
		return KindBuy
	case KindTrade:
		return KindTrade
	}
	return ""
}

// TicketStatus is the lifecycle status of a single request.
type TicketStatus string

const (
	TicketOpen        TicketStatus = "open"
	TicketPending     TicketStatus = "pending"
	TicketMatched     TicketStatus = "matched"
	TicketCompleted   TicketStatus = "completed"
	TicketCancelled   TicketStatus = "cancelled"
	TicketDeactivated TicketStatus = "deactivated"
)

// Terminal reports whether the request no longer participates in matching.
func (s TicketStatus) Terminal() bool {
	return s == TicketCompleted || s == TicketCancelled || s == TicketDeactivated
}

// SellTerms are the kind-specific fields of a sell request.
type SellTerms struct {
	SectionType  string           `json:"section_type"`
	MinPrice     *decimal.Decimal `json:"min_price,omitempty"`
	DonatingFree bool             `json:"donating_free"`
	Seats        []string         `json:"seats,omitempty"`
}

// BuyTerms are the kind-specific fields of a buy request.
type BuyTerms struct {
	SectionType    string           `json:"section_type,omitempty"`
	AnySection     bool             `json:"any_section"`
	MaxPrice       *decimal.Decimal `json:"max_price,omitempty"`
	RequestingFree bool             `json:"requesting_free"`
}

// TradeTerms are the kind-specific fields of a trade (pure swap) request.
type TradeTerms struct {
	SectionTypeOffered string   `json:"section_type_offered"`
	SectionTypeDesired string   `json:"section_type_desired"`
	AnySection         bool     `json:"any_section"`
	Seats              []string `json:"seats,omitempty"`
}

// TicketRequest is a user's standing offer to buy, sell or trade tickets.
//
// Fields:
//
//	ID                   – UUID assigned at creation.
//	Kind                 – variant tag, selects Buy/Sell/Trade terms.
//	OwnerID              – owning user, immutable.
//	GameID               – referenced game; nil means "any game" (buy only).
//	NumTickets           – requested or offered quantity.
//	Status               – see TicketStatus.
//	TicketsTogether      – adjacent seating required.
//	UserSnapshot         – owner identity frozen at creation.
//	CounterpartySnapshot – other party's contact identity, set on completion.
//	IsDirectMatch        – created by the engine for a direct match.
type TicketRequest struct {
	ID                   string
	Kind                 Kind
	OwnerID              uint64
	GameID               *uint64
	NumTickets           int
	Status               TicketStatus
	TicketsTogether      bool
	Buy                  *BuyTerms
	Sell                 *SellTerms
	Trade                *TradeTerms
	UserSnapshot         UserSnapshot
	CounterpartySnapshot *ContactSnapshot
	IsDirectMatch        bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Offer is the sell-side view of a request used by the scorer.
type Offer struct {
	GameID          *uint64
	SectionType     string
	NumTickets      int
	MinPrice        *decimal.Decimal
	DonatingFree    bool
	TicketsTogether bool
}

// Want is the buy-side view of a request used by the scorer.
type Want struct {
	GameID          *uint64
	SectionType     string
	AnySection      bool
	NumTickets      int
	MaxPrice        *decimal.Decimal
	RequestingFree  bool
	TicketsTogether bool
}

// Offer returns the sell-side view.  Buy requests have none.
func (t TicketRequest) Offer() (Offer, bool) {
	o := Offer{GameID: t.GameID, NumTickets: t.NumTickets, TicketsTogether: t.TicketsTogether}
	switch t.Kind {
	case KindSell:
		if t.Sell == nil {
			return Offer{}, false
		}
		o.SectionType = t.Sell.SectionType
		o.MinPrice = t.Sell.MinPrice
		o.DonatingFree = t.Sell.DonatingFree
		return o, true
	case KindTrade:
		if t.Trade == nil {
			return Offer{}, false
		}
		o.SectionType = t.Trade.SectionTypeOffered
		return o, true
	}
	return Offer{}, false
}

// Want returns the buy-side view.  Sell requests have none.
func (t TicketRequest) Want() (Want, bool) {
	w := Want{GameID: t.GameID, NumTickets: t.NumTickets, TicketsTogether: t.TicketsTogether}
	switch t.Kind {
	case KindBuy:
		if t.Buy == nil {
			return Want{}, false
		}
		w.SectionType = t.Buy.SectionType
		w.AnySection = t.Buy.AnySection
		w.MaxPrice = t.Buy.MaxPrice
		w.RequestingFree = t.Buy.RequestingFree
		return w, true
	case KindTrade:
		if t.Trade == nil {
			return Want{}, false
		}
		w.SectionType = t.Trade.SectionTypeDesired
		w.AnySection = t.Trade.AnySection
		return w, true
	}
	return Want{}, false
}

// SectionType returns the classification a request is listed under: the
// offered section for sell/trade and the desired section for buy.
func (t TicketRequest) SectionType() string {
	switch t.Kind {
	case KindSell:
		if t.Sell != nil {
			return t.Sell.SectionType
		}
	case KindBuy:
		if t.Buy != nil {
			return t.Buy.SectionType
		}
	case KindTrade:
		if t.Trade != nil {
			return t.Trade.SectionTypeOffered
		}
	}
	return ""
}

// SameGame reports whether both references point at the same game.
func SameGame(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
