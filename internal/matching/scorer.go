// Package matching scores pairings between sell-side and buy-side ticket
// requests and discovers ranked candidates for a request.
package matching

import (
	"fmt"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// PriceStatus explains the outcome of the price factor.
type PriceStatus string

const (
	PriceDonationMatch     PriceStatus = "donation_match"
	PriceDonationMismatch  PriceStatus = "donation_mismatch"
	PriceCompatible        PriceStatus = "compatible"
	PriceNegotiationLikely PriceStatus = "negotiation_likely"
	PriceNegotiationNeeded PriceStatus = "negotiation_needed"
	PriceIncomplete        PriceStatus = "incomplete"
)

// Result is the score of one pairing.  Reasons has one entry per factor,
// in evaluation order, including factors that contributed nothing.
type Result struct {
	Score       int         `json:"score"`
	Reasons     []string    `json:"reasons"`
	PriceStatus PriceStatus `json:"price_status"`
}

// Scorer is a pure function of its Weights.
type Scorer struct {
	w Weights
}

func NewScorer(w Weights) Scorer { return Scorer{w: w} }

func (s Scorer) Weights() Weights { return s.w }

// Score computes the compatibility of a sell-side offer and a buy-side want.
func (s Scorer) Score(o model.Offer, w model.Want) Result {
	r := Result{Reasons: make([]string, 0, 5)}
	add := func(points int, format string, args ...any) {
		r.Score += points
		r.Reasons = append(r.Reasons, fmt.Sprintf(format, args...)+fmt.Sprintf(" (%+d)", points))
	}

	// game
	switch {
	case w.GameID == nil:
		add(s.w.Game, "Game: buyer accepts any game")
	case model.SameGame(o.GameID, w.GameID):
		add(s.w.Game, "Game: same game")
	default:
		add(0, "Game: different game")
	}

	// section
	switch {
	case o.SectionType != "" && o.SectionType == w.SectionType:
		add(s.w.Section, "Section: %s matches", model.SectionLabel(o.SectionType))
	case w.AnySection:
		add(s.w.Section/2, "Section: buyer accepts any section")
	default:
		add(0, "Section: %s offered, %s wanted", model.SectionLabel(o.SectionType), model.SectionLabel(w.SectionType))
	}

	// quantity
	if o.NumTickets >= w.NumTickets {
		add(s.w.Quantity, "Quantity: %d offered covers %d wanted", o.NumTickets, w.NumTickets)
	} else {
		add(0, "Quantity: only %d offered, %d wanted", o.NumTickets, w.NumTickets)
	}

	// price
	points, status, reason := s.price(o, w)
	r.PriceStatus = status
	add(points, "Price: %s", reason)

	// adjacency
	switch {
	case o.TicketsTogether && w.TicketsTogether:
		add(s.w.Together, "Seating: both require adjacent seats")
	case !o.TicketsTogether && !w.TicketsTogether:
		add(s.w.TogetherNeither, "Seating: neither requires adjacent seats")
	default:
		add(0, "Seating: adjacency preferences differ")
	}
	return r
}

// price never mentions the buyer's ceiling; it is hidden from sellers.
func (s Scorer) price(o model.Offer, w model.Want) (int, PriceStatus, string) {
	switch {
	case o.DonatingFree && w.RequestingFree:
		return s.w.Price, PriceDonationMatch, "donated tickets meet a free request"
	case o.DonatingFree:
		return -s.w.DonationPenalty, PriceDonationMismatch, "donated tickets offered to a paying buyer"
	case w.MaxPrice != nil && o.MinPrice != nil:
		if o.MinPrice.LessThanOrEqual(*w.MaxPrice) {
			return s.w.Price, PriceCompatible, "asking price within buyer's budget"
		}
		overage := o.MinPrice.Sub(*w.MaxPrice)
		if overage.LessThan(w.MaxPrice.Mul(s.w.negotiationPct())) {
			return s.w.Price / 2, PriceNegotiationLikely, "asking price slightly above buyer's budget"
		}
		return 0, PriceNegotiationNeeded, "asking price well above buyer's budget"
	}
	return 0, PriceIncomplete, "incomplete price information"
}

// Pair scores two requests regardless of argument order.  Sell/buy pairs
// are oriented automatically; trade pairs are scored in both directions
// and the weaker direction wins, since a swap must suit both parties.
func (s Scorer) Pair(a, b model.TicketRequest) (Result, error) {
	if a.Kind == model.KindTrade && b.Kind == model.KindTrade {
		ab, err := s.directed(a, b)
		if err != nil {
			return Result{}, err
		}
		ba, err := s.directed(b, a)
		if err != nil {
			return Result{}, err
		}
		if ba.Score < ab.Score {
			return ba, nil
		}
		return ab, nil
	}
	switch {
	case a.Kind == model.KindSell && b.Kind == model.KindBuy:
		return s.directed(a, b)
	case a.Kind == model.KindBuy && b.Kind == model.KindSell:
		return s.directed(b, a)
	}
	return Result{}, apperr.Validation("cannot pair a %s request with a %s request", a.Kind, b.Kind)
}

func (s Scorer) directed(seller, buyer model.TicketRequest) (Result, error) {
	o, ok := seller.Offer()
	if !ok {
		return Result{}, apperr.Validation("ticket %s has no offer terms", seller.ID)
	}
	w, ok := buyer.Want()
	if !ok {
		return Result{}, apperr.Validation("ticket %s has no request terms", buyer.ID)
	}
	return s.Score(o, w), nil
}
