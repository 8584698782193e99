package model

import (
	"strings"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
)

// Normalize trims section values and derives NumTickets from an explicit
// seat list when one is present.
func (t *TicketRequest) Normalize() {
	switch t.Kind {
	case KindSell:
		if t.Sell != nil {
			t.Sell.SectionType = strings.TrimSpace(t.Sell.SectionType)
			t.Sell.Seats = compactSeats(t.Sell.Seats)
			if n := len(t.Sell.Seats); n > 0 {
				t.NumTickets = n
			}
		}
	case KindBuy:
		if t.Buy != nil {
			t.Buy.SectionType = strings.TrimSpace(t.Buy.SectionType)
		}
	case KindTrade:
		if t.Trade != nil {
			t.Trade.SectionTypeOffered = strings.TrimSpace(t.Trade.SectionTypeOffered)
			t.Trade.SectionTypeDesired = strings.TrimSpace(t.Trade.SectionTypeDesired)
			t.Trade.Seats = compactSeats(t.Trade.Seats)
			if n := len(t.Trade.Seats); n > 0 {
				t.NumTickets = n
			}
		}
	}
}

// Validate checks the kind-specific fields of a request.
func (t TicketRequest) Validate() error {
	if t.NumTickets <= 0 {
		return apperr.Validation("num_tickets must be a positive integer")
	}
	switch t.Kind {
	case KindSell:
		if t.Sell == nil || t.Buy != nil || t.Trade != nil {
			return apperr.Validation("sell request requires sell terms only")
		}
		if err := checkSection("section_type", t.Sell.SectionType); err != nil {
			return err
		}
		if t.GameID == nil {
			return apperr.Validation("sell request requires game_id")
		}
		if t.Sell.MinPrice != nil && t.Sell.MinPrice.IsNegative() {
			return apperr.Validation("min_price must not be negative")
		}
		if t.Sell.DonatingFree && t.Sell.MinPrice != nil && t.Sell.MinPrice.IsPositive() {
			return apperr.Validation("donated tickets cannot carry a min_price")
		}
	case KindBuy:
		if t.Buy == nil || t.Sell != nil || t.Trade != nil {
			return apperr.Validation("buy request requires buy terms only")
		}
		if !t.Buy.AnySection {
			if err := checkSection("section_type", t.Buy.SectionType); err != nil {
				return err
			}
		}
		if t.Buy.MaxPrice != nil && t.Buy.MaxPrice.IsNegative() {
			return apperr.Validation("max_price must not be negative")
		}
	case KindTrade:
		if t.Trade == nil || t.Buy != nil || t.Sell != nil {
			return apperr.Validation("trade request requires trade terms only")
		}
		if t.GameID == nil {
			return apperr.Validation("trade request requires game_id")
		}
		if err := checkSection("section_type_offered", t.Trade.SectionTypeOffered); err != nil {
			return err
		}
		if !t.Trade.AnySection {
			if err := checkSection("section_type_desired", t.Trade.SectionTypeDesired); err != nil {
				return err
			}
		}
	default:
		return apperr.Validation("unknown ticket kind %q", t.Kind)
	}
	return nil
}

func checkSection(field, v string) error {
	if v == "" {
		return apperr.Validation("%s is required", field)
	}
	if !KnownSection(v) {
		return apperr.Validation("%s %q is not a known section", field, v)
	}
	return nil
}

func compactSeats(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
