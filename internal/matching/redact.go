package matching

import "github.com/iliyamo/ticket-exchange/internal/model"

// Redact returns a copy of t fit for other users: the owner's last name is
// cut to one character, the email dropped, and a buyer's price ceiling
// concealed.  Terms are copied so the caller's request is left untouched.
func Redact(t model.TicketRequest) model.TicketRequest {
	out := t
	out.UserSnapshot = t.UserSnapshot.Redacted()
	out.CounterpartySnapshot = nil
	if t.Buy != nil {
		b := *t.Buy
		b.MaxPrice = nil
		out.Buy = &b
	}
	if t.Sell != nil {
		s := *t.Sell
		s.Seats = append([]string(nil), t.Sell.Seats...)
		out.Sell = &s
	}
	if t.Trade != nil {
		tr := *t.Trade
		tr.Seats = append([]string(nil), t.Trade.Seats...)
		out.Trade = &tr
	}
	return out
}
