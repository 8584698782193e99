// Package queue consumes lifecycle events from the broker and fans them out
// to the audit and notification handlers.
package queue

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/iliyamo/ticket-exchange/internal/exchange"
)

// Handler reacts to one lifecycle event.
type Handler interface {
	Handle(ctx context.Context, ev exchange.LifecycleEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev exchange.LifecycleEvent) error

func (f HandlerFunc) Handle(ctx context.Context, ev exchange.LifecycleEvent) error { return f(ctx, ev) }

// Decode parses a message body.  Events without a type or match id are
// rejected.
func Decode(body []byte) (exchange.LifecycleEvent, error) {
	var ev exchange.LifecycleEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, eris.Wrap(err, "unmarshal lifecycle event")
	}
	if ev.Type == "" || ev.Match.ID == "" {
		return ev, eris.New("lifecycle event without type or match id")
	}
	return ev, nil
}
