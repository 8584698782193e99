package exchange

import (
	"context"
	"time"

	"github.com/iliyamo/ticket-exchange/internal/model"
	"github.com/iliyamo/ticket-exchange/internal/monitoring"
)

// EventType names a lifecycle event.  It mirrors the status the match
// moved into.
type EventType string

const (
	EventInitiated EventType = "match_initiated"
	EventAccepted  EventType = "match_accepted"
	EventCompleted EventType = "match_completed"
	EventCancelled EventType = "match_cancelled"
	EventExpired   EventType = "match_expired"
)

func eventFor(s model.MatchStatus) EventType {
	return EventType("match_" + string(s))
}

// LifecycleEvent is emitted once per successful transition.
type LifecycleEvent struct {
	Type         EventType   `json:"type"`
	Match        model.Match `json:"match"`
	ActingUserID uint64      `json:"acting_user_id"`
	Reason       string      `json:"reason,omitempty"`
	Participants []uint64    `json:"participants"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// emit hands ev to the sink on its own goroutine.  The request context's
// values are kept but its cancellation is not, so a client hanging up
// does not abort delivery.
func (e *Engine) emit(ctx context.Context, ev LifecycleEvent) {
	if e.events == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				monitoring.TrackEvent(string(ev.Type), monitoring.OutcomeError)
				e.log.Error().Interface("panic", r).Str("match_id", ev.Match.ID).Str("event", string(ev.Type)).Msg("event sink panicked")
			}
		}()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.publishTimeout)
		defer cancel()
		if err := e.events.Publish(pctx, ev); err != nil {
			monitoring.TrackEvent(string(ev.Type), monitoring.OutcomeError)
			e.log.Warn().Err(err).Str("match_id", ev.Match.ID).Str("event", string(ev.Type)).Msg("failed to publish lifecycle event")
			return
		}
		monitoring.TrackEvent(string(ev.Type), monitoring.OutcomeOK)
	}()
}

// Wait blocks until all in-flight event deliveries have returned.
func (e *Engine) Wait() { e.wg.Wait() }
