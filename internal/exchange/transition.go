package exchange

import (
	"context"
	"errors"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

// step describes one edge of the match state machine.
type step struct {
	name        string
	from        []model.MatchStatus
	to          model.MatchStatus
	ticketsFrom []model.TicketStatus
	ticketsTo   model.TicketStatus
	notes       string

	// ticketTo overrides ticketsTo per ticket.
	ticketTo  func(t model.TicketRequest) model.TicketStatus
	authorize func(m model.Match, initiator, matched model.TicketRequest, a Actor) error
	// prepare runs before the transaction and may return extra writes.
	prepare func(ctx context.Context, initiator, matched model.TicketRequest) (func(Tx) error, error)
}

func (e *Engine) transition(ctx context.Context, matchID string, actor Actor, s step) (model.Match, error) {
	if matchID == "" {
		return model.Match{}, apperr.Validation("match id is required")
	}
	m, err := e.store.Match(ctx, matchID)
	if err != nil {
		return model.Match{}, err
	}
	initiator, matched, err := e.tickets(ctx, m)
	if err != nil {
		return model.Match{}, err
	}
	if s.authorize != nil {
		if err := s.authorize(m, initiator, matched, actor); err != nil {
			return model.Match{}, err
		}
	}

	if m.DueForExpiry(e.now()) {
		expired, err := e.expire(ctx, m, initiator, matched, 0)
		if err != nil {
			return model.Match{}, err
		}
		return model.Match{}, apperr.InvalidState(string(expired.Status), "match %s has expired", m.ID)
	}
	if !slices.Contains(s.from, m.Status) {
		return model.Match{}, apperr.InvalidState(string(m.Status), "cannot %s a match that is %s", s.name, m.Status)
	}

	var extra func(Tx) error
	if s.prepare != nil {
		if extra, err = s.prepare(ctx, initiator, matched); err != nil {
			return model.Match{}, err
		}
	}
	return e.apply(ctx, m, actor.UserID, s, initiator, matched, extra)
}

// apply commits a transition: the match compare-and-set, its history entry
// and both ticket updates share one transaction.
func (e *Engine) apply(ctx context.Context, m model.Match, by uint64, s step, initiator, matched model.TicketRequest, extra func(Tx) error) (model.Match, error) {
	entry := model.HistoryEntry{Status: s.to, ChangedBy: by, ChangedAt: e.now(), Notes: s.notes}

	var stale string
	err := e.store.InTx(ctx, func(tx Tx) error {
		if err := tx.SwapMatchStatus(ctx, m.ID, m.Status, s.to, entry); err != nil {
			return err
		}
		for _, t := range []model.TicketRequest{initiator, matched} {
			to := s.ticketsTo
			if s.ticketTo != nil {
				to = s.ticketTo(t)
			}
			if err := tx.SwapTicketStatus(ctx, t.ID, s.ticketsFrom, to); err != nil {
				if errors.Is(err, apperr.ErrStale) {
					stale = t.ID
				}
				return err
			}
		}
		if extra != nil {
			return extra(tx)
		}
		return nil
	})
	if err != nil {
		return model.Match{}, e.conflict(ctx, err, m.ID, stale)
	}

	prev := m.Status
	m.Status = s.to
	m.History = append(slices.Clone(m.History), entry)
	m.UpdatedAt = entry.ChangedAt

	e.log.Info().Str("match_id", m.ID).Str("from", string(prev)).Str("to", string(s.to)).Uint64("user_id", by).Msg("match transition")
	e.emit(ctx, LifecycleEvent{
		Type: eventFor(s.to), Match: m, ActingUserID: by, Reason: s.notes,
		Participants: participants(initiator, matched), OccurredAt: entry.ChangedAt,
	})
	return m, nil
}

func (e *Engine) expire(ctx context.Context, m model.Match, initiator, matched model.TicketRequest, by uint64) (model.Match, error) {
	out, err := e.apply(ctx, m, by, step{
		name:        "expire",
		to:          model.MatchExpired,
		ticketsFrom: []model.TicketStatus{model.TicketPending, model.TicketMatched},
		ticketsTo:   model.TicketOpen,
		notes:       "match expired",
	}, initiator, matched, nil)
	e.track("expire", err)
	return out, err
}

// ExpireDue expires every unresolved match whose deadline has passed.
// Matches resolved concurrently are skipped.
func (e *Engine) ExpireDue(ctx context.Context, actor Actor) ([]model.Match, error) {
	if !actor.Admin {
		return nil, apperr.Unauthorized("only admins can sweep matches")
	}
	due, err := e.store.MatchesDue(ctx, e.now())
	if err != nil {
		return nil, eris.Wrap(err, "list due matches")
	}
	out := make([]model.Match, 0, len(due))
	for _, m := range due {
		initiator, matched, err := e.tickets(ctx, m)
		if err != nil {
			e.log.Warn().Err(err).Str("match_id", m.ID).Msg("skipping due match")
			continue
		}
		expired, err := e.expire(ctx, m, initiator, matched, actor.UserID)
		if err != nil {
			if !apperr.Is(err, apperr.KindInvalidState) {
				e.log.Warn().Err(err).Str("match_id", m.ID).Msg("failed to expire match")
			}
			continue
		}
		out = append(out, expired)
	}
	e.log.Info().Int("due", len(due)).Int("expired", len(out)).Msg("match expiry sweep")
	return out, nil
}

// Deactivation summarizes DeactivateOwner.
type Deactivation struct {
	UserID             uint64        `json:"user_id"`
	CancelledMatches   []model.Match `json:"cancelled_matches"`
	DeactivatedTickets int64         `json:"deactivated_tickets"`
}

// DeactivateOwner disables a user account.  Every unresolved match
// touching the user's tickets is cancelled, with the counterparty's ticket
// returned to the pool and the user's own ticket deactivated.  Remaining
// open tickets of the user are deactivated as well.  Matches are swept a
// second time after the tickets, catching an initiation that checked the
// owner before the account was disabled and committed in between.
func (e *Engine) DeactivateOwner(ctx context.Context, ownerID uint64, actor Actor) (Deactivation, error) {
	if !actor.Admin {
		return Deactivation{}, apperr.Unauthorized("only admins can deactivate users")
	}
	if _, err := e.users.User(ctx, ownerID); err != nil {
		return Deactivation{}, err
	}
	if err := e.store.InTx(ctx, func(tx Tx) error {
		return tx.DeactivateUser(ctx, ownerID)
	}); err != nil {
		return Deactivation{}, eris.Wrapf(err, "deactivate user %d", ownerID)
	}

	res := Deactivation{UserID: ownerID, CancelledMatches: []model.Match{}}
	if err := e.cancelOwnerMatches(ctx, ownerID, actor, &res); err != nil {
		return res, err
	}
	if err := e.store.InTx(ctx, func(tx Tx) error {
		n, err := tx.DeactivateOpenTickets(ctx, ownerID)
		res.DeactivatedTickets = n
		return err
	}); err != nil {
		return res, eris.Wrapf(err, "deactivate tickets of user %d", ownerID)
	}
	if err := e.cancelOwnerMatches(ctx, ownerID, actor, &res); err != nil {
		return res, err
	}

	e.log.Info().Uint64("user_id", ownerID).Int("cancelled_matches", len(res.CancelledMatches)).
		Int64("deactivated_tickets", res.DeactivatedTickets).Msg("user deactivated")
	return res, nil
}

func (e *Engine) cancelOwnerMatches(ctx context.Context, ownerID uint64, actor Actor, res *Deactivation) error {
	matches, err := e.store.UnresolvedMatchesForOwner(ctx, ownerID)
	if err != nil {
		return eris.Wrapf(err, "list matches of user %d", ownerID)
	}
	for _, m := range matches {
		initiator, matched, err := e.tickets(ctx, m)
		if err != nil {
			return err
		}
		cancelled, err := e.apply(ctx, m, actor.UserID, step{
			name:        "cancel",
			to:          model.MatchCancelled,
			ticketsFrom: []model.TicketStatus{model.TicketPending, model.TicketMatched},
			notes:       "owner account deactivated",
			ticketTo: func(t model.TicketRequest) model.TicketStatus {
				if t.OwnerID == ownerID {
					return model.TicketDeactivated
				}
				return model.TicketOpen
			},
		}, initiator, matched, nil)
		e.track("cancel", err)
		if err != nil {
			if apperr.Is(err, apperr.KindInvalidState) {
				continue
			}
			return err
		}
		res.CancelledMatches = append(res.CancelledMatches, cancelled)
	}
	return nil
}
