// Package exchange owns the Match entity and its state machine.  It keeps
// a match and its two ticket requests consistent under concurrent calls by
// running each transition as one store transaction guarded by
// compare-and-set updates.
package exchange

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/model"
	"github.com/iliyamo/ticket-exchange/internal/monitoring"
)

// Config tunes an Engine.
type Config struct {
	// MatchTTL sets Match.ExpiresAt on creation.  Zero disables expiry.
	MatchTTL time.Duration
	// PublishTimeout bounds a single event delivery.
	PublishTimeout time.Duration
}

// Engine drives match creation and transitions.
type Engine struct {
	store  Store
	users  UserDirectory
	games  GameResolver
	events EventSink
	log    zerolog.Logger

	ttl            time.Duration
	publishTimeout time.Duration
	now            func() time.Time
	newID          func() string

	wg sync.WaitGroup
}

func NewEngine(store Store, users UserDirectory, games GameResolver, events EventSink, cfg Config, log zerolog.Logger) *Engine {
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	return &Engine{
		store:          store,
		users:          users,
		games:          games,
		events:         events,
		log:            log.With().Str("component", "exchange").Logger(),
		ttl:            cfg.MatchTTL,
		publishTimeout: cfg.PublishTimeout,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
	}
}

// Initiate proposes a match between the actor's initiator ticket and an
// open ticket of the opposite kind owned by someone else.  Both tickets
// move to pending.
func (e *Engine) Initiate(ctx context.Context, initiatorTicketID, matchedTicketID string, actor Actor) (model.Match, error) {
	m, err := e.initiate(ctx, initiatorTicketID, matchedTicketID, actor)
	e.track("initiate", err)
	return m, err
}

func (e *Engine) initiate(ctx context.Context, initiatorTicketID, matchedTicketID string, actor Actor) (model.Match, error) {
	if initiatorTicketID == "" || matchedTicketID == "" {
		return model.Match{}, apperr.Validation("initiator_ticket_id and matched_ticket_id are required")
	}
	if initiatorTicketID == matchedTicketID {
		return model.Match{}, apperr.Validation("a ticket cannot be matched with itself")
	}
	initiator, err := e.store.Ticket(ctx, initiatorTicketID)
	if err != nil {
		return model.Match{}, err
	}
	matched, err := e.store.Ticket(ctx, matchedTicketID)
	if err != nil {
		return model.Match{}, err
	}
	if initiator.OwnerID != actor.UserID {
		return model.Match{}, apperr.Unauthorized("ticket %s is not yours", initiator.ID)
	}
	if matched.OwnerID == initiator.OwnerID {
		return model.Match{}, apperr.Validation("cannot match two of your own tickets")
	}
	if matched.Kind != initiator.Kind.Opposite() {
		return model.Match{}, apperr.Validation("cannot match a %s request with a %s request", initiator.Kind, matched.Kind)
	}
	for _, t := range []model.TicketRequest{initiator, matched} {
		if t.Status != model.TicketOpen {
			return model.Match{}, apperr.InvalidState(string(t.Status), "ticket %s is not open", t.ID)
		}
		if err := e.checkGame(ctx, t); err != nil {
			return model.Match{}, err
		}
		if err := e.checkOwnerActive(ctx, t); err != nil {
			return model.Match{}, err
		}
	}

	m := e.newMatch(initiator.ID, matched.ID, actor.UserID, "match initiated")
	var stale string
	err = e.store.InTx(ctx, func(tx Tx) error {
		for _, id := range []string{initiator.ID, matched.ID} {
			if err := tx.SwapTicketStatus(ctx, id, []model.TicketStatus{model.TicketOpen}, model.TicketPending); err != nil {
				if errors.Is(err, apperr.ErrStale) {
					stale = id
				}
				return err
			}
		}
		return tx.InsertMatch(ctx, m)
	})
	if err != nil {
		return model.Match{}, e.conflict(ctx, err, "", stale)
	}

	e.log.Info().Str("match_id", m.ID).Uint64("user_id", actor.UserID).Msg("match initiated")
	e.emit(ctx, LifecycleEvent{
		Type: EventInitiated, Match: m, ActingUserID: actor.UserID,
		Participants: participants(initiator, matched), OccurredAt: m.CreatedAt,
	})
	return m, nil
}

// InitiateDirect lets a user without a request of their own propose a
// match against target.  A proxy request of the opposite kind is created
// for the actor directly in pending; the proxy, the target's status change
// and the match commit in one transaction.
func (e *Engine) InitiateDirect(ctx context.Context, targetTicketID string, actor Actor) (model.Match, model.TicketRequest, error) {
	m, proxy, err := e.initiateDirect(ctx, targetTicketID, actor)
	e.track("initiate_direct", err)
	return m, proxy, err
}

func (e *Engine) initiateDirect(ctx context.Context, targetTicketID string, actor Actor) (model.Match, model.TicketRequest, error) {
	target, err := e.store.Ticket(ctx, targetTicketID)
	if err != nil {
		return model.Match{}, model.TicketRequest{}, err
	}
	if target.OwnerID == actor.UserID {
		return model.Match{}, model.TicketRequest{}, apperr.Validation("cannot request a match with your own ticket")
	}
	if target.Status != model.TicketOpen {
		return model.Match{}, model.TicketRequest{}, apperr.InvalidState(string(target.Status), "ticket %s is not open", target.ID)
	}
	if err := e.checkGame(ctx, target); err != nil {
		return model.Match{}, model.TicketRequest{}, err
	}
	if err := e.checkOwnerActive(ctx, target); err != nil {
		return model.Match{}, model.TicketRequest{}, err
	}
	user, err := e.users.User(ctx, actor.UserID)
	if err != nil {
		return model.Match{}, model.TicketRequest{}, err
	}
	if !user.IsActive {
		return model.Match{}, model.TicketRequest{}, apperr.Unauthorized("account %d is deactivated", user.ID)
	}

	proxy, err := proxyFor(target, user, e.newID(), e.now())
	if err != nil {
		return model.Match{}, model.TicketRequest{}, err
	}
	m := e.newMatch(proxy.ID, target.ID, actor.UserID, "direct match requested")

	var stale string
	err = e.store.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertTicket(ctx, proxy); err != nil {
			return err
		}
		if err := tx.SwapTicketStatus(ctx, target.ID, []model.TicketStatus{model.TicketOpen}, model.TicketPending); err != nil {
			if errors.Is(err, apperr.ErrStale) {
				stale = target.ID
			}
			return err
		}
		return tx.InsertMatch(ctx, m)
	})
	if err != nil {
		return model.Match{}, model.TicketRequest{}, e.conflict(ctx, err, "", stale)
	}

	e.log.Info().Str("match_id", m.ID).Str("proxy_ticket_id", proxy.ID).Uint64("user_id", actor.UserID).Msg("direct match initiated")
	e.emit(ctx, LifecycleEvent{
		Type: EventInitiated, Match: m, ActingUserID: actor.UserID,
		Participants: participants(proxy, target), OccurredAt: m.CreatedAt,
	})
	return m, proxy, nil
}

// proxyFor builds the request a direct match creates on the actor's
// behalf.  It carries over game, section, quantity and adjacency from the
// target and mirrors a donation into a free request.
func proxyFor(target model.TicketRequest, owner model.User, id string, now time.Time) (model.TicketRequest, error) {
	p := model.TicketRequest{
		ID:              id,
		Kind:            target.Kind.Opposite(),
		OwnerID:         owner.ID,
		GameID:          target.GameID,
		NumTickets:      target.NumTickets,
		Status:          model.TicketPending,
		TicketsTogether: target.TicketsTogether,
		UserSnapshot:    owner.Snapshot(),
		IsDirectMatch:   true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	switch target.Kind {
	case model.KindSell:
		b := &model.BuyTerms{}
		if target.Sell != nil {
			b.SectionType = target.Sell.SectionType
			b.RequestingFree = target.Sell.DonatingFree
		}
		p.Buy = b
	case model.KindBuy:
		if target.GameID == nil {
			return model.TicketRequest{}, apperr.Validation("ticket %s accepts any game; create a sell request for a specific game instead", target.ID)
		}
		s := &model.SellTerms{}
		if target.Buy != nil {
			s.SectionType = target.Buy.SectionType
			s.DonatingFree = target.Buy.RequestingFree
		}
		p.Sell = s
	case model.KindTrade:
		tr := &model.TradeTerms{}
		if target.Trade != nil {
			tr.SectionTypeOffered = target.Trade.SectionTypeDesired
			tr.SectionTypeDesired = target.Trade.SectionTypeOffered
		}
		p.Trade = tr
	default:
		return model.TicketRequest{}, apperr.Validation("ticket %s has unknown kind %q", target.ID, target.Kind)
	}
	// an any-section target leaves the proxy without a listed section
	p.Normalize()
	if err := p.Validate(); err != nil {
		return model.TicketRequest{}, apperr.Validation("ticket %s cannot be answered directly; create a request of your own", target.ID)
	}
	return p, nil
}

// Accept moves an initiated match to accepted.  Only the owner of the
// matched ticket, or an admin, may accept.
func (e *Engine) Accept(ctx context.Context, matchID string, actor Actor) (model.Match, error) {
	m, err := e.transition(ctx, matchID, actor, step{
		name:        "accept",
		from:        []model.MatchStatus{model.MatchInitiated},
		to:          model.MatchAccepted,
		ticketsFrom: []model.TicketStatus{model.TicketPending},
		ticketsTo:   model.TicketMatched,
		authorize: func(_ model.Match, _, matched model.TicketRequest, a Actor) error {
			if a.Admin || matched.OwnerID == a.UserID {
				return nil
			}
			return apperr.Unauthorized("only the owner of the matched ticket can accept")
		},
	})
	e.track("accept", err)
	return m, err
}

// Cancel moves an unresolved match to cancelled and returns both tickets
// to the open pool.
func (e *Engine) Cancel(ctx context.Context, matchID string, actor Actor, reason string) (model.Match, error) {
	m, err := e.transition(ctx, matchID, actor, step{
		name:        "cancel",
		from:        []model.MatchStatus{model.MatchInitiated, model.MatchAccepted},
		to:          model.MatchCancelled,
		ticketsFrom: []model.TicketStatus{model.TicketPending, model.TicketMatched},
		ticketsTo:   model.TicketOpen,
		notes:       reason,
		authorize:   participantOrAdmin,
	})
	e.track("cancel", err)
	return m, err
}

// Complete moves an accepted match to completed and hands each side the
// other side's contact snapshot.
func (e *Engine) Complete(ctx context.Context, matchID string, actor Actor) (model.Match, error) {
	m, err := e.transition(ctx, matchID, actor, step{
		name:        "complete",
		from:        []model.MatchStatus{model.MatchAccepted},
		to:          model.MatchCompleted,
		ticketsFrom: []model.TicketStatus{model.TicketMatched},
		ticketsTo:   model.TicketCompleted,
		authorize:   participantOrAdmin,
		prepare:     e.exchangeContacts,
	})
	e.track("complete", err)
	return m, err
}

// exchangeContacts resolves both owners before the transaction opens and
// returns the writes that hand each ticket the other side's identity.
func (e *Engine) exchangeContacts(ctx context.Context, initiator, matched model.TicketRequest) (func(Tx) error, error) {
	a, err := e.users.User(ctx, initiator.OwnerID)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve owner of ticket %s", initiator.ID)
	}
	b, err := e.users.User(ctx, matched.OwnerID)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve owner of ticket %s", matched.ID)
	}
	return func(tx Tx) error {
		if err := tx.SetCounterparty(ctx, initiator.ID, b.Contact()); err != nil {
			return err
		}
		return tx.SetCounterparty(ctx, matched.ID, a.Contact())
	}, nil
}

func participantOrAdmin(_ model.Match, initiator, matched model.TicketRequest, a Actor) error {
	if a.Admin || initiator.OwnerID == a.UserID || matched.OwnerID == a.UserID {
		return nil
	}
	return apperr.Unauthorized("only participants of the match can do this")
}

// Get returns a match visible to actor.
func (e *Engine) Get(ctx context.Context, matchID string, actor Actor) (model.Match, error) {
	m, err := e.store.Match(ctx, matchID)
	if err != nil {
		return model.Match{}, err
	}
	if actor.Admin {
		return m, nil
	}
	initiator, matched, err := e.tickets(ctx, m)
	if err != nil {
		return model.Match{}, err
	}
	if err := participantOrAdmin(m, initiator, matched, actor); err != nil {
		return model.Match{}, err
	}
	return m, nil
}

// MatchesFor lists every match touching a ticket owned by userID.
func (e *Engine) MatchesFor(ctx context.Context, userID uint64) ([]model.Match, error) {
	return e.store.MatchesForOwner(ctx, userID)
}

func (e *Engine) newMatch(initiatorID, matchedID string, by uint64, notes string) model.Match {
	now := e.now()
	m := model.Match{
		ID:                e.newID(),
		InitiatorTicketID: initiatorID,
		MatchedTicketID:   matchedID,
		Status:            model.MatchInitiated,
		History: []model.HistoryEntry{{
			Status: model.MatchInitiated, ChangedBy: by, ChangedAt: now, Notes: notes,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if e.ttl > 0 {
		exp := now.Add(e.ttl)
		m.ExpiresAt = &exp
	}
	return m
}

func (e *Engine) checkGame(ctx context.Context, t model.TicketRequest) error {
	if t.GameID == nil {
		return nil
	}
	_, err := e.games.Game(ctx, *t.GameID)
	switch {
	case err == nil:
		return nil
	case apperr.Is(err, apperr.KindDangling), apperr.Is(err, apperr.KindNotFound):
		return apperr.Dangling("ticket %s references deleted game %d", t.ID, *t.GameID)
	}
	return eris.Wrapf(err, "resolve game %d", *t.GameID)
}

// checkOwnerActive rejects tickets whose owner has been deactivated but
// whose open tickets have not been swept yet.
func (e *Engine) checkOwnerActive(ctx context.Context, t model.TicketRequest) error {
	owner, err := e.users.User(ctx, t.OwnerID)
	if err != nil {
		return eris.Wrapf(err, "load owner of ticket %s", t.ID)
	}
	if !owner.IsActive {
		return apperr.InvalidState(string(model.TicketDeactivated), "owner of ticket %s is deactivated", t.ID)
	}
	return nil
}

func (e *Engine) tickets(ctx context.Context, m model.Match) (model.TicketRequest, model.TicketRequest, error) {
	a, err := e.store.Ticket(ctx, m.InitiatorTicketID)
	if err != nil {
		return model.TicketRequest{}, model.TicketRequest{}, eris.Wrapf(err, "load initiator ticket of match %s", m.ID)
	}
	b, err := e.store.Ticket(ctx, m.MatchedTicketID)
	if err != nil {
		return model.TicketRequest{}, model.TicketRequest{}, eris.Wrapf(err, "load matched ticket of match %s", m.ID)
	}
	return a, b, nil
}

// conflict turns a failed unit of work into the caller-facing error.  A
// lost compare-and-set is reported as invalid_state naming the status
// that won the race.
func (e *Engine) conflict(ctx context.Context, err error, matchID, ticketID string) error {
	if !errors.Is(err, apperr.ErrStale) {
		return eris.Wrap(err, "persist transition")
	}
	if ticketID != "" {
		t, rerr := e.store.Ticket(ctx, ticketID)
		if rerr != nil {
			return eris.Wrapf(rerr, "re-read ticket %s", ticketID)
		}
		return apperr.InvalidState(string(t.Status), "ticket %s changed concurrently and is now %s", t.ID, t.Status)
	}
	m, rerr := e.store.Match(ctx, matchID)
	if rerr != nil {
		return eris.Wrapf(rerr, "re-read match %s", matchID)
	}
	return apperr.InvalidState(string(m.Status), "match %s changed concurrently and is now %s", m.ID, m.Status)
}

func (e *Engine) track(op string, err error) {
	switch {
	case err == nil:
		monitoring.TrackTransition(op, monitoring.OutcomeOK)
	case apperr.KindOf(err) == apperr.KindInternal:
		monitoring.TrackTransition(op, monitoring.OutcomeError)
		e.log.Error().Err(err).Str("op", op).Msg("transition failed")
	default:
		monitoring.TrackTransition(op, monitoring.OutcomeRejected)
	}
}

func participants(a, b model.TicketRequest) []uint64 {
	return []uint64{a.OwnerID, b.OwnerID}
}
