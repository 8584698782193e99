package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/exchange"
	"github.com/iliyamo/ticket-exchange/internal/matching"
	"github.com/iliyamo/ticket-exchange/internal/model"
	"github.com/iliyamo/ticket-exchange/internal/repository"
)

var nopLog = zerolog.Nop()

// request builds an echo context.  userID 0 leaves the caller anonymous.
func request(method, target, body string, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if userID != 0 {
		c.Set("user_id", userID)
		c.Set("role", role)
	}
	return c, rec
}

func withParam(c echo.Context, name, value string) echo.Context {
	c.SetParamNames(name)
	c.SetParamValues(value)
	return c
}

func gameID(id uint64) *uint64 { return &id }

type fakeTickets struct {
	items     map[string]model.TicketRequest
	created   []model.TicketRequest
	updated   []model.TicketRequest
	withdrawn []string
	err       error
}

func newFakeTickets(ts ...model.TicketRequest) *fakeTickets {
	f := &fakeTickets{items: map[string]model.TicketRequest{}}
	for _, t := range ts {
		f.items[t.ID] = t
	}
	return f
}

func (f *fakeTickets) Create(_ context.Context, t model.TicketRequest) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, t)
	f.items[t.ID] = t
	return nil
}

func (f *fakeTickets) Get(_ context.Context, id string) (model.TicketRequest, error) {
	t, ok := f.items[id]
	if !ok {
		return model.TicketRequest{}, apperr.NotFound("ticket %s not found", id)
	}
	return t, nil
}

func (f *fakeTickets) ListByOwner(_ context.Context, ownerID uint64) ([]model.TicketRequest, error) {
	var out []model.TicketRequest
	for _, t := range f.items {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, f.err
}

func (f *fakeTickets) ListOpenForGame(_ context.Context, id uint64) ([]model.TicketRequest, error) {
	var out []model.TicketRequest
	for _, t := range f.items {
		if t.Status == model.TicketOpen && t.GameID != nil && *t.GameID == id {
			out = append(out, t)
		}
	}
	return out, f.err
}

func (f *fakeTickets) UpdateTerms(_ context.Context, t model.TicketRequest) error {
	if f.err != nil {
		return f.err
	}
	f.updated = append(f.updated, t)
	f.items[t.ID] = t
	return nil
}

func (f *fakeTickets) Withdraw(_ context.Context, id string, ownerID uint64) error {
	t, ok := f.items[id]
	switch {
	case !ok:
		return apperr.NotFound("ticket %s not found", id)
	case t.OwnerID != ownerID:
		return apperr.Unauthorized("ticket %s is not yours", id)
	case t.Status != model.TicketOpen:
		return apperr.InvalidState(string(t.Status), "ticket %s is not open", id)
	}
	f.withdrawn = append(f.withdrawn, id)
	return nil
}

type fakeUsers struct {
	byID    map[uint64]model.User
	created []repository.NewUser
	dup     bool
}

func newFakeUsers(us ...model.User) *fakeUsers {
	f := &fakeUsers{byID: map[uint64]model.User{}}
	for _, u := range us {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return model.User{}, apperr.NotFound("user %d not found", id)
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, apperr.NotFound("user %s not found", email)
}

func (f *fakeUsers) Create(_ context.Context, u repository.NewUser, _ int) (uint64, error) {
	if f.dup {
		return 0, repository.ErrEmailExists
	}
	f.created = append(f.created, u)
	return uint64(100 + len(f.created)), nil
}

type fakeGames struct {
	items   map[uint64]model.Game
	deleted []uint64
}

func newFakeGames(gs ...model.Game) *fakeGames {
	f := &fakeGames{items: map[uint64]model.Game{}}
	for _, g := range gs {
		f.items[g.ID] = g
	}
	return f
}

func (f *fakeGames) Game(_ context.Context, id uint64) (model.Game, error) {
	g, ok := f.items[id]
	if !ok {
		return model.Game{}, apperr.NotFound("game %d not found", id)
	}
	if g.DeletedAt != nil {
		return model.Game{}, apperr.Dangling("game %d was deleted", id)
	}
	return g, nil
}

func (f *fakeGames) Create(_ context.Context, g model.Game) (model.Game, error) {
	if strings.TrimSpace(g.Opponent) == "" {
		return model.Game{}, apperr.Validation("opponent is required")
	}
	g.ID = uint64(len(f.items) + 1)
	f.items[g.ID] = g
	return g, nil
}

func (f *fakeGames) ListUpcoming(_ context.Context, now time.Time) ([]model.Game, error) {
	var out []model.Game
	for _, g := range f.items {
		if g.DeletedAt == nil && g.StartsAt.After(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGames) SoftDelete(_ context.Context, id uint64) error {
	if _, ok := f.items[id]; !ok {
		return apperr.NotFound("game %d not found", id)
	}
	f.deleted = append(f.deleted, id)
	return nil
}

// fakeEngine records the last call and answers with match or err.
type fakeEngine struct {
	match  model.Match
	ticket model.TicketRequest
	err    error

	calls  []string
	actor  exchange.Actor
	reason string
	ids    []string
	owner  uint64
	list   []model.Match
}

func (f *fakeEngine) record(name string, a exchange.Actor, ids ...string) (model.Match, error) {
	f.calls = append(f.calls, name)
	f.actor = a
	f.ids = ids
	return f.match, f.err
}

func (f *fakeEngine) Initiate(_ context.Context, from, to string, a exchange.Actor) (model.Match, error) {
	return f.record("initiate", a, from, to)
}

func (f *fakeEngine) InitiateDirect(_ context.Context, target string, a exchange.Actor) (model.Match, model.TicketRequest, error) {
	m, err := f.record("direct", a, target)
	return m, f.ticket, err
}

func (f *fakeEngine) Accept(_ context.Context, id string, a exchange.Actor) (model.Match, error) {
	return f.record("accept", a, id)
}

func (f *fakeEngine) Cancel(_ context.Context, id string, a exchange.Actor, reason string) (model.Match, error) {
	f.reason = reason
	return f.record("cancel", a, id)
}

func (f *fakeEngine) Complete(_ context.Context, id string, a exchange.Actor) (model.Match, error) {
	return f.record("complete", a, id)
}

func (f *fakeEngine) Get(_ context.Context, id string, a exchange.Actor) (model.Match, error) {
	return f.record("get", a, id)
}

func (f *fakeEngine) MatchesFor(_ context.Context, userID uint64) ([]model.Match, error) {
	f.calls = append(f.calls, "list")
	f.owner = userID
	return f.list, f.err
}

func (f *fakeEngine) ExpireDue(_ context.Context, a exchange.Actor) ([]model.Match, error) {
	f.calls = append(f.calls, "expire")
	f.actor = a
	return f.list, f.err
}

func (f *fakeEngine) DeactivateOwner(_ context.Context, ownerID uint64, a exchange.Actor) (exchange.Deactivation, error) {
	f.calls = append(f.calls, "deactivate")
	f.actor = a
	f.owner = ownerID
	return exchange.Deactivation{UserID: ownerID, CancelledMatches: f.list}, f.err
}

type fakePairer struct {
	result     matching.Pairings
	all        []matching.Pairings
	includeAll bool
	calls      []string
}

func (f *fakePairer) Scorer() matching.Scorer { return matching.NewScorer(matching.DefaultWeights()) }

func (f *fakePairer) FindPairings(_ context.Context, id string, includeAll bool) (matching.Pairings, error) {
	f.calls = append(f.calls, "find:"+id)
	f.includeAll = includeAll
	return f.result, nil
}

func (f *fakePairer) FindBestPairings(_ context.Context, id string) (matching.Pairings, error) {
	f.calls = append(f.calls, "best:"+id)
	return f.result, nil
}

func (f *fakePairer) FindAllPairingsForUser(_ context.Context, _ uint64) ([]matching.Pairings, error) {
	f.calls = append(f.calls, "mine")
	return f.all, nil
}

type fakeTokens struct {
	stored    map[string]uint64
	revoked   []string
	revokeAll []uint64
}

func newFakeTokens() *fakeTokens { return &fakeTokens{stored: map[string]uint64{}} }

func (f *fakeTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	f.stored[hash] = userID
	return nil
}

func (f *fakeTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	id, ok := f.stored[hash]
	if !ok {
		return 0, apperr.Unauthorized("refresh token invalid")
	}
	return id, nil
}

func (f *fakeTokens) RevokeByHash(_ context.Context, hash string) error {
	f.revoked = append(f.revoked, hash)
	delete(f.stored, hash)
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	f.revokeAll = append(f.revokeAll, userID)
	return nil
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }
