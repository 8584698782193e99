package matching

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/model"
	"github.com/iliyamo/ticket-exchange/internal/monitoring"
)

// BestLimit caps FindBestPairings.
const BestLimit = 3

// CandidateQuery selects open requests of one kind.  A nil GameID means
// the source accepts any game and no game filter applies.  IncludeAnyGame
// also admits candidates without a game preference.
type CandidateQuery struct {
	Kind           model.Kind
	GameID         *uint64
	IncludeAnyGame bool
	ExcludeOwner   uint64
}

// Source is the read side of the request store.
type Source interface {
	Ticket(ctx context.Context, id string) (model.TicketRequest, error)
	OpenCandidates(ctx context.Context, q CandidateQuery) ([]model.TicketRequest, error)
	OpenTicketsByOwner(ctx context.Context, ownerID uint64) ([]model.TicketRequest, error)
}

// GameResolver resolves game references.  A deleted or missing game is
// reported as an apperr.KindDangling error.
type GameResolver interface {
	Game(ctx context.Context, id uint64) (model.Game, error)
}

// Pairing is one ranked, redacted candidate.
type Pairing struct {
	Ticket       model.TicketRequest `json:"-"`
	Score        int                 `json:"score"`
	Reasons      []string            `json:"reasons"`
	PriceStatus  PriceStatus         `json:"price_status"`
	SectionLabel string              `json:"section_label"`
	Weights      Weights             `json:"weights"`
}

// Pairings is the result of discovery for one source request.
type Pairings struct {
	Source   model.TicketRequest
	Pairings []Pairing
}

// Matchmaker discovers and ranks candidates.  It only reads.
type Matchmaker struct {
	source      Source
	games       GameResolver
	scorer      Scorer
	log         zerolog.Logger
	concurrency int
}

// Config tunes a Matchmaker.
type Config struct {
	Weights     Weights
	Concurrency int // parallel source tickets in FindAllPairingsForUser
}

func NewMatchmaker(source Source, games GameResolver, cfg Config, log zerolog.Logger) *Matchmaker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Matchmaker{
		source:      source,
		games:       games,
		scorer:      NewScorer(cfg.Weights),
		log:         log.With().Str("component", "matchmaker").Logger(),
		concurrency: cfg.Concurrency,
	}
}

func (m *Matchmaker) Scorer() Scorer { return m.scorer }

// FindPairings ranks open opposite-kind candidates for ticketID.  With
// includeAll every pairing scoring above zero is returned, otherwise only
// those above the default threshold.
func (m *Matchmaker) FindPairings(ctx context.Context, ticketID string, includeAll bool) (Pairings, error) {
	start := time.Now()
	src, err := m.source.Ticket(ctx, ticketID)
	if err != nil {
		return Pairings{}, err
	}
	if src.Status != model.TicketOpen {
		return Pairings{}, apperr.InvalidState(string(src.Status), "ticket %s is not open for matching", src.ID)
	}

	games := map[uint64]bool{}
	if src.GameID != nil {
		live, err := m.gameLive(ctx, *src.GameID, games)
		if err != nil {
			return Pairings{}, err
		}
		if !live {
			return Pairings{}, apperr.Dangling("ticket %s references deleted game %d", src.ID, *src.GameID)
		}
	}

	q := CandidateQuery{
		Kind:         src.Kind.Opposite(),
		GameID:       src.GameID,
		ExcludeOwner: src.OwnerID,
	}
	if q.Kind == "" {
		return Pairings{}, apperr.Validation("ticket %s has unknown kind %q", src.ID, src.Kind)
	}
	// buyers without a game preference are fair candidates for any seller
	q.IncludeAnyGame = q.Kind == model.KindBuy
	candidates, err := m.source.OpenCandidates(ctx, q)
	if err != nil {
		return Pairings{}, eris.Wrapf(err, "load candidates for %s", src.ID)
	}

	threshold := m.scorer.Weights().Threshold()
	if includeAll {
		threshold = 0
	}

	out := make([]Pairing, 0, len(candidates))
	for _, c := range candidates {
		// tickets can move to pending between query and scan
		if c.Status != model.TicketOpen || c.OwnerID == src.OwnerID || c.ID == src.ID {
			continue
		}
		if c.GameID != nil {
			live, err := m.gameLive(ctx, *c.GameID, games)
			if err != nil {
				return Pairings{}, err
			}
			if !live {
				continue
			}
		}
		res, err := m.scorer.Pair(src, c)
		if err != nil {
			m.log.Warn().Err(err).Str("source", src.ID).Str("candidate", c.ID).Msg("skipping unscorable candidate")
			continue
		}
		if res.Score <= threshold {
			continue
		}
		out = append(out, Pairing{
			Ticket:       Redact(c),
			Score:        res.Score,
			Reasons:      res.Reasons,
			PriceStatus:  res.PriceStatus,
			SectionLabel: model.SectionLabel(c.SectionType()),
			Weights:      m.scorer.Weights(),
		})
	}
	sortPairings(out)

	monitoring.TrackPairingQuery(len(out), time.Since(start))
	return Pairings{Source: src, Pairings: out}, nil
}

// FindBestPairings returns at most BestLimit pairings above the threshold.
func (m *Matchmaker) FindBestPairings(ctx context.Context, ticketID string) (Pairings, error) {
	res, err := m.FindPairings(ctx, ticketID, false)
	if err != nil {
		return Pairings{}, err
	}
	if len(res.Pairings) > BestLimit {
		res.Pairings = res.Pairings[:BestLimit]
	}
	return res, nil
}

// FindAllPairingsForUser runs discovery for each open request of userID.
// A failing request is logged and left out; it never aborts the batch.
func (m *Matchmaker) FindAllPairingsForUser(ctx context.Context, userID uint64) ([]Pairings, error) {
	tickets, err := m.source.OpenTicketsByOwner(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "load open tickets of user %d", userID)
	}

	results := make([]*Pairings, len(tickets))
	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, t := range tickets {
		g.Go(func() error {
			res, err := m.FindPairings(ctx, t.ID, false)
			if err != nil {
				m.log.Warn().Err(err).Uint64("user_id", userID).Str("ticket_id", t.ID).Msg("pairing query failed")
				return nil
			}
			results[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Pairings, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *Matchmaker) gameLive(ctx context.Context, id uint64, seen map[uint64]bool) (bool, error) {
	if live, ok := seen[id]; ok {
		return live, nil
	}
	_, err := m.games.Game(ctx, id)
	switch {
	case err == nil:
		seen[id] = true
	case apperr.Is(err, apperr.KindDangling), apperr.Is(err, apperr.KindNotFound):
		seen[id] = false
	default:
		return false, eris.Wrapf(err, "resolve game %d", id)
	}
	return seen[id], nil
}

// sortPairings orders by score descending, then oldest request first.
func sortPairings(p []Pairing) {
	sort.SliceStable(p, func(i, j int) bool {
		if p[i].Score != p[j].Score {
			return p[i].Score > p[j].Score
		}
		if !p[i].Ticket.CreatedAt.Equal(p[j].Ticket.CreatedAt) {
			return p[i].Ticket.CreatedAt.Before(p[j].Ticket.CreatedAt)
		}
		return p[i].Ticket.ID < p[j].Ticket.ID
	})
}
