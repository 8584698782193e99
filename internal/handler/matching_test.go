package handler

import (
	"net/http"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-exchange/internal/matching"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

func TestScoreAdHocPair(t *testing.T) {
	h := NewPairingHandler(&fakePairer{}, newFakeTickets(), nopLog)
	body := `{
		"sell_side":{"kind":"sell","game_id":7,"num_tickets":2,"sell":{"section_type":"standard","min_price":"40"}},
		"buy_side":{"kind":"buy","game_id":7,"num_tickets":2,"buy":{"section_type":"standard","max_price":"50"}}
	}`
	c, rec := request(http.MethodPost, "/v1/score", body, 1, model.RoleUser)
	require.NoError(t, h.Score(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res matching.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Positive(t, res.Score)
	assert.NotEmpty(t, res.Reasons)
	assert.Equal(t, matching.PriceCompatible, res.PriceStatus)
}

func TestScoreRejectsIncompatibleKinds(t *testing.T) {
	h := NewPairingHandler(&fakePairer{}, newFakeTickets(), nopLog)
	body := `{
		"sell_side":{"kind":"sell","game_id":7,"num_tickets":2,"sell":{"section_type":"standard"}},
		"buy_side":{"kind":"sell","game_id":7,"num_tickets":2,"sell":{"section_type":"standard"}}
	}`
	c, rec := request(http.MethodPost, "/v1/score", body, 1, model.RoleUser)
	require.NoError(t, h.Score(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPairingsOwnership(t *testing.T) {
	src := openSell("t1", 1)
	other := model.TicketRequest{
		ID: "t9", Kind: model.KindBuy, OwnerID: 2, GameID: gameID(7), NumTickets: 2, Status: model.TicketOpen,
		Buy:          &model.BuyTerms{SectionType: "standard"},
		UserSnapshot: model.UserSnapshot{FirstName: "Bo", LastName: "K"},
	}
	p := &fakePairer{result: matching.Pairings{
		Source:   src,
		Pairings: []matching.Pairing{{Ticket: other, Score: 90, Reasons: []string{"Game: same game (+30)"}, PriceStatus: matching.PriceIncomplete}},
	}}
	h := NewPairingHandler(p, newFakeTickets(src), nopLog)

	c, rec := request(http.MethodGet, "/v1/tickets/t1/pairings", "", 2, model.RoleUser)
	require.NoError(t, h.Pairings(withParam(c, "id", "t1")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, p.calls)

	c, rec = request(http.MethodGet, "/v1/tickets/t1/pairings?all=maybe", "", 1, model.RoleUser)
	require.NoError(t, h.Pairings(withParam(c, "id", "t1")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = request(http.MethodGet, "/v1/tickets/t1/pairings?all=true", "", 1, model.RoleUser)
	require.NoError(t, h.Pairings(withParam(c, "id", "t1")))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, p.includeAll)

	var out PairingsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, uint64(1), out.Source.OwnerID)
	require.Len(t, out.Pairings, 1)
	assert.Equal(t, 90, out.Pairings[0].Score)
	assert.Zero(t, out.Pairings[0].Ticket.OwnerID)

	c, rec = request(http.MethodGet, "/v1/tickets/t1/pairings/best", "", 9, model.RoleAdmin)
	require.NoError(t, h.Best(withParam(c, "id", "t1")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"find:t1", "best:t1"}, p.calls)
}

func TestMyPairings(t *testing.T) {
	p := &fakePairer{all: []matching.Pairings{{Source: openSell("t1", 1)}}}
	h := NewPairingHandler(p, newFakeTickets(), nopLog)

	c, rec := request(http.MethodGet, "/v1/me/pairings", "", 1, model.RoleUser)
	require.NoError(t, h.Mine(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Items []PairingsView `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Items, 1)
	assert.Equal(t, "t1", out.Items[0].Source.ID)
	assert.NotNil(t, out.Items[0].Pairings)
}
