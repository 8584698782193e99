package matching

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/iliyamo/ticket-exchange/internal/apperr"
	"github.com/iliyamo/ticket-exchange/internal/model"
)

func ref(id uint64) *uint64 { return &id }

func money(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

var sections = []string{"standard", "student", "premium", "club", "suite"}

func TestScoreEndToEndExample(t *testing.T) {
	s := NewScorer(DefaultWeights())
	sell := model.TicketRequest{ID: "s1", Kind: model.KindSell, OwnerID: 1, GameID: ref(7), NumTickets: 3,
		Sell: &model.SellTerms{SectionType: "standard", MinPrice: money(20)}}
	buy := model.TicketRequest{ID: "b1", Kind: model.KindBuy, OwnerID: 2, GameID: ref(7), NumTickets: 2,
		Buy: &model.BuyTerms{SectionType: "standard", MaxPrice: money(30)}}

	res, err := s.Pair(buy, sell)
	require.NoError(t, err)

	assert.Equal(t, 95, res.Score)
	assert.Equal(t, PriceCompatible, res.PriceStatus)
	require.Len(t, res.Reasons, 5)
	assert.Contains(t, res.Reasons[0], "Game")
	assert.Contains(t, res.Reasons[1], "Section")
	assert.Contains(t, res.Reasons[2], "Quantity")
	assert.Contains(t, res.Reasons[3], "Price")
	assert.Contains(t, res.Reasons[4], "Seating")
	assert.Contains(t, res.Reasons[4], "(+5)")
}

func TestScoreFactors(t *testing.T) {
	base := func() (model.Offer, model.Want) {
		return model.Offer{GameID: ref(1), SectionType: "standard", NumTickets: 2, MinPrice: money(20)},
			model.Want{GameID: ref(1), SectionType: "standard", NumTickets: 2, MaxPrice: money(30)}
	}
	tests := []struct {
		name       string
		mutate     func(o *model.Offer, w *model.Want)
		wantScore  int
		wantStatus PriceStatus
	}{
		{"baseline", func(o *model.Offer, w *model.Want) {}, 95, PriceCompatible},
		{"buyer any game", func(o *model.Offer, w *model.Want) { w.GameID = nil; o.GameID = ref(9) }, 95, PriceCompatible},
		{"different game", func(o *model.Offer, w *model.Want) { o.GameID = ref(2) }, 65, PriceCompatible},
		{"any section", func(o *model.Offer, w *model.Want) { w.SectionType = ""; w.AnySection = true }, 85, PriceCompatible},
		{"section mismatch", func(o *model.Offer, w *model.Want) { o.SectionType = "club" }, 75, PriceCompatible},
		{"too few tickets", func(o *model.Offer, w *model.Want) { o.NumTickets = 1 }, 75, PriceCompatible},
		{"slight overage", func(o *model.Offer, w *model.Want) { o.MinPrice = money(35) }, 85, PriceNegotiationLikely},
		{"overage at 25% boundary", func(o *model.Offer, w *model.Want) { o.MinPrice = money(40); w.MaxPrice = money(32) }, 75, PriceNegotiationNeeded},
		{"large overage", func(o *model.Offer, w *model.Want) { o.MinPrice = money(60) }, 75, PriceNegotiationNeeded},
		{"no min price", func(o *model.Offer, w *model.Want) { o.MinPrice = nil }, 75, PriceIncomplete},
		{"donation match", func(o *model.Offer, w *model.Want) {
			o.DonatingFree, o.MinPrice = true, nil
			w.RequestingFree, w.MaxPrice = true, nil
		}, 95, PriceDonationMatch},
		{"donation mismatch", func(o *model.Offer, w *model.Want) { o.DonatingFree, o.MinPrice = true, nil }, -25, PriceDonationMismatch},
		{"both together", func(o *model.Offer, w *model.Want) { o.TicketsTogether, w.TicketsTogether = true, true }, 100, PriceCompatible},
		{"together differs", func(o *model.Offer, w *model.Want) { w.TicketsTogether = true }, 90, PriceCompatible},
	}
	s := NewScorer(DefaultWeights())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, w := base()
			tt.mutate(&o, &w)
			res := s.Score(o, w)
			assert.Equal(t, tt.wantScore, res.Score)
			assert.Equal(t, tt.wantStatus, res.PriceStatus)
			assert.Len(t, res.Reasons, 5)
		})
	}
}

func TestReasonsNeverRevealBuyerCeiling(t *testing.T) {
	s := NewScorer(DefaultWeights())
	res := s.Score(
		model.Offer{GameID: ref(1), SectionType: "standard", NumTickets: 1, MinPrice: money(35)},
		model.Want{GameID: ref(1), SectionType: "standard", NumTickets: 1, MaxPrice: money(31)},
	)
	for _, r := range res.Reasons {
		assert.NotContains(t, r, "31")
	}
}

func TestPairRejectsSameSide(t *testing.T) {
	s := NewScorer(DefaultWeights())
	a := model.TicketRequest{Kind: model.KindSell, NumTickets: 1, Sell: &model.SellTerms{SectionType: "standard"}}
	_, err := s.Pair(a, a)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPairTradeUsesWeakerDirection(t *testing.T) {
	s := NewScorer(DefaultWeights())
	a := model.TicketRequest{Kind: model.KindTrade, GameID: ref(1), NumTickets: 2,
		Trade: &model.TradeTerms{SectionTypeOffered: "club", SectionTypeDesired: "premium"}}
	b := model.TicketRequest{Kind: model.KindTrade, GameID: ref(1), NumTickets: 2,
		Trade: &model.TradeTerms{SectionTypeOffered: "premium", SectionTypeDesired: "suite"}}

	res, err := s.Pair(a, b)
	require.NoError(t, err)
	// b offers what a wants, but a does not offer what b wants
	assert.Equal(t, 30+0+20+0+5, res.Score)
	assert.Equal(t, PriceIncomplete, res.PriceStatus)
}

func TestWeightsThreshold(t *testing.T) {
	w := DefaultWeights()
	assert.Equal(t, 100, w.Max())
	assert.Equal(t, 40, w.Threshold())
}

func TestPropertyDonationMismatchNeverPositive(t *testing.T) {
	s := NewScorer(DefaultWeights())
	rapid.Check(t, func(t *rapid.T) {
		o := model.Offer{
			GameID:          ref(rapid.Uint64Range(1, 3).Draw(t, "sellGame")),
			SectionType:     rapid.SampledFrom(sections).Draw(t, "offered"),
			NumTickets:      rapid.IntRange(1, 8).Draw(t, "offeredQty"),
			DonatingFree:    true,
			TicketsTogether: rapid.Bool().Draw(t, "sellTogether"),
		}
		w := model.Want{
			SectionType:     rapid.SampledFrom(sections).Draw(t, "wanted"),
			AnySection:      rapid.Bool().Draw(t, "any"),
			NumTickets:      rapid.IntRange(1, 8).Draw(t, "wantedQty"),
			MaxPrice:        money(rapid.Int64Range(0, 500).Draw(t, "max")),
			TicketsTogether: rapid.Bool().Draw(t, "buyTogether"),
		}
		if rapid.Bool().Draw(t, "anyGame") {
			w.GameID = nil
		} else {
			w.GameID = ref(rapid.Uint64Range(1, 3).Draw(t, "buyGame"))
		}

		res := s.Score(o, w)
		if res.Score > 0 {
			t.Fatalf("donation mismatch scored %d", res.Score)
		}
		if res.PriceStatus != PriceDonationMismatch {
			t.Fatalf("expected donation_mismatch, got %s", res.PriceStatus)
		}
	})
}

func TestPropertyPerfectPairScoresMax(t *testing.T) {
	s := NewScorer(DefaultWeights())
	rapid.Check(t, func(t *rapid.T) {
		game := ref(rapid.Uint64Range(1, 100).Draw(t, "game"))
		section := rapid.SampledFrom(sections).Draw(t, "section")
		wanted := rapid.IntRange(1, 6).Draw(t, "wanted")
		max := rapid.Int64Range(1, 1000).Draw(t, "max")
		min := rapid.Int64Range(0, max).Draw(t, "min")

		res := s.Score(
			model.Offer{GameID: game, SectionType: section, NumTickets: wanted + rapid.IntRange(0, 4).Draw(t, "extra"),
				MinPrice: money(min), TicketsTogether: true},
			model.Want{GameID: game, SectionType: section, NumTickets: wanted,
				MaxPrice: money(max), TicketsTogether: true},
		)
		if res.Score != 100 {
			t.Fatalf("expected 100, got %d (%v)", res.Score, res.Reasons)
		}
	})
}

func TestPropertyScoreBounded(t *testing.T) {
	s := NewScorer(DefaultWeights())
	rapid.Check(t, func(t *rapid.T) {
		o := model.Offer{
			GameID:       ref(rapid.Uint64Range(1, 3).Draw(t, "g1")),
			SectionType:  rapid.SampledFrom(sections).Draw(t, "s1"),
			NumTickets:   rapid.IntRange(1, 8).Draw(t, "n1"),
			DonatingFree: rapid.Bool().Draw(t, "donate"),
		}
		if !o.DonatingFree && rapid.Bool().Draw(t, "hasMin") {
			o.MinPrice = money(rapid.Int64Range(0, 300).Draw(t, "min"))
		}
		w := model.Want{
			GameID:         ref(rapid.Uint64Range(1, 3).Draw(t, "g2")),
			SectionType:    rapid.SampledFrom(sections).Draw(t, "s2"),
			NumTickets:     rapid.IntRange(1, 8).Draw(t, "n2"),
			RequestingFree: rapid.Bool().Draw(t, "free"),
		}
		if rapid.Bool().Draw(t, "hasMax") {
			w.MaxPrice = money(rapid.Int64Range(1, 300).Draw(t, "max"))
		}
		res := s.Score(o, w)
		if res.Score > 100 || res.Score < -100 {
			t.Fatalf("score %d out of range", res.Score)
		}
		if len(res.Reasons) != 5 {
			t.Fatalf("expected 5 reasons, got %d", len(res.Reasons))
		}
	})
}
