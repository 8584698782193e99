package matching

import (
	"math"

	"github.com/shopspring/decimal"
)

// Weights is the immutable scoring configuration injected into a Scorer.
// Zero values are not meaningful; start from DefaultWeights.
type Weights struct {
	Game     int `json:"game"`
	Section  int `json:"section"`
	Quantity int `json:"quantity"`
	Price    int `json:"price"`
	Together int `json:"together"`

	// TogetherNeither is awarded when neither side requires adjacent seats.
	TogetherNeither int `json:"together_neither"`
	// DonationPenalty is subtracted when donated tickets meet a paying buyer.
	DonationPenalty int `json:"donation_penalty"`
	// NegotiationPct is the overage, relative to the buyer's ceiling, still
	// considered likely to be negotiated.
	NegotiationPct float64 `json:"negotiation_pct"`
	// ThresholdPct is the share of Max a pairing must exceed to be returned
	// by default queries.
	ThresholdPct float64 `json:"threshold_pct"`
}

// DefaultWeights returns the production weighting: 30/20/20/20/10.
func DefaultWeights() Weights {
	return Weights{
		Game:            30,
		Section:         20,
		Quantity:        20,
		Price:           20,
		Together:        10,
		TogetherNeither: 5,
		DonationPenalty: 100,
		NegotiationPct:  0.25,
		ThresholdPct:    0.40,
	}
}

// Max is the highest achievable score.
func (w Weights) Max() int {
	return w.Game + w.Section + w.Quantity + w.Price + w.Together
}

// Threshold is the default acceptance bar; pairings must score strictly above it.
func (w Weights) Threshold() int {
	return int(math.Round(float64(w.Max()) * w.ThresholdPct))
}

func (w Weights) negotiationPct() decimal.Decimal {
	return decimal.NewFromFloat(w.NegotiationPct)
}
