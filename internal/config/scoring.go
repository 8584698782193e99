package config

import (
	"github.com/iliyamo/ticket-exchange/internal/matching"
)

// LoadScoring builds the scoring weights once at start-up.  Unset variables
// keep the production defaults.
func LoadScoring() matching.Weights {
	w := matching.DefaultWeights()
	w.Game = envInt("SCORE_WEIGHT_GAME", w.Game)
	w.Section = envInt("SCORE_WEIGHT_SECTION", w.Section)
	w.Quantity = envInt("SCORE_WEIGHT_QUANTITY", w.Quantity)
	w.Price = envInt("SCORE_WEIGHT_PRICE", w.Price)
	w.Together = envInt("SCORE_WEIGHT_TOGETHER", w.Together)
	w.TogetherNeither = envInt("SCORE_WEIGHT_TOGETHER_NEITHER", w.Together/2)
	w.DonationPenalty = envInt("SCORE_DONATION_PENALTY", w.DonationPenalty)
	w.ThresholdPct = envFloat("SCORE_THRESHOLD_PCT", w.ThresholdPct)
	w.NegotiationPct = envFloat("SCORE_NEGOTIATION_PCT", w.NegotiationPct)
	return w
}
