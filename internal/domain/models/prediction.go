package models

import "time"

// MarketRegime is a derived, discrete classification of current market
// behavior. It is recomputed per prediction and never persisted.
type MarketRegime string

const (
	RegimeTrending MarketRegime = "TRENDING"
	RegimeRanging  MarketRegime = "RANGING"
	RegimeVolatile MarketRegime = "VOLATILE"
	RegimeQuiet    MarketRegime = "QUIET"
)

// Expert identifiers. Experts are pluggable strategies; these are the four
// shipped ones.
const (
	ExpertStatistical = "statistical"
	ExpertBoosting    = "boosting"
	ExpertSequence    = "sequence"
	ExpertTechnical   = "technical"

	// EnsembleID tracks the blended output in the drift detector alongside
	// the individual experts.
	EnsembleID = "ensemble"
)

// ExpertPrediction is one expert's predicted percentage price change.
type ExpertPrediction struct {
	Expert    string  `json:"expert"`
	Predicted float64 `json:"predicted"`
}

// EnsemblePrediction is the blended forecast.
type EnsemblePrediction struct {
	Symbol      string             `json:"symbol"`
	Predicted   float64            `json:"predicted"` // percentage price change
	Confidence  float64            `json:"confidence"` // [50, 95]
	Uncertainty float64            `json:"uncertainty"`
	Weights     map[string]float64 `json:"weights"`
	Experts     []ExpertPrediction `json:"experts"`
	Regime      MarketRegime       `json:"regime"`
	Reasoning   string             `json:"reasoning"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Direction buckets the blended prediction into a trading signal label.
func (p *EnsemblePrediction) Direction() string {
	switch {
	case p.Predicted > 0.5:
		return "BUY"
	case p.Predicted < -0.5:
		return "SELL"
	default:
		return "HOLD"
	}
}
