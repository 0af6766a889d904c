package models

// Requests for forecast HTTP endpoints. Defined in domain for consistency and reuse.

type PredictRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	N        int    `query:"n" json:"n" default:"300" validate:"gte=1,lte=5000"`
	TF       string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m 1h 1d"`
	Lookback int    `query:"lookback" json:"lookback" default:"60" validate:"gte=20,lte=500"`

	Macro     *MacroFeatures     `json:"macro,omitempty"`
	Sentiment *SentimentFeatures `json:"sentiment,omitempty"`
}

type RecordResultRequest struct {
	Symbol     string  `json:"symbol" validate:"required"`
	Predicted  float64 `json:"predicted"`
	Actual     float64 `json:"actual"`
	Confidence float64 `json:"confidence" default:"50" validate:"gte=0,lte=100"`
	Regime     string  `json:"regime" default:"QUIET" validate:"oneof=TRENDING RANGING VOLATILE QUIET"`
}

type RecordExpertResultRequest struct {
	Symbol    string  `json:"symbol" validate:"required"`
	Expert    string  `json:"expert" validate:"required,oneof=statistical boosting sequence technical"`
	Predicted float64 `json:"predicted"`
	Actual    float64 `json:"actual"`
}

type SymbolRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m 1h 1d"`
}

type ImportRequest struct {
	Symbol   string   `json:"symbol" validate:"required"`
	Snapshot Snapshot `json:"snapshot" validate:"required"`
}
