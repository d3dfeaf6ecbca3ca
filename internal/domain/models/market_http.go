package models

// Requests for the market HTTP endpoints. Defined in domain for consistency and reuse.

type LatestRequest struct {
	Symbol string `param:"symbol" query:"symbol" json:"symbol" validate:"required,symbol"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,symbol"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type LatestCandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,symbol"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	N      int    `query:"n" json:"n" default:"120" validate:"gte=1,lte=5000"`
}

type TradesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,symbol"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}
