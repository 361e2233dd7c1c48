package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EODBar is a single end-of-day price bar
type EODBar struct {
	Date          time.Time       `json:"date"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	AdjustedClose decimal.Decimal `json:"adjusted_close"`
	Volume        int64           `json:"volume"`
}

// SymbolMatch is one hit from the provider's symbol search
type SymbolMatch struct {
	Code     string `json:"code"`
	Exchange string `json:"exchange"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

// Quote is the per-ticker result of a quote lookup. When Available is false
// Price is zero and Error holds the provider failure.
type Quote struct {
	Ticker    string          `json:"ticker"`
	Available bool            `json:"available"`
	Price     decimal.Decimal `json:"price"`
	Date      time.Time       `json:"date"`
	Series    []EODBar        `json:"series,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Unavailable builds a QuoteUnavailable result for ticker.
func Unavailable(ticker string, err error) Quote {
	q := Quote{Ticker: ticker}
	if err != nil {
		q.Error = err.Error()
	}
	return q
}
