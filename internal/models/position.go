package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bounds on stored amounts: integer digits and digits after the point.
const (
	MaxAmountIntDigits = 15
	MaxAmountScale     = 8
)

// CheckAmount rejects amounts outside the stored bounds. It only inspects
// the coefficient length and exponent, so huge exponents fail in constant time.
func CheckAmount(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if exp < -MaxAmountScale || int64(d.NumDigits())+exp > MaxAmountIntDigits {
		return ErrAmountOutOfRange
	}
	return nil
}

// Position is one lot in a user's portfolio. Several lots may share a ticker.
type Position struct {
	Ticker   string          `json:"ticker"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	AddedAt  time.Time       `json:"added_at"`
}

// Cost returns price * quantity.
func (p Position) Cost() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(p.Quantity))
}

// WatchlistEntry tracks a ticker between a low and a high threshold.
// Low < High is checked when the entry is added, not on read.
type WatchlistEntry struct {
	Ticker  string          `json:"ticker"`
	Low     decimal.Decimal `json:"low"`
	High    decimal.Decimal `json:"high"`
	AddedAt time.Time       `json:"added_at"`
}
