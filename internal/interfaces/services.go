package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/stockstash/internal/models"
)

// QuoteService resolves prices and validates tickers.
type QuoteService interface {
	MostRecentBusinessDay(ref time.Time) time.Time
	// GetQuotes never fails as a whole; provider errors become unavailable quotes.
	GetQuotes(ctx context.Context, tickers []string, start, end time.Time) map[string]models.Quote
	// Today is the most recent business day by the service clock.
	Today() time.Time
	// LatestQuotes is GetQuotes over the lookback window ending Today.
	LatestQuotes(ctx context.Context, tickers []string) map[string]models.Quote
	IsValidTicker(ctx context.Context, ticker string) bool
}

// UserLookup answers existence questions for form validation.
type UserLookup interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
}
