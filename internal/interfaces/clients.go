package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/stockstash/internal/models"
)

// MarketDataClient is the external market-data provider.
type MarketDataClient interface {
	// GetEOD returns daily bars for ticker between from and to inclusive, oldest first.
	GetEOD(ctx context.Context, ticker string, from, to time.Time) ([]models.EODBar, error)
	// Search looks up symbols matching query.
	Search(ctx context.Context, query string) ([]models.SymbolMatch, error)
}

// Mailer delivers outbound email.
type Mailer interface {
	Send(ctx context.Context, msg models.Mail) error
}
