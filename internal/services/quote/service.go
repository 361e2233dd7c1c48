// Package quote resolves the latest prices for tickers and validates symbols
package quote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/models"
)

// LookbackDays is how far before the most recent business day a view looks
// for a bar, so a day the provider has not published yet still shows a price.
const LookbackDays = 7

const dateLayout = "2006-01-02"

// Service implements interfaces.QuoteService over a MarketDataClient.
type Service struct {
	client   interfaces.MarketDataClient
	holidays map[string]struct{}
	logger   *common.Logger
	now      func() time.Time // injectable clock for testing
}

// NewService creates a quote service. holidays are market closures on top of weekends.
func NewService(client interfaces.MarketDataClient, holidays []time.Time, logger *common.Logger) *Service {
	s := &Service{
		client:   client,
		holidays: make(map[string]struct{}, len(holidays)),
		logger:   logger,
		now:      time.Now,
	}
	for _, h := range holidays {
		s.holidays[h.Format(dateLayout)] = struct{}{}
	}
	return s
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) isBusinessDay(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := s.holidays[d.Format(dateLayout)]
	return !holiday
}

// MostRecentBusinessDay returns ref's date if it is a trading day, otherwise
// the closest earlier trading day. The time of day is dropped.
func (s *Service) MostRecentBusinessDay(ref time.Time) time.Time {
	d := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	// a year of consecutive closures means the holiday table is broken
	for i := 0; i < 366 && !s.isBusinessDay(d); i++ {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// Today is the most recent business day relative to the service clock.
func (s *Service) Today() time.Time {
	return s.MostRecentBusinessDay(s.now())
}

// GetQuotes returns the latest close in [start, end] for each distinct ticker.
// An empty ticker list returns an empty map without contacting the provider.
// Provider failures are reported per ticker and never fail the whole call.
func (s *Service) GetQuotes(ctx context.Context, tickers []string, start, end time.Time) map[string]models.Quote {
	result := make(map[string]models.Quote, len(tickers))

	for _, raw := range tickers {
		ticker := strings.TrimSpace(raw)
		if ticker == "" {
			continue
		}
		if _, done := result[ticker]; done {
			continue
		}
		result[ticker] = s.fetch(ctx, ticker, start, end)
	}

	return result
}

func (s *Service) fetch(ctx context.Context, ticker string, start, end time.Time) models.Quote {
	bars, err := s.client.GetEOD(ctx, ticker, start, end)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Quote lookup failed")
		return models.Unavailable(ticker, fmt.Errorf("%w: %v", models.ErrQuoteUnavailable, err))
	}

	// compare calendar dates so provider bars (UTC) match local range bounds
	from, to := start.Format(dateLayout), end.Format(dateLayout)
	var inRange []models.EODBar
	for _, b := range bars {
		day := b.Date.Format(dateLayout)
		if day < from || day > to {
			continue
		}
		inRange = append(inRange, b)
	}
	if len(inRange) == 0 {
		return models.Unavailable(ticker, fmt.Errorf("%w: no prices between %s and %s",
			models.ErrQuoteUnavailable, from, to))
	}

	sort.Slice(inRange, func(i, j int) bool { return inRange[i].Date.Before(inRange[j].Date) })
	latest := inRange[len(inRange)-1]

	return models.Quote{
		Ticker:    ticker,
		Available: true,
		Price:     latest.Close,
		Date:      latest.Date,
		Series:    inRange,
	}
}

// LatestQuotes looks up tickers as of the most recent business day, with a
// short lookback for days the provider has not published yet.
func (s *Service) LatestQuotes(ctx context.Context, tickers []string) map[string]models.Quote {
	end := s.Today()
	return s.GetQuotes(ctx, tickers, end.AddDate(0, 0, -LookbackDays), end)
}

// IsValidTicker reports whether the provider knows ticker. Provider errors
// count as invalid. Results are memoized for the lifetime of ctx when it
// carries a memo (see WithTickerMemo).
func (s *Service) IsValidTicker(ctx context.Context, ticker string) bool {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return false
	}

	key := strings.ToUpper(ticker)
	memo := memoFromContext(ctx)
	if valid, ok := memo.get(key); ok {
		return valid
	}

	valid := s.probe(ctx, key)
	memo.set(key, valid)
	return valid
}

func (s *Service) probe(ctx context.Context, ticker string) bool {
	code, exchange, _ := strings.Cut(ticker, ".")

	matches, err := s.client.Search(ctx, code)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Ticker probe failed")
		return false
	}
	for _, m := range matches {
		if !strings.EqualFold(m.Code, code) {
			continue
		}
		if exchange == "" || strings.EqualFold(m.Exchange, exchange) {
			return true
		}
	}
	return false
}

var _ interfaces.QuoteService = (*Service)(nil)
