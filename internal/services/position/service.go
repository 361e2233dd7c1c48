// Package position manages per-user portfolio lots and watchlist entries
package position

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/models"
)

var (
	ErrInvalidPrice    = errors.New("price must be greater than zero")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Service owns portfolio and watchlist mutations and their quote-joined views.
type Service struct {
	store    interfaces.UserStore
	quotes   interfaces.QuoteService
	currency string
	logger   *common.Logger
	now      func() time.Time
}

// NewService creates the position service. currency is the ISO code used
// for display amounts.
func NewService(store interfaces.UserStore, quotes interfaces.QuoteService, currency string, logger *common.Logger) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		store:    store,
		quotes:   quotes,
		currency: strings.ToUpper(currency),
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func normalizeTicker(ticker string) string {
	return strings.TrimSpace(ticker)
}

func (s *Service) checkTicker(ctx context.Context, ticker string) error {
	if ticker == "" || !s.quotes.IsValidTicker(ctx, ticker) {
		return fmt.Errorf("%q: %w", ticker, models.ErrInvalidTicker)
	}
	return nil
}

// AddPosition appends a lot to userID's portfolio.
func (s *Service) AddPosition(ctx context.Context, userID, ticker string, price decimal.Decimal, quantity int64) error {
	ticker = normalizeTicker(ticker)
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	if err := models.CheckAmount(price); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if err := s.checkTicker(ctx, ticker); err != nil {
		return err
	}

	p := models.Position{
		Ticker:   ticker,
		Price:    price,
		Quantity: quantity,
		AddedAt:  s.now().UTC(),
	}
	if err := s.store.AppendPosition(ctx, userID, p); err != nil {
		return err
	}
	s.logger.Debug().Str("user_id", userID).Str("ticker", ticker).Msg("Position added")
	return nil
}

// RemovePosition drops every lot of ticker from userID's portfolio.
// Removing a ticker that is not held is a no-op.
func (s *Service) RemovePosition(ctx context.Context, userID, ticker string) (int, error) {
	n, err := s.store.RemovePositions(ctx, userID, normalizeTicker(ticker))
	if err != nil {
		return 0, err
	}
	if n > 1 {
		s.logger.Debug().Str("user_id", userID).Str("ticker", ticker).Int("lots", n).Msg("Removed multiple lots")
	}
	return n, nil
}

// AddWatchlistEntry appends ticker with its thresholds to userID's watchlist.
// The range is checked before the ticker so a bad range never costs a probe.
func (s *Service) AddWatchlistEntry(ctx context.Context, userID, ticker string, low, high decimal.Decimal) error {
	ticker = normalizeTicker(ticker)
	// bounded amounts keep the comparison cheap
	if err := models.CheckAmount(low); err != nil {
		return fmt.Errorf("low: %w", err)
	}
	if err := models.CheckAmount(high); err != nil {
		return fmt.Errorf("high: %w", err)
	}
	if !low.LessThan(high) {
		return models.ErrInvalidRange
	}
	if err := s.checkTicker(ctx, ticker); err != nil {
		return err
	}

	e := models.WatchlistEntry{
		Ticker:  ticker,
		Low:     low,
		High:    high,
		AddedAt: s.now().UTC(),
	}
	if err := s.store.AppendWatchlistEntry(ctx, userID, e); err != nil {
		return err
	}
	s.logger.Debug().Str("user_id", userID).Str("ticker", ticker).Msg("Watchlist entry added")
	return nil
}

// RemoveWatchlistEntry drops every watchlist entry for ticker.
func (s *Service) RemoveWatchlistEntry(ctx context.Context, userID, ticker string) (int, error) {
	return s.store.RemoveWatchlistEntries(ctx, userID, normalizeTicker(ticker))
}

func (s *Service) latest(ctx context.Context, tickers []string) (time.Time, map[string]models.Quote) {
	return s.quotes.Today(), s.quotes.LatestQuotes(ctx, tickers)
}
