package position

import (
	"context"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/stockstash/internal/models"
)

// NotAvailable is shown in place of a price the provider could not supply.
const NotAvailable = "n/a"

// Signal classifies a watched price against its thresholds.
type Signal string

const (
	SignalBelowLow  Signal = "below_low"
	SignalAboveHigh Signal = "above_high"
	SignalInRange   Signal = "in_range"
	SignalUnknown   Signal = "unknown"
)

// PortfolioRow is one lot joined with its latest quote.
type PortfolioRow struct {
	Ticker       string          `json:"ticker"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int64           `json:"quantity"`
	Cost         decimal.Decimal `json:"cost"`
	Available    bool            `json:"available"`
	Current      decimal.Decimal `json:"current"`
	QuoteDate    time.Time       `json:"quote_date,omitempty"`
	MarketValue  decimal.Decimal `json:"market_value"`
	Gain         decimal.Decimal `json:"gain"`
	Error        string          `json:"error,omitempty"`
	CurrentLabel string          `json:"current_label"`
	ValueLabel   string          `json:"value_label"`
	GainLabel    string          `json:"gain_label"`
	AddedAt      time.Time       `json:"added_at"`
}

// PortfolioView is a user's portfolio valued at AsOf.
// Totals only include rows with an available quote.
type PortfolioView struct {
	AsOf        time.Time       `json:"as_of"`
	Currency    string          `json:"currency"`
	Rows        []PortfolioRow  `json:"rows"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	TotalValue  decimal.Decimal `json:"total_value"`
	TotalGain   decimal.Decimal `json:"total_gain"`
	Unavailable int             `json:"unavailable"`
	CostLabel   string          `json:"cost_label"`
	ValueLabel  string          `json:"value_label"`
	GainLabel   string          `json:"gain_label"`
}

// WatchlistRow is one watchlist entry joined with its latest quote.
type WatchlistRow struct {
	Ticker       string          `json:"ticker"`
	Low          decimal.Decimal `json:"low"`
	High         decimal.Decimal `json:"high"`
	Available    bool            `json:"available"`
	Current      decimal.Decimal `json:"current"`
	QuoteDate    time.Time       `json:"quote_date,omitempty"`
	Signal       Signal          `json:"signal"`
	Error        string          `json:"error,omitempty"`
	CurrentLabel string          `json:"current_label"`
	AddedAt      time.Time       `json:"added_at"`
}

// WatchlistView is a user's watchlist priced at AsOf.
type WatchlistView struct {
	AsOf     time.Time      `json:"as_of"`
	Currency string         `json:"currency"`
	Rows     []WatchlistRow `json:"rows"`
}

// Format renders amount in the service currency, e.g. "$1,234.50".
func (s *Service) Format(amount decimal.Decimal) string {
	cur := money.GetCurrency(s.currency)
	fraction := int32(2)
	if cur != nil {
		fraction = int32(cur.Fraction)
	}
	minor := amount.Shift(fraction).Round(0).IntPart()
	return money.New(minor, s.currency).Display()
}

func tickersOf[T any](items []T, ticker func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, ticker(it))
	}
	return out
}

// Portfolio values every lot of user at the most recent business day.
func (s *Service) Portfolio(ctx context.Context, user *models.User) PortfolioView {
	asOf, quotes := s.latest(ctx, tickersOf(user.Portfolio, func(p models.Position) string { return p.Ticker }))

	view := PortfolioView{AsOf: asOf, Currency: s.currency, Rows: make([]PortfolioRow, 0, len(user.Portfolio))}
	for _, p := range user.Portfolio {
		row := PortfolioRow{
			Ticker:       p.Ticker,
			Price:        p.Price,
			Quantity:     p.Quantity,
			Cost:         p.Cost(),
			AddedAt:      p.AddedAt,
			CurrentLabel: NotAvailable,
			ValueLabel:   NotAvailable,
			GainLabel:    NotAvailable,
		}
		q := quotes[p.Ticker]
		if q.Available {
			row.Available = true
			row.Current = q.Price
			row.QuoteDate = q.Date
			row.MarketValue = q.Price.Mul(decimal.NewFromInt(p.Quantity))
			row.Gain = row.MarketValue.Sub(row.Cost)
			row.CurrentLabel = s.Format(row.Current)
			row.ValueLabel = s.Format(row.MarketValue)
			row.GainLabel = s.Format(row.Gain)

			view.TotalCost = view.TotalCost.Add(row.Cost)
			view.TotalValue = view.TotalValue.Add(row.MarketValue)
		} else {
			row.Error = q.Error
			view.Unavailable++
		}
		view.Rows = append(view.Rows, row)
	}
	view.TotalGain = view.TotalValue.Sub(view.TotalCost)
	view.CostLabel = s.Format(view.TotalCost)
	view.ValueLabel = s.Format(view.TotalValue)
	view.GainLabel = s.Format(view.TotalGain)
	return view
}

// Classify places price relative to the [low, high] band.
func Classify(price, low, high decimal.Decimal) Signal {
	switch {
	case price.LessThan(low):
		return SignalBelowLow
	case price.GreaterThan(high):
		return SignalAboveHigh
	default:
		return SignalInRange
	}
}

// Watchlist prices every entry of user at the most recent business day.
func (s *Service) Watchlist(ctx context.Context, user *models.User) WatchlistView {
	asOf, quotes := s.latest(ctx, tickersOf(user.Watchlist, func(e models.WatchlistEntry) string { return e.Ticker }))

	view := WatchlistView{AsOf: asOf, Currency: s.currency, Rows: make([]WatchlistRow, 0, len(user.Watchlist))}
	for _, e := range user.Watchlist {
		row := WatchlistRow{
			Ticker:       e.Ticker,
			Low:          e.Low,
			High:         e.High,
			AddedAt:      e.AddedAt,
			Signal:       SignalUnknown,
			CurrentLabel: NotAvailable,
		}
		if q := quotes[e.Ticker]; q.Available {
			row.Available = true
			row.Current = q.Price
			row.QuoteDate = q.Date
			row.Signal = Classify(q.Price, e.Low, e.High)
			row.CurrentLabel = s.Format(q.Price)
		} else {
			row.Error = q.Error
		}
		view.Rows = append(view.Rows, row)
	}
	return view
}
