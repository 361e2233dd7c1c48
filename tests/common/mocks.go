package common

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/models"
)

// MockMarketDataClient implements interfaces.MarketDataClient for testing.
// Tickers present in Prices are known symbols; tickers in Errors fail.
type MockMarketDataClient struct {
	mu          sync.Mutex
	Prices      map[string]decimal.Decimal
	Errors      map[string]error
	SearchErr   error
	GetEODCalls int
	SearchCalls int
}

// NewMockMarketDataClient creates a mock that knows the given ticker prices.
func NewMockMarketDataClient(prices map[string]float64) *MockMarketDataClient {
	m := &MockMarketDataClient{
		Prices: make(map[string]decimal.Decimal),
		Errors: make(map[string]error),
	}
	for t, p := range prices {
		m.Prices[strings.ToUpper(t)] = decimal.NewFromFloat(p)
	}
	return m
}

func (m *MockMarketDataClient) GetEOD(_ context.Context, ticker string, from, to time.Time) ([]models.EODBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetEODCalls++

	key := strings.ToUpper(ticker)
	if err, ok := m.Errors[key]; ok {
		return nil, err
	}
	price, ok := m.Prices[key]
	if !ok {
		return nil, nil
	}
	return []models.EODBar{{Date: to, Open: price, High: price, Low: price, Close: price, AdjustedClose: price, Volume: 1000}}, nil
}

func (m *MockMarketDataClient) Search(_ context.Context, query string) ([]models.SymbolMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls++

	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	code := strings.ToUpper(query)
	if _, ok := m.Prices[code]; ok {
		return []models.SymbolMatch{{Code: code, Exchange: "US", Name: code + " Inc"}}, nil
	}
	return nil, nil
}

// Fail makes every later GetEOD for ticker return err. Safe to call while
// a server is using the mock.
func (m *MockMarketDataClient) Fail(ticker string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[strings.ToUpper(ticker)] = err
}

// Calls returns the number of provider calls made so far.
func (m *MockMarketDataClient) Calls() (eod, search int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetEODCalls, m.SearchCalls
}

var _ interfaces.MarketDataClient = (*MockMarketDataClient)(nil)
