package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/models"
	tcommon "github.com/bobmcallan/stockstash/tests/common"
)

func newTestService(client *tcommon.MockMarketDataClient, holidays ...time.Time) *Service {
	return NewService(client, holidays, common.NewSilentLogger())
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// --- MostRecentBusinessDay ---

func TestMostRecentBusinessDay_Weekdays(t *testing.T) {
	svc := newTestService(tcommon.NewMockMarketDataClient(nil))

	tests := []struct {
		name string
		ref  time.Time
		want time.Time
	}{
		{"saturday steps back to friday", day(2025, 3, 8), day(2025, 3, 7)},
		{"sunday steps back to friday", day(2025, 3, 9), day(2025, 3, 7)},
		{"monday is itself", day(2025, 3, 10), day(2025, 3, 10)},
		{"wednesday afternoon drops time", time.Date(2025, 3, 12, 15, 30, 0, 0, time.UTC), day(2025, 3, 12)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.MostRecentBusinessDay(tt.ref))
		})
	}
}

func TestMostRecentBusinessDay_Holidays(t *testing.T) {
	// Good Friday 2025 is April 18.
	svc := newTestService(tcommon.NewMockMarketDataClient(nil), day(2025, 4, 18))

	assert.Equal(t, day(2025, 4, 17), svc.MostRecentBusinessDay(day(2025, 4, 19)))
	assert.Equal(t, day(2025, 4, 17), svc.MostRecentBusinessDay(day(2025, 4, 18)))
	assert.Equal(t, day(2025, 4, 21), svc.MostRecentBusinessDay(day(2025, 4, 21)))
}

func TestMostRecentBusinessDay_KeepsLocation(t *testing.T) {
	svc := newTestService(tcommon.NewMockMarketDataClient(nil))
	ny := time.FixedZone("EST", -5*60*60)

	got := svc.MostRecentBusinessDay(time.Date(2025, 3, 8, 23, 0, 0, 0, ny))
	assert.Equal(t, time.Date(2025, 3, 7, 0, 0, 0, 0, ny), got)
}

// --- GetQuotes ---

func TestGetQuotes_EmptyMakesNoCall(t *testing.T) {
	client := tcommon.NewMockMarketDataClient(map[string]float64{"AAPL": 150})
	svc := newTestService(client)

	d := day(2025, 3, 7)
	got := svc.GetQuotes(context.Background(), nil, d, d)

	assert.Empty(t, got)
	eod, search := client.Calls()
	assert.Zero(t, eod)
	assert.Zero(t, search)
}

func TestGetQuotes_DedupesAndFlagsFailures(t *testing.T) {
	client := tcommon.NewMockMarketDataClient(map[string]float64{"AAPL": 150.5})
	client.Errors["MSFT"] = errors.New("rate limited")
	svc := newTestService(client)

	d := day(2025, 3, 7)
	got := svc.GetQuotes(context.Background(), []string{"AAPL", "MSFT", "AAPL", " ", "ZZZZ"}, d, d)

	require.Len(t, got, 3)
	eod, _ := client.Calls()
	assert.Equal(t, 3, eod, "duplicate tickers are fetched once")

	aapl := got["AAPL"]
	assert.True(t, aapl.Available)
	assert.True(t, aapl.Price.Equal(decimal.NewFromFloat(150.5)))
	assert.Equal(t, d, aapl.Date)

	msft := got["MSFT"]
	assert.False(t, msft.Available)
	assert.Contains(t, msft.Error, "rate limited")
	assert.Contains(t, msft.Error, models.ErrQuoteUnavailable.Error())

	zzzz := got["ZZZZ"]
	assert.False(t, zzzz.Available, "no bars in range is unavailable")
}

type seriesClient struct {
	*tcommon.MockMarketDataClient
	bars []models.EODBar
}

func (c *seriesClient) GetEOD(_ context.Context, _ string, _, _ time.Time) ([]models.EODBar, error) {
	return c.bars, nil
}

func TestGetQuotes_PicksLatestBarInRange(t *testing.T) {
	client := &seriesClient{
		MockMarketDataClient: tcommon.NewMockMarketDataClient(nil),
		bars: []models.EODBar{
			{Date: day(2025, 3, 6), Close: decimal.NewFromInt(10)},
			{Date: day(2025, 3, 10), Close: decimal.NewFromInt(99)}, // outside range
			{Date: day(2025, 3, 7), Close: decimal.NewFromInt(12)},
			{Date: day(2025, 3, 5), Close: decimal.NewFromInt(9)},
		},
	}
	svc := NewService(client, nil, common.NewSilentLogger())

	got := svc.GetQuotes(context.Background(), []string{"X"}, day(2025, 3, 1), day(2025, 3, 7))
	q := got["X"]
	require.True(t, q.Available)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, day(2025, 3, 7), q.Date)
	assert.Len(t, q.Series, 3)
}

func TestLatestQuotes_UsesMostRecentBusinessDay(t *testing.T) {
	client := tcommon.NewMockMarketDataClient(map[string]float64{"AAPL": 150})
	svc := newTestService(client)
	svc.SetClock(func() time.Time { return time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC) }) // Saturday

	got := svc.LatestQuotes(context.Background(), []string{"AAPL"})
	require.True(t, got["AAPL"].Available)
	assert.Equal(t, day(2025, 3, 7), got["AAPL"].Date)
}

// --- IsValidTicker ---

func TestIsValidTicker(t *testing.T) {
	client := tcommon.NewMockMarketDataClient(map[string]float64{"AAPL": 150})
	svc := newTestService(client)
	ctx := context.Background()

	assert.True(t, svc.IsValidTicker(ctx, "AAPL"))
	assert.True(t, svc.IsValidTicker(ctx, "aapl"))
	assert.True(t, svc.IsValidTicker(ctx, "AAPL.US"))
	assert.False(t, svc.IsValidTicker(ctx, "AAPL.AU"), "exchange suffix must match")
	assert.False(t, svc.IsValidTicker(ctx, "NOPE"))
	assert.False(t, svc.IsValidTicker(ctx, "  "))

	eod, _ := client.Calls()
	assert.Zero(t, eod, "probe is independent of price retrieval")
}

func TestIsValidTicker_ProviderErrorIsInvalid(t *testing.T) {
	client := tcommon.NewMockMarketDataClient(map[string]float64{"AAPL": 150})
	client.SearchErr = errors.New("boom")
	svc := newTestService(client)

	assert.False(t, svc.IsValidTicker(context.Background(), "AAPL"))
}

func TestIsValidTicker_MemoizedPerRequest(t *testing.T) {
	client := tcommon.NewMockMarketDataClient(map[string]float64{"AAPL": 150})
	svc := newTestService(client)

	ctx := WithTickerMemo(context.Background())
	for i := 0; i < 3; i++ {
		assert.True(t, svc.IsValidTicker(ctx, "AAPL"))
	}
	_, search := client.Calls()
	assert.Equal(t, 1, search)

	// A new request starts with an empty memo.
	assert.True(t, svc.IsValidTicker(WithTickerMemo(context.Background()), "AAPL"))
	_, search = client.Calls()
	assert.Equal(t, 2, search)

	// Without a memo every probe hits the provider.
	svc.IsValidTicker(context.Background(), "AAPL")
	svc.IsValidTicker(context.Background(), "AAPL")
	_, search = client.Calls()
	assert.Equal(t, 4, search)
}
