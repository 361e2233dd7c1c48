package quote

import (
	"context"
	"sync"
)

type memoKey struct{}

// tickerMemo caches ticker probe results for a single request.
type tickerMemo struct {
	mu      sync.Mutex
	results map[string]bool
}

// WithTickerMemo returns a context that memoizes IsValidTicker results.
// The memo dies with the context, so nothing is shared across requests.
func WithTickerMemo(ctx context.Context) context.Context {
	return context.WithValue(ctx, memoKey{}, &tickerMemo{results: make(map[string]bool)})
}

func memoFromContext(ctx context.Context) *tickerMemo {
	m, _ := ctx.Value(memoKey{}).(*tickerMemo)
	return m
}

func (m *tickerMemo) get(ticker string) (bool, bool) {
	if m == nil {
		return false, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.results[ticker]
	return v, ok
}

func (m *tickerMemo) set(ticker string, valid bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.results[ticker] = valid
	m.mu.Unlock()
}
