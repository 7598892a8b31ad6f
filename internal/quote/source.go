// Package quote provides market price lookup for the order engine and the
// API layer: the Source interface, an Alpaca-backed implementation, a static
// in-memory implementation, and a TTL cache decorator.
package quote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
)

// Source produces market prices for symbols.
type Source interface {
	// Name returns the source identifier (e.g. "alpaca", "static").
	Name() string

	// LastPrice returns the latest trade price for symbol. Failures wrap
	// domain.ErrPriceUnavailable.
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// Quote returns the latest price together with daily change fields.
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
}

// ---------------------------------------------------------------------------
// StaticSource
// ---------------------------------------------------------------------------

// Compile-time interface check.
var _ Source = (*StaticSource)(nil)

// StaticSource serves fixed prices from memory. It backs local runs without
// market-data credentials and the test suite.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	prev   map[string]decimal.Decimal
}

// NewStaticSource creates a StaticSource preloaded with the given prices.
func NewStaticSource(prices map[string]float64) *StaticSource {
	s := &StaticSource{
		prices: make(map[string]decimal.Decimal, len(prices)),
		prev:   make(map[string]decimal.Decimal),
	}
	for sym, p := range prices {
		s.prices[sym] = decimal.NewFromFloat(p)
	}
	return s
}

// Name returns "static".
func (s *StaticSource) Name() string { return "static" }

// SetPrice sets the current price for symbol, remembering the previous one
// so Quote can report a change.
func (s *StaticSource) SetPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.prices[symbol]; ok {
		s.prev[symbol] = old
	}
	s.prices[symbol] = price
}

// Remove forgets the symbol entirely; later lookups fail.
func (s *StaticSource) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prices, symbol)
	delete(s.prev, symbol)
}

// LastPrice returns the stored price for symbol.
func (s *StaticSource) LastPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[symbol]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", symbol, domain.ErrPriceUnavailable)
	}
	return price, nil
}

// Quote returns the stored price with the change against the previously
// stored one.
func (s *StaticSource) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("%s: %w", symbol, domain.ErrPriceUnavailable)
	}
	q := domain.Quote{
		Symbol: symbol,
		Price:  price,
		AsOf:   time.Now().UTC(),
	}
	if prev, ok := s.prev[symbol]; ok && prev.IsPositive() {
		q.PrevClose = prev
		q.Change = price.Sub(prev)
		q.ChangePercent = q.Change.Div(prev).Mul(decimal.NewFromInt(100))
	}
	return q, nil
}
