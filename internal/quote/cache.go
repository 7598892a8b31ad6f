package quote

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
)

// Compile-time interface check.
var _ Source = (*Cached)(nil)

// Cached wraps a Source with a per-symbol TTL cache so the refresh sweep and
// the API layer do not hammer the upstream for the same symbol. Only
// successful lookups are cached; failures always fall through.
type Cached struct {
	src Source
	ttl time.Duration

	mu     sync.RWMutex
	prices map[string]cachedPrice
	quotes map[string]cachedQuote
}

type cachedPrice struct {
	price decimal.Decimal
	at    time.Time
}

type cachedQuote struct {
	quote domain.Quote
	at    time.Time
}

// NewCached wraps src with a TTL cache. A non-positive ttl disables caching.
func NewCached(src Source, ttl time.Duration) *Cached {
	return &Cached{
		src:    src,
		ttl:    ttl,
		prices: make(map[string]cachedPrice),
		quotes: make(map[string]cachedQuote),
	}
}

// Name returns the wrapped source's identifier.
func (c *Cached) Name() string { return c.src.Name() }

// LastPrice returns a cached price when fresh, otherwise asks the wrapped
// source and caches the answer.
func (c *Cached) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		entry, ok := c.prices[symbol]
		c.mu.RUnlock()
		if ok && time.Since(entry.at) < c.ttl {
			return entry.price, nil
		}
	}

	price, err := c.src.LastPrice(ctx, symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if c.ttl > 0 {
		c.mu.Lock()
		c.prices[symbol] = cachedPrice{price: price, at: time.Now()}
		c.mu.Unlock()
	}
	return price, nil
}

// Quote returns a cached quote when fresh, otherwise asks the wrapped source
// and caches the answer.
func (c *Cached) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		entry, ok := c.quotes[symbol]
		c.mu.RUnlock()
		if ok && time.Since(entry.at) < c.ttl {
			return entry.quote, nil
		}
	}

	q, err := c.src.Quote(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	if c.ttl > 0 {
		c.mu.Lock()
		c.quotes[symbol] = cachedQuote{quote: q, at: time.Now()}
		c.mu.Unlock()
	}
	return q, nil
}
