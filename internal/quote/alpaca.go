package quote

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
	"paperbroker/internal/util"
)

// Compile-time interface check.
var _ Source = (*AlpacaSource)(nil)

// retryBaseDelay is the initial backoff between market-data retries.
const retryBaseDelay = 250 * time.Millisecond

// AlpacaSource fetches prices from the Alpaca market-data API. Requests are
// rate limited and retried with exponential backoff; both honour the caller's
// context.
type AlpacaSource struct {
	client     *marketdata.Client
	limiter    *util.RateLimiter
	maxRetries int
	log        *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource with the given credentials.
// dataURL overrides the default market-data endpoint when non-empty.
func NewAlpacaSource(apiKey, apiSecret, dataURL string, rateLimitPerMin, maxRetries int) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &AlpacaSource{
		client:     marketdata.NewClient(opts),
		limiter:    util.NewRateLimiter(rateLimitPerMin),
		maxRetries: maxRetries,
		log:        slog.Default().With("source", "alpaca"),
	}
}

// Name returns "alpaca".
func (s *AlpacaSource) Name() string { return "alpaca" }

// LastPrice returns the latest trade price for symbol.
func (s *AlpacaSource) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := util.Retry(ctx, s.maxRetries, retryBaseDelay, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		trade, err := s.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
		if err != nil {
			return fmt.Errorf("GetLatestTrade %s: %w", symbol, err)
		}
		if trade == nil || trade.Price <= 0 {
			return fmt.Errorf("%s: empty trade: %w", symbol, domain.ErrPriceUnavailable)
		}
		price = decimal.NewFromFloat(trade.Price)
		return nil
	})
	if err != nil {
		s.log.Debug("price lookup failed", "symbol", symbol, "err", err)
		return decimal.Decimal{}, fmt.Errorf("%s: %w: %v", symbol, domain.ErrPriceUnavailable, err)
	}
	return price, nil
}

// Quote returns the latest trade price along with the change against the
// previous daily close.
func (s *AlpacaSource) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	var snap *marketdata.Snapshot
	err := util.Retry(ctx, s.maxRetries, retryBaseDelay, func(ctx context.Context) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		snap, err = s.client.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
		if err != nil {
			return fmt.Errorf("GetSnapshot %s: %w", symbol, err)
		}
		if snap == nil || snap.LatestTrade == nil || snap.LatestTrade.Price <= 0 {
			return fmt.Errorf("%s: empty snapshot: %w", symbol, domain.ErrPriceUnavailable)
		}
		return nil
	})
	if err != nil {
		s.log.Debug("quote lookup failed", "symbol", symbol, "err", err)
		return domain.Quote{}, fmt.Errorf("%s: %w: %v", symbol, domain.ErrPriceUnavailable, err)
	}

	q := domain.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(snap.LatestTrade.Price),
		AsOf:   snap.LatestTrade.Timestamp,
	}
	if snap.PrevDailyBar != nil && snap.PrevDailyBar.Close > 0 {
		q.PrevClose = decimal.NewFromFloat(snap.PrevDailyBar.Close)
		q.Change = q.Price.Sub(q.PrevClose)
		q.ChangePercent = q.Change.Div(q.PrevClose).Mul(decimal.NewFromInt(100))
	}
	return q, nil
}
