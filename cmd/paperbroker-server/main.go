package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/config"
	"paperbroker/internal/engine"
	"paperbroker/internal/httpapi"
	"paperbroker/internal/quote"
	"paperbroker/internal/store"
	"paperbroker/internal/util"
)

func main() {
	cfgPath := "config/paperbroker.yaml"
	if p := os.Getenv("PAPERBROKER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("loading config: %v", err)
		}
		cfg = config.Default()
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()
	logger.Info("store ready", "path", cfg.Storage.SQLitePath)

	src := buildSource(cfg)
	logger.Info("price source ready", "provider", src.Name())

	fees := engine.NewBrokerageCalculator(cfg.Brokerage.EquityRate, cfg.Brokerage.EquityCap, cfg.Brokerage.OptionFlat)
	risk := engine.NewRiskManager(cfg.Risk.MaxOpenPositions, cfg.Risk.MaxOrderPct)
	eng := engine.NewEngine(st, src, fees, risk, decimal.NewFromFloat(cfg.Account.InitialBalance), logger)

	// Create the default account up front so sweeps and list endpoints see it.
	if _, err := st.EnsureAccount(context.Background(), cfg.Account.DefaultID, decimal.NewFromFloat(cfg.Account.InitialBalance)); err != nil {
		log.Fatalf("creating default account: %v", err)
	}

	api := httpapi.NewServer(eng, st, src, cfg.Account.DefaultID, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go runSweeper(ctx, eng, st, time.Duration(cfg.Refresh.IntervalSec)*time.Second, logger)

	go func() {
		logger.Info("paperbroker server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// buildSource constructs the configured price source, wrapped in the TTL
// cache when one is configured.
func buildSource(cfg *config.Config) quote.Source {
	var src quote.Source
	if cfg.Quotes.Provider == "static" {
		src = quote.NewStaticSource(cfg.Quotes.Static)
	} else {
		src = quote.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
			cfg.Quotes.RateLimitPerMin, cfg.Quotes.MaxRetries)
	}
	if ttl := cfg.Quotes.CacheTTLSec; ttl > 0 {
		src = quote.NewCached(src, time.Duration(ttl)*time.Second)
	}
	return src
}

// runSweeper periodically evaluates pending order triggers and refreshes
// open-position marks for every account.
func runSweeper(ctx context.Context, eng *engine.Engine, st store.Store, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, eng, st, logger)
		}
	}
}

func sweep(ctx context.Context, eng *engine.Engine, st store.Store, logger *slog.Logger) {
	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		logger.Error("listing accounts for sweep", "error", err)
		return
	}
	for _, id := range accounts {
		trig, err := eng.ProcessPendingOrders(ctx, id)
		if err != nil {
			logger.Error("processing pending orders", "account", id, "error", err)
		} else if len(trig.Executed) > 0 || len(trig.Rejected) > 0 {
			logger.Info("pending orders processed", "account", id,
				"checked", trig.Checked, "executed", trig.Executed, "rejected", trig.Rejected)
		}

		rep, err := eng.RefreshPositions(ctx, id)
		if err != nil {
			logger.Error("refreshing positions", "account", id, "error", err)
		} else if rep.Updated > 0 {
			logger.Debug("positions refreshed", "account", id,
				"checked", rep.Checked, "updated", rep.Updated, "failures", len(rep.Failures))
		}
	}
}
