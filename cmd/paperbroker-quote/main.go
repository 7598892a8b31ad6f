package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"paperbroker/internal/config"
	"paperbroker/internal/quote"
)

// Looks up quotes directly from the configured price source, without going
// through the server. Handy for checking market-data credentials.
func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: paperbroker-quote SYMBOL [SYMBOL...]")
		os.Exit(1)
	}

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

	var src quote.Source
	if cfg.Quotes.Provider == "static" {
		src = quote.NewStaticSource(cfg.Quotes.Static)
	} else {
		src = quote.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
			cfg.Quotes.RateLimitPerMin, cfg.Quotes.MaxRetries)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Quotes.TimeoutSec)*time.Second)
	defer cancel()

	exit := 0
	for _, arg := range flag.Args() {
		symbol := strings.ToUpper(arg)
		q, err := src.Quote(ctx, symbol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%-8s %v\n", symbol, err)
			exit = 1
			continue
		}
		line := fmt.Sprintf("%-8s %10s", q.Symbol, q.Price.StringFixed(2))
		if q.PrevClose.IsPositive() {
			change := q.Change.StringFixed(2)
			if q.Change.IsPositive() {
				change = "+" + change
			}
			line += fmt.Sprintf("  %s (%s%%)", change, q.ChangePercent.StringFixed(2))
		}
		fmt.Println(line)
	}
	os.Exit(exit)
}
