package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"paperbroker/internal/store"
)

// Exports executed trades from the live SQLite database into the Parquet
// archive, one file per account per day. Safe to re-run: already-archived
// trades are skipped.
func main() {
	dbPath := flag.String("db", "paperbroker.db", "SQLite database path")
	dataDir := flag.String("data", "data", "archive data directory")
	account := flag.String("account", "", "account to export (default: all)")
	flag.Parse()

	st, err := store.NewSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	archive := store.NewTradeArchive(*dataDir)
	ctx := context.Background()

	accounts := []string{*account}
	if *account == "" {
		accounts, err = st.ListAccounts(ctx)
		if err != nil {
			log.Fatalf("listing accounts: %v", err)
		}
	}

	total := 0
	for _, id := range accounts {
		trades, err := st.ListTrades(ctx, id, 0)
		if err != nil {
			log.Fatalf("reading trades for %s: %v", id, err)
		}
		if len(trades) == 0 {
			continue
		}
		if err := archive.ArchiveTrades(ctx, trades); err != nil {
			log.Fatalf("archiving trades for %s: %v", id, err)
		}
		fmt.Printf("  %-12s %6d trades\n", id, len(trades))
		total += len(trades)
	}
	fmt.Printf("archived %d trades to %s\n", total, *dataDir)
}
