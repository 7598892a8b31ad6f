package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
)

// Compile-time interface check.
var _ TradeArchiver = (*TradeArchive)(nil)

// TradeArchive implements TradeArchiver using Parquet files on disk. The live
// SQLite database stays small; executed fills are exported here for long-term
// keeping and offline analysis.
type TradeArchive struct {
	DataDir string
}

// NewTradeArchive creates a new TradeArchive rooted at the given data directory.
func NewTradeArchive(dataDir string) *TradeArchive {
	return &TradeArchive{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record type (on-disk schema)
// ---------------------------------------------------------------------------

// tradeArchiveRecord is the Parquet schema for archived fills. Money fields
// are decimal strings so values survive the round trip unchanged.
type tradeArchiveRecord struct {
	ID             int64  `parquet:"id"`
	OrderID        string `parquet:"order_id"`
	AccountID      string `parquet:"account_id"`
	Symbol         string `parquet:"symbol"`
	InstrumentType string `parquet:"instrument_type"`
	OptionType     string `parquet:"option_type"`
	StrikePrice    string `parquet:"strike_price"`
	ExpiryDate     string `parquet:"expiry_date"`
	Side           string `parquet:"side"`
	Quantity       int64  `parquet:"quantity"`
	Price          string `parquet:"price"`
	TradeValue     string `parquet:"trade_value"`
	Brokerage      string `parquet:"brokerage"`
	NetValue       string `parquet:"net_value"`
	RealizedPnL    string `parquet:"realized_pnl"`
	TradeTime      int64  `parquet:"trade_time,timestamp(millisecond)"` // Unix ms
}

func toArchiveRecord(t domain.Trade) tradeArchiveRecord {
	return tradeArchiveRecord{
		ID:             t.ID,
		OrderID:        t.OrderID,
		AccountID:      t.AccountID,
		Symbol:         t.Symbol,
		InstrumentType: string(t.Type),
		OptionType:     string(t.OptionType),
		StrikePrice:    fmtDec(t.Strike),
		ExpiryDate:     t.Expiry,
		Side:           string(t.Side),
		Quantity:       t.Quantity,
		Price:          fmtDec(t.Price),
		TradeValue:     fmtDec(t.TradeValue),
		Brokerage:      fmtDec(t.Brokerage),
		NetValue:       fmtDec(t.NetValue),
		RealizedPnL:    fmtDec(t.RealizedPnL),
		TradeTime:      t.TradeTime.UnixMilli(),
	}
}

func fromArchiveRecord(r tradeArchiveRecord) (domain.Trade, error) {
	trade := domain.Trade{
		ID:        r.ID,
		OrderID:   r.OrderID,
		AccountID: r.AccountID,
		Instrument: domain.Instrument{
			Symbol:     r.Symbol,
			Type:       domain.InstrumentType(r.InstrumentType),
			OptionType: domain.OptionType(r.OptionType),
			Expiry:     r.ExpiryDate,
		},
		Side:      domain.OrderSide(r.Side),
		Quantity:  r.Quantity,
		TradeTime: time.UnixMilli(r.TradeTime).UTC(),
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"strike_price", r.StrikePrice, &trade.Strike},
		{"price", r.Price, &trade.Price},
		{"trade_value", r.TradeValue, &trade.TradeValue},
		{"brokerage", r.Brokerage, &trade.Brokerage},
		{"net_value", r.NetValue, &trade.NetValue},
		{"realized_pnl", r.RealizedPnL, &trade.RealizedPnL},
	} {
		d, err := parseDec(f.raw)
		if err != nil {
			return domain.Trade{}, fmt.Errorf("archived trade %d: bad %s: %w", r.ID, f.name, err)
		}
		*f.dst = d
	}
	return trade, nil
}

// ---------------------------------------------------------------------------
// TradeArchiver implementation
// ---------------------------------------------------------------------------

// ArchiveTrades writes trades to Parquet files organized by account and date.
// Each account+date combination produces a separate file at:
//
//	<DataDir>/trades/<ACCOUNT>/<YYYY-MM-DD>.parquet
//
// Existing records are merged in and deduplicated by trade id, so re-running
// an export over an overlapping range is safe.
func (a *TradeArchive) ArchiveTrades(_ context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	type key struct {
		account string
		date    string // YYYY-MM-DD
	}
	groups := make(map[key][]tradeArchiveRecord)
	for _, t := range trades {
		k := key{account: t.AccountID, date: t.TradeTime.UTC().Format("2006-01-02")}
		groups[k] = append(groups[k], toArchiveRecord(t))
	}

	for k, records := range groups {
		path := a.tradePath(k.account, k.date)

		existing, _ := readParquetFile[tradeArchiveRecord](path)
		merged := mergeArchiveRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("archiving trades for %s/%s: %w", k.account, k.date, err)
		}
	}
	return nil
}

// ReadArchivedTrades reads archived trades for the account whose trade time
// falls within [start, end], oldest first.
func (a *TradeArchive) ReadArchivedTrades(_ context.Context, accountID string, start, end time.Time) ([]domain.Trade, error) {
	var trades []domain.Trade
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end); d = d.AddDate(0, 0, 1) {
		path := a.tradePath(accountID, d.Format("2006-01-02"))
		records, err := readParquetFile[tradeArchiveRecord](path)
		if err != nil {
			// No file for this day.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.TradeTime)
			if (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end)) {
				trade, err := fromArchiveRecord(r)
				if err != nil {
					return nil, err
				}
				trades = append(trades, trade)
			}
		}
	}
	return trades, nil
}

// ListArchivedAccounts lists all accounts that have archived trades.
func (a *TradeArchive) ListArchivedAccounts(_ context.Context) ([]string, error) {
	dir := filepath.Join(a.DataDir, "trades")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var accounts []string
	for _, e := range entries {
		if e.IsDir() {
			accounts = append(accounts, e.Name())
		}
	}
	sort.Strings(accounts)
	return accounts, nil
}

// ---------------------------------------------------------------------------
// Path and file helpers
// ---------------------------------------------------------------------------

// tradePath returns the filesystem path for one day of archived trades.
// Layout: <dataDir>/trades/<ACCOUNT>/<YYYY-MM-DD>.parquet
func (a *TradeArchive) tradePath(accountID, date string) string {
	return filepath.Join(a.DataDir, "trades", strings.ToUpper(accountID), date+".parquet")
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeArchiveRecords deduplicates records by trade id, preferring incoming
// records over existing ones. Results are sorted by trade time, then id.
func mergeArchiveRecords(existing, incoming []tradeArchiveRecord) []tradeArchiveRecord {
	seen := make(map[int64]tradeArchiveRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.ID] = r
	}
	for _, r := range incoming {
		seen[r.ID] = r
	}

	merged := make([]tradeArchiveRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].TradeTime != merged[j].TradeTime {
			return merged[i].TradeTime < merged[j].TradeTime
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
