// Package report derives trading statistics from executed trade history.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
)

// Stats summarizes an account's trade history. Win/loss counting looks only
// at realizing trades (sells): a buy opens exposure but decides nothing.
type Stats struct {
	TotalTrades   int             `json:"total_trades"`
	BuyTrades     int             `json:"buy_trades"`
	SellTrades    int             `json:"sell_trades"`
	UniqueSymbols int             `json:"unique_symbols"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       decimal.Decimal `json:"win_rate"` // percent of sells
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	Turnover      decimal.Decimal `json:"turnover"`
	BySymbol      []SymbolStats   `json:"by_symbol"`
}

// SymbolStats is the per-symbol slice of the history.
type SymbolStats struct {
	Symbol      string          `json:"symbol"`
	Trades      int             `json:"trades"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Fees        decimal.Decimal `json:"fees"`
	Turnover    decimal.Decimal `json:"turnover"`
}

// Compute derives Stats from the given trades. Order does not matter; the
// per-symbol breakdown comes back sorted by symbol.
func Compute(trades []domain.Trade) *Stats {
	stats := &Stats{
		WinRate:     decimal.Zero,
		RealizedPnL: decimal.Zero,
		TotalFees:   decimal.Zero,
		Turnover:    decimal.Zero,
	}

	perSymbol := make(map[string]*SymbolStats)
	for _, tr := range trades {
		stats.TotalTrades++
		stats.TotalFees = stats.TotalFees.Add(tr.Brokerage)
		stats.Turnover = stats.Turnover.Add(tr.TradeValue)

		sym := perSymbol[tr.Symbol]
		if sym == nil {
			sym = &SymbolStats{
				Symbol:      tr.Symbol,
				RealizedPnL: decimal.Zero,
				Fees:        decimal.Zero,
				Turnover:    decimal.Zero,
			}
			perSymbol[tr.Symbol] = sym
		}
		sym.Trades++
		sym.Fees = sym.Fees.Add(tr.Brokerage)
		sym.Turnover = sym.Turnover.Add(tr.TradeValue)

		switch tr.Side {
		case domain.OrderSideBuy:
			stats.BuyTrades++
		case domain.OrderSideSell:
			stats.SellTrades++
			stats.RealizedPnL = stats.RealizedPnL.Add(tr.RealizedPnL)
			sym.RealizedPnL = sym.RealizedPnL.Add(tr.RealizedPnL)
			if tr.RealizedPnL.IsPositive() {
				stats.WinningTrades++
			} else if tr.RealizedPnL.IsNegative() {
				stats.LosingTrades++
			}
		}
	}

	stats.UniqueSymbols = len(perSymbol)
	if stats.SellTrades > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WinningTrades)).
			Div(decimal.NewFromInt(int64(stats.SellTrades))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	stats.BySymbol = make([]SymbolStats, 0, len(perSymbol))
	for _, sym := range perSymbol {
		stats.BySymbol = append(stats.BySymbol, *sym)
	}
	sort.Slice(stats.BySymbol, func(i, j int) bool {
		return stats.BySymbol[i].Symbol < stats.BySymbol[j].Symbol
	})
	return stats
}
