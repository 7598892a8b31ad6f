package paperbroker

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the cash ledger for one virtual account.
type Account struct {
	ID             string          `json:"account_id"`
	Balance        decimal.Decimal `json:"balance"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
	DayPnL         decimal.Decimal `json:"day_pnl"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Position is an open holding in one instrument.
type Position struct {
	AccountID      string          `json:"account_id"`
	Symbol         string          `json:"symbol"`
	InstrumentType string          `json:"instrument_type"`
	OptionType     string          `json:"option_type,omitempty"`
	StrikePrice    decimal.Decimal `json:"strike_price"`
	ExpiryDate     string          `json:"expiry_date,omitempty"`
	Quantity       int64           `json:"quantity"`
	AvgPrice       decimal.Decimal `json:"avg_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PnL            decimal.Decimal `json:"pnl"`
	PnLPercent     decimal.Decimal `json:"pnl_percent"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Order is a persisted order record.
type Order struct {
	ID             string          `json:"order_id"`
	AccountID      string          `json:"account_id"`
	Symbol         string          `json:"symbol"`
	InstrumentType string          `json:"instrument_type"`
	OptionType     string          `json:"option_type,omitempty"`
	StrikePrice    decimal.Decimal `json:"strike_price"`
	ExpiryDate     string          `json:"expiry_date,omitempty"`
	Type           string          `json:"order_type"`
	Side           string          `json:"side"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	TriggerPrice   decimal.Decimal `json:"trigger_price"`
	FilledQuantity int64           `json:"filled_quantity"`
	AvgFilledPrice decimal.Decimal `json:"avg_filled_price"`
	Status         string          `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	OrderTime      time.Time       `json:"order_time"`
	ExecutionTime  time.Time       `json:"execution_time"`
}

// Trade is one fill record.
type Trade struct {
	ID             int64           `json:"id"`
	OrderID        string          `json:"order_id"`
	AccountID      string          `json:"account_id"`
	Symbol         string          `json:"symbol"`
	InstrumentType string          `json:"instrument_type"`
	Side           string          `json:"side"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	TradeValue     decimal.Decimal `json:"trade_value"`
	Brokerage      decimal.Decimal `json:"brokerage"`
	NetValue       decimal.Decimal `json:"net_value"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	TradeTime      time.Time       `json:"trade_time"`
}

// Portfolio is the account summary with open positions.
type Portfolio struct {
	Account        Account         `json:"account"`
	Positions      []Position      `json:"positions"`
	PositionsValue decimal.Decimal `json:"positions_value"`
	TotalValue     decimal.Decimal `json:"total_value"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
}

// Quote is a point-in-time price with daily change.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PrevClose     decimal.Decimal `json:"prev_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	AsOf          time.Time       `json:"as_of"`
}

// WatchlistItem is a watchlist entry, with a quote when one is available.
type WatchlistItem struct {
	Symbol         string    `json:"symbol"`
	InstrumentType string    `json:"instrument_type"`
	AddedAt        time.Time `json:"added_at"`
	Quote          *Quote    `json:"quote,omitempty"`
}

// OrderRequest describes an order to place. Symbol, InstrumentType, Type,
// Side, and Quantity are always required; Price is required for LIMIT and SL
// orders, TriggerPrice for SL and SL-M orders, and the option fields for
// OPTION instruments.
type OrderRequest struct {
	Symbol         string          `json:"symbol"`
	InstrumentType string          `json:"instrument_type"`
	OptionType     string          `json:"option_type,omitempty"`
	StrikePrice    decimal.Decimal `json:"strike_price"`
	ExpiryDate     string          `json:"expiry_date,omitempty"`
	Type           string          `json:"order_type"`
	Side           string          `json:"side"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	TriggerPrice   decimal.Decimal `json:"trigger_price"`
}

// PlaceResult reports the outcome of an order placement. Success false means
// the order was rejected; Message carries the reason.
type PlaceResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
	Order   *Order `json:"order,omitempty"`
}

// CancelResult reports the outcome of an order cancellation.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   *Order `json:"order,omitempty"`
}

// SymbolStats aggregates trades for one symbol.
type SymbolStats struct {
	Symbol      string          `json:"symbol"`
	Trades      int             `json:"trades"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Fees        decimal.Decimal `json:"fees"`
	Turnover    decimal.Decimal `json:"turnover"`
}

// Stats summarizes an account's trade history.
type Stats struct {
	TotalTrades   int             `json:"total_trades"`
	BuyTrades     int             `json:"buy_trades"`
	SellTrades    int             `json:"sell_trades"`
	UniqueSymbols int             `json:"unique_symbols"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	WinRate       decimal.Decimal `json:"win_rate"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	TotalFees     decimal.Decimal `json:"total_fees"`
	Turnover      decimal.Decimal `json:"turnover"`
	BySymbol      []SymbolStats   `json:"by_symbol"`
}
