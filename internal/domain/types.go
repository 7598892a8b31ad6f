// Package domain defines the core types shared across the virtual brokerage:
// accounts, instruments, orders, positions, trades, and the error taxonomy.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentType distinguishes tradable security classes.
type InstrumentType string

const (
	InstrumentEquity InstrumentType = "EQUITY"
	InstrumentOption InstrumentType = "OPTION"
)

// OptionType is the option contract direction, set only for options.
type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

// OrderType selects how an order is priced and triggered.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStopLimit OrderType = "SL"
	OrderTypeStop      OrderType = "SL-M"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusExecuted  OrderStatus = "EXECUTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// PositionStatus tracks whether a position still holds quantity.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// ---------------------------------------------------------------------------
// Instrument
// ---------------------------------------------------------------------------

// Instrument identifies a tradable security. For options the OptionType,
// Strike, and Expiry fields narrow the contract; for equities they are zero.
type Instrument struct {
	Symbol     string          `json:"symbol"`
	Type       InstrumentType  `json:"instrument_type"`
	OptionType OptionType      `json:"option_type,omitempty"`
	Strike     decimal.Decimal `json:"strike_price"`
	Expiry     string          `json:"expiry_date,omitempty"`
}

// IsOption reports whether the instrument is an option contract.
func (in Instrument) IsOption() bool { return in.Type == InstrumentOption }

// Key returns the canonical identity string used to match positions.
func (in Instrument) Key() string {
	if !in.IsOption() {
		return fmt.Sprintf("%s|%s", in.Symbol, in.Type)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s", in.Symbol, in.Type, in.OptionType, in.Strike.String(), in.Expiry)
}

// Describe returns a human-readable form, e.g. "NIFTY 18000 CE 2026-09-25".
func (in Instrument) Describe() string {
	if !in.IsOption() {
		return in.Symbol
	}
	return fmt.Sprintf("%s %s %s %s", in.Symbol, in.Strike.String(), in.OptionType, in.Expiry)
}

// ---------------------------------------------------------------------------
// Account
// ---------------------------------------------------------------------------

// Account is the cash ledger for one virtual account. Balance holds free
// cash; InvestedAmount tracks the running sum of executed trade values
// (increased by buys, reduced by sells); TotalPnL accumulates realized P&L.
type Account struct {
	ID             string          `json:"account_id"`
	Balance        decimal.Decimal `json:"balance"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	TotalPnL       decimal.Decimal `json:"total_pnl"`
	DayPnL         decimal.Decimal `json:"day_pnl"`
	DayDate        string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ---------------------------------------------------------------------------
// Position
// ---------------------------------------------------------------------------

// Position is an open or closed holding in one instrument. AvgPrice is the
// weighted-average entry price; it changes only when buys increase the
// quantity. PnL fields are the latest mark-to-market values.
type Position struct {
	AccountID string `json:"account_id"`
	Instrument
	Quantity     int64           `json:"quantity"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   decimal.Decimal `json:"pnl_percent"`
	Status       PositionStatus  `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MarketValue returns quantity times the best known price, preferring the
// refreshed CurrentPrice and falling back to AvgPrice before any refresh.
func (p Position) MarketValue() decimal.Decimal {
	price := p.CurrentPrice
	if price.IsZero() {
		price = p.AvgPrice
	}
	return price.Mul(decimal.NewFromInt(p.Quantity))
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// Order is a persisted order record. ID is a short client-facing reference
// assigned at placement. Price is the limit price for LIMIT and SL orders;
// TriggerPrice arms SL and SL-M orders.
type Order struct {
	ID        string `json:"order_id"`
	AccountID string `json:"account_id"`
	Instrument
	Type           OrderType       `json:"order_type"`
	Side           OrderSide       `json:"side"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	TriggerPrice   decimal.Decimal `json:"trigger_price"`
	FilledQuantity int64           `json:"filled_quantity"`
	AvgFilledPrice decimal.Decimal `json:"avg_filled_price"`
	Status         OrderStatus     `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	OrderTime      time.Time       `json:"order_time"`
	ExecutionTime  time.Time       `json:"execution_time"`
}

// ---------------------------------------------------------------------------
// Trade
// ---------------------------------------------------------------------------

// Trade is an immutable fill record: one row per successful execution.
// NetValue is TradeValue plus brokerage for buys and minus brokerage for
// sells. RealizedPnL is non-zero only on position-reducing sells.
type Trade struct {
	ID        int64  `json:"id"`
	OrderID   string `json:"order_id"`
	AccountID string `json:"account_id"`
	Instrument
	Side        OrderSide       `json:"side"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TradeValue  decimal.Decimal `json:"trade_value"`
	Brokerage   decimal.Decimal `json:"brokerage"`
	NetValue    decimal.Decimal `json:"net_value"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	TradeTime   time.Time       `json:"trade_time"`
}

// ---------------------------------------------------------------------------
// Watchlist
// ---------------------------------------------------------------------------

// WatchlistEntry pins a symbol to an account's watchlist. Entries are unique
// per (account, symbol).
type WatchlistEntry struct {
	ID             int64          `json:"id"`
	AccountID      string         `json:"account_id"`
	Symbol         string         `json:"symbol"`
	InstrumentType InstrumentType `json:"instrument_type"`
	AddedAt        time.Time      `json:"added_at"`
}

// ---------------------------------------------------------------------------
// Quote
// ---------------------------------------------------------------------------

// Quote is a point-in-time price observation enriched with daily change.
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PrevClose     decimal.Decimal `json:"prev_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	AsOf          time.Time       `json:"as_of"`
}

// ---------------------------------------------------------------------------
// OrderSpec
// ---------------------------------------------------------------------------

// OrderSpec describes an order to be placed. Option fields are required when
// InstrumentType is OPTION and ignored for equities. Price is required for
// LIMIT and SL orders, TriggerPrice for SL and SL-M orders.
type OrderSpec struct {
	Symbol         string          `json:"symbol"`
	InstrumentType InstrumentType  `json:"instrument_type"`
	OptionType     OptionType      `json:"option_type,omitempty"`
	Strike         decimal.Decimal `json:"strike_price"`
	Expiry         string          `json:"expiry_date,omitempty"`
	Type           OrderType       `json:"order_type"`
	Side           OrderSide       `json:"side"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	TriggerPrice   decimal.Decimal `json:"trigger_price"`
}

// Instrument returns the instrument identity described by the spec.
func (s OrderSpec) Instrument() Instrument {
	in := Instrument{Symbol: s.Symbol, Type: s.InstrumentType}
	if s.InstrumentType == InstrumentOption {
		in.OptionType = s.OptionType
		in.Strike = s.Strike
		in.Expiry = s.Expiry
	}
	return in
}

// Validate checks the spec for structural problems before any state is
// touched. It returns a *ValidationError describing the first failure.
func (s OrderSpec) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	switch s.InstrumentType {
	case InstrumentEquity, InstrumentOption:
	default:
		return &ValidationError{Field: "instrument_type", Reason: fmt.Sprintf("unknown type %q", s.InstrumentType)}
	}
	switch s.Type {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopLimit, OrderTypeStop:
	default:
		return &ValidationError{Field: "order_type", Reason: fmt.Sprintf("unknown type %q", s.Type)}
	}
	switch s.Side {
	case OrderSideBuy, OrderSideSell:
	default:
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("unknown side %q", s.Side)}
	}
	if s.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if s.InstrumentType == InstrumentOption {
		switch s.OptionType {
		case OptionCall, OptionPut:
		default:
			return &ValidationError{Field: "option_type", Reason: "options require CE or PE"}
		}
		if !s.Strike.IsPositive() {
			return &ValidationError{Field: "strike_price", Reason: "options require a positive strike"}
		}
		if _, err := time.Parse("2006-01-02", s.Expiry); err != nil {
			return &ValidationError{Field: "expiry_date", Reason: "options require an expiry in YYYY-MM-DD form"}
		}
	}
	if s.Type == OrderTypeLimit || s.Type == OrderTypeStopLimit {
		if !s.Price.IsPositive() {
			return &ValidationError{Field: "price", Reason: fmt.Sprintf("%s orders require a positive price", s.Type)}
		}
	}
	if s.Type == OrderTypeStopLimit || s.Type == OrderTypeStop {
		if !s.TriggerPrice.IsPositive() {
			return &ValidationError{Field: "trigger_price", Reason: fmt.Sprintf("%s orders require a positive trigger price", s.Type)}
		}
	}
	return nil
}
