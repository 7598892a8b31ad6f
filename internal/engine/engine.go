// Package engine coordinates order placement, execution, and position
// bookkeeping for the virtual brokerage. It validates incoming orders,
// prices them against a quote source, applies the fee schedule and risk
// limits, and hands the resulting ledger mutation to the store as one
// atomic update.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
	"paperbroker/internal/ledger"
	"paperbroker/internal/quote"
	"paperbroker/internal/store"
)

// Engine orchestrates the order lifecycle: persist as PENDING, execute
// against the quote source and fee schedule, and commit the ledger effects
// atomically. A single mutex serializes executions and cancellations so that
// concurrent requests observe either the pre- or post-execution state.
type Engine struct {
	store  store.Store
	quotes quote.Source
	fees   *BrokerageCalculator
	risk   *RiskManager
	log    *slog.Logger

	initialBalance decimal.Decimal

	mu sync.Mutex
}

// NewEngine creates a new Engine wired with the given dependencies. Accounts
// are created on first use with initialBalance as their starting cash.
func NewEngine(
	st store.Store,
	quotes quote.Source,
	fees *BrokerageCalculator,
	risk *RiskManager,
	initialBalance decimal.Decimal,
	log *slog.Logger,
) *Engine {
	return &Engine{
		store:          st,
		quotes:         quotes,
		fees:           fees,
		risk:           risk,
		initialBalance: initialBalance,
		log:            log,
	}
}

// PlaceResult is the outcome of an order placement attempt. Success is false
// for business rejections; Message carries the reason either way. When an
// order row was recorded, OrderID and Order reference it.
type PlaceResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	OrderID string        `json:"order_id,omitempty"`
	Order   *domain.Order `json:"order,omitempty"`
}

// PlaceOrder runs the placement pipeline for one order: validate the spec,
// persist the order as PENDING, and, for market orders, execute immediately.
// Limit and stop orders stay PENDING until ProcessPendingOrders fires them.
//
// Business rejections (bad price, insufficient balance or position, risk
// limits) come back as Success=false with the order marked REJECTED; the
// error return is reserved for infrastructure failures.
func (e *Engine) PlaceOrder(ctx context.Context, accountID string, spec domain.OrderSpec) (*PlaceResult, error) {
	if err := spec.Validate(); err != nil {
		// Structurally invalid specs are refused before any row is written.
		return &PlaceResult{Success: false, Message: err.Error()}, nil
	}

	order := &domain.Order{
		ID:           newOrderID(),
		AccountID:    accountID,
		Instrument:   spec.Instrument(),
		Type:         spec.Type,
		Side:         spec.Side,
		Quantity:     spec.Quantity,
		Price:        spec.Price,
		TriggerPrice: spec.TriggerPrice,
		Status:       domain.OrderStatusPending,
		OrderTime:    time.Now().UTC(),
	}

	// The PENDING row goes in before execution so every attempt is auditable.
	if _, err := e.store.EnsureAccount(ctx, accountID, e.initialBalance); err != nil {
		return nil, &domain.PersistenceError{Op: "ensure account", Err: err}
	}
	if err := e.store.SaveOrder(ctx, order); err != nil {
		return nil, &domain.PersistenceError{Op: "save order", Err: err}
	}

	if order.Type != domain.OrderTypeMarket {
		e.log.Info("order accepted",
			"order_id", order.ID, "symbol", order.Symbol,
			"type", order.Type, "side", order.Side, "qty", order.Quantity)
		return &PlaceResult{Success: true, Message: "order accepted", OrderID: order.ID, Order: order}, nil
	}

	price, err := e.quotes.LastPrice(ctx, order.Symbol)
	if err != nil {
		return e.reject(ctx, order, err)
	}
	return e.execute(ctx, order, price)
}

// execute applies a fill of the order at price: fee, risk check, ledger
// mutation, and the atomic store update. The caller-provided order must be
// PENDING in the store; its in-memory copy is updated to the terminal state.
func (e *Engine) execute(ctx context.Context, order *domain.Order, price decimal.Decimal) (*PlaceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-read under the lock so a concurrent cancellation wins.
	current, err := e.store.GetOrder(ctx, order.AccountID, order.ID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load order", Err: err}
	}
	if current.Status != domain.OrderStatusPending {
		return &PlaceResult{Success: false, Message: "order no longer pending", OrderID: order.ID, Order: current}, nil
	}

	acct, err := e.store.GetAccount(ctx, order.AccountID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load account", Err: err}
	}
	pos, err := e.store.GetOpenPosition(ctx, order.AccountID, order.Instrument)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load position", Err: err}
	}

	now := time.Now().UTC()
	tradeValue := price.Mul(decimal.NewFromInt(order.Quantity))
	fee := e.fees.Brokerage(order.Instrument, tradeValue)

	var nextAcct domain.Account
	var fill ledger.Fill
	var net decimal.Decimal

	switch order.Side {
	case domain.OrderSideBuy:
		if rerr := e.checkRisk(ctx, order.AccountID, *acct, tradeValue, pos == nil); rerr != nil {
			var pe *domain.PersistenceError
			if errors.As(rerr, &pe) {
				return nil, rerr
			}
			return e.reject(ctx, order, rerr)
		}
		net = tradeValue.Add(fee)
		nextAcct, err = ledger.ApplyBuy(*acct, tradeValue, net, now)
		if err != nil {
			return e.reject(ctx, order, err)
		}
		fill, err = ledger.ApplyFill(pos, order.Instrument, order.Side, order.Quantity, price, now)
		if err != nil {
			return e.reject(ctx, order, err)
		}

	case domain.OrderSideSell:
		fill, err = ledger.ApplyFill(pos, order.Instrument, order.Side, order.Quantity, price, now)
		if err != nil {
			return e.reject(ctx, order, err)
		}
		net = tradeValue.Sub(fee)
		nextAcct = ledger.ApplySell(*acct, tradeValue, net, fill.RealizedPnL, now)

	default:
		return e.reject(ctx, order, &domain.ValidationError{Field: "side", Reason: fmt.Sprintf("unknown side %q", order.Side)})
	}

	fill.Position.AccountID = order.AccountID

	executed := *order
	executed.Status = domain.OrderStatusExecuted
	executed.FilledQuantity = order.Quantity
	executed.AvgFilledPrice = price
	executed.ExecutionTime = now

	upd := &store.ExecutionUpdate{
		Account:     nextAcct,
		Position:    fill.Position,
		NewPosition: fill.Opened,
		Trade: domain.Trade{
			OrderID:     order.ID,
			AccountID:   order.AccountID,
			Instrument:  order.Instrument,
			Side:        order.Side,
			Quantity:    order.Quantity,
			Price:       price,
			TradeValue:  tradeValue,
			Brokerage:   fee,
			NetValue:    net,
			RealizedPnL: fill.RealizedPnL,
			TradeTime:   now,
		},
		Order: executed,
	}
	if err := e.store.ApplyExecution(ctx, upd); err != nil {
		return nil, &domain.PersistenceError{Op: "apply execution", Err: err}
	}

	*order = executed
	e.log.Info("order executed",
		"order_id", order.ID, "symbol", order.Symbol, "side", order.Side,
		"qty", order.Quantity, "price", price, "brokerage", fee,
		"balance", nextAcct.Balance)
	return &PlaceResult{Success: true, Message: "order executed", OrderID: order.ID, Order: order}, nil
}

// reject records the order as REJECTED with the cause and returns the failed
// result. Only a failure to write the rejection itself is an error.
func (e *Engine) reject(ctx context.Context, order *domain.Order, cause error) (*PlaceResult, error) {
	order.Status = domain.OrderStatusRejected
	order.Reason = cause.Error()
	if err := e.store.UpdateOrder(ctx, order); err != nil {
		return nil, &domain.PersistenceError{Op: "record rejection", Err: err}
	}
	e.log.Warn("order rejected",
		"order_id", order.ID, "symbol", order.Symbol, "side", order.Side,
		"qty", order.Quantity, "reason", order.Reason)
	return &PlaceResult{Success: false, Message: order.Reason, OrderID: order.ID, Order: order}, nil
}

// checkRisk evaluates the configured pre-trade limits for a buy. It returns a
// plain error for a limit violation and a *domain.PersistenceError when the
// open-position count could not be read.
func (e *Engine) checkRisk(ctx context.Context, accountID string, acct domain.Account, tradeValue decimal.Decimal, opensNew bool) error {
	if e.risk == nil {
		return nil
	}
	var open int
	if opensNew && e.risk.maxOpenPositions > 0 {
		positions, err := e.store.ListOpenPositions(ctx, accountID)
		if err != nil {
			return &domain.PersistenceError{Op: "count positions", Err: err}
		}
		open = len(positions)
	}
	equity := acct.Balance.Add(acct.InvestedAmount)
	return e.risk.CheckOrder(tradeValue, equity, open, opensNew)
}

// CancelOrder moves a PENDING order to CANCELLED. Terminal orders return
// domain.ErrOrderNotCancellable.
func (e *Engine) CancelOrder(ctx context.Context, accountID, orderID string) (*domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, err := e.store.GetOrder(ctx, accountID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return nil, fmt.Errorf("%w: status %s", domain.ErrOrderNotCancellable, order.Status)
	}
	order.Status = domain.OrderStatusCancelled
	order.Reason = "cancelled by user"
	if err := e.store.UpdateOrder(ctx, order); err != nil {
		return nil, &domain.PersistenceError{Op: "cancel order", Err: err}
	}
	e.log.Info("order cancelled", "order_id", order.ID, "symbol", order.Symbol)
	return order, nil
}

// Portfolio is the account summary: the cash ledger plus open positions and
// their aggregate marks.
type Portfolio struct {
	Account        domain.Account    `json:"account"`
	Positions      []domain.Position `json:"positions"`
	PositionsValue decimal.Decimal   `json:"positions_value"`
	TotalValue     decimal.Decimal   `json:"total_value"`
	UnrealizedPnL  decimal.Decimal   `json:"unrealized_pnl"`
}

// GetPortfolio assembles the portfolio summary for the account, creating the
// account on first use.
func (e *Engine) GetPortfolio(ctx context.Context, accountID string) (*Portfolio, error) {
	acct, err := e.store.EnsureAccount(ctx, accountID, e.initialBalance)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "ensure account", Err: err}
	}
	positions, err := e.store.ListOpenPositions(ctx, accountID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list positions", Err: err}
	}
	return &Portfolio{
		Account:        *acct,
		Positions:      positions,
		PositionsValue: ledger.PositionsValue(positions),
		TotalValue:     ledger.TotalValue(*acct, positions),
		UnrealizedPnL:  ledger.UnrealizedPnL(positions),
	}, nil
}

// newOrderID returns a short client-facing order reference.
func newOrderID() string {
	return uuid.NewString()[:8]
}
