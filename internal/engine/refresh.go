package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
	"paperbroker/internal/ledger"
)

// SweepFailure records one symbol whose price refresh failed.
type SweepFailure struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// SweepReport summarizes one mark-to-market pass over the open positions.
type SweepReport struct {
	Checked  int            `json:"checked"`
	Updated  int            `json:"updated"`
	Failures []SweepFailure `json:"failures,omitempty"`
}

// RefreshPositions fetches a fresh price for every open position and writes
// the updated mark and P&L fields back. A failed lookup for one symbol
// leaves its stale mark in place and never aborts the rest of the sweep.
func (e *Engine) RefreshPositions(ctx context.Context, accountID string) (*SweepReport, error) {
	positions, err := e.store.ListOpenPositions(ctx, accountID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list positions", Err: err}
	}

	report := &SweepReport{Checked: len(positions)}
	for _, pos := range positions {
		price, err := e.quotes.LastPrice(ctx, pos.Symbol)
		if err != nil {
			report.Failures = append(report.Failures, SweepFailure{Symbol: pos.Symbol, Reason: err.Error()})
			e.log.Warn("price refresh failed", "symbol", pos.Symbol, "error", err)
			continue
		}
		marked := ledger.MarkToMarket(pos, price, time.Now().UTC())
		if err := e.store.MarkPosition(ctx, accountID, &marked); err != nil {
			if errors.Is(err, domain.ErrPositionClosed) {
				// Closed by a concurrent execution between list and mark.
				continue
			}
			report.Failures = append(report.Failures, SweepFailure{Symbol: pos.Symbol, Reason: err.Error()})
			e.log.Warn("mark position failed", "symbol", pos.Symbol, "error", err)
			continue
		}
		report.Updated++
	}
	if len(report.Failures) > 0 {
		e.log.Info("position refresh done",
			"account", accountID, "checked", report.Checked,
			"updated", report.Updated, "failed", len(report.Failures))
	}
	return report, nil
}

// TriggerOutcome records the evaluation of one pending order.
type TriggerOutcome struct {
	OrderID string `json:"order_id"`
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
}

// TriggerReport summarizes one pending-order evaluation pass.
type TriggerReport struct {
	Checked  int              `json:"checked"`
	Executed []TriggerOutcome `json:"executed,omitempty"`
	Rejected []TriggerOutcome `json:"rejected,omitempty"`
	Skipped  []TriggerOutcome `json:"skipped,omitempty"`
}

// ProcessPendingOrders walks the account's PENDING orders, checks each one's
// trigger condition against the current market price, and executes the ones
// that fire through the same path market orders take. Orders whose price
// lookup or execution hits an infrastructure failure are skipped and stay
// PENDING for the next pass.
func (e *Engine) ProcessPendingOrders(ctx context.Context, accountID string) (*TriggerReport, error) {
	pending, err := e.store.ListPendingOrders(ctx, accountID)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list pending orders", Err: err}
	}

	report := &TriggerReport{Checked: len(pending)}
	for i := range pending {
		order := pending[i]
		market, err := e.quotes.LastPrice(ctx, order.Symbol)
		if err != nil {
			report.Skipped = append(report.Skipped, TriggerOutcome{OrderID: order.ID, Symbol: order.Symbol, Message: err.Error()})
			continue
		}
		fillPrice, fires := triggerPrice(&order, market)
		if !fires {
			continue
		}
		res, err := e.execute(ctx, &order, fillPrice)
		if err != nil {
			report.Skipped = append(report.Skipped, TriggerOutcome{OrderID: order.ID, Symbol: order.Symbol, Message: err.Error()})
			e.log.Warn("trigger execution failed", "order_id", order.ID, "error", err)
			continue
		}
		out := TriggerOutcome{OrderID: order.ID, Symbol: order.Symbol, Message: res.Message}
		if res.Success {
			report.Executed = append(report.Executed, out)
		} else {
			report.Rejected = append(report.Rejected, out)
		}
	}
	return report, nil
}

// triggerPrice decides whether a pending order fires at the given market
// price and, if so, at what price it fills.
//
// Limit orders fire when the market reaches their limit and fill at the
// limit price. Stop-limit (SL) orders fire when the market breaches the
// trigger and fill at their limit price; stop-market (SL-M) orders fill at
// the market price. A pending market order means an earlier execution never
// completed; it fills at market.
func triggerPrice(order *domain.Order, market decimal.Decimal) (decimal.Decimal, bool) {
	switch order.Type {
	case domain.OrderTypeMarket:
		return market, true

	case domain.OrderTypeLimit:
		if order.Side == domain.OrderSideBuy && market.LessThanOrEqual(order.Price) {
			return order.Price, true
		}
		if order.Side == domain.OrderSideSell && market.GreaterThanOrEqual(order.Price) {
			return order.Price, true
		}

	case domain.OrderTypeStopLimit:
		if stopFires(order, market) {
			return order.Price, true
		}

	case domain.OrderTypeStop:
		if stopFires(order, market) {
			return market, true
		}
	}
	return decimal.Decimal{}, false
}

// stopFires reports whether a stop trigger is breached: buy stops arm at or
// above the trigger price, sell stops at or below.
func stopFires(order *domain.Order, market decimal.Decimal) bool {
	if order.Side == domain.OrderSideBuy {
		return market.GreaterThanOrEqual(order.TriggerPrice)
	}
	return market.LessThanOrEqual(order.TriggerPrice)
}
