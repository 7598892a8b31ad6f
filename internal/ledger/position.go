// Package ledger implements the bookkeeping arithmetic of the brokerage:
// position average-price maintenance, cash and invested-amount movement, and
// mark-to-market P&L. Everything here is pure; persistence and price lookup
// live elsewhere.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
)

// Fill is the ledger effect of applying one execution to a position.
type Fill struct {
	Position    domain.Position
	Opened      bool
	Closed      bool
	RealizedPnL decimal.Decimal
}

// ApplyFill applies a buy or sell of qty units at price to pos and returns
// the resulting position state. pos is nil when the account holds no open
// position in the instrument; a buy then opens a new position and a sell is
// rejected.
//
// Buys recompute the average price as the quantity-weighted mean of the old
// holding and the new fill. Sells never change the average price; their
// realized P&L is (price - avg) * qty. A sell that brings the quantity to
// exactly zero closes the position.
func ApplyFill(pos *domain.Position, in domain.Instrument, side domain.OrderSide, qty int64, price decimal.Decimal, now time.Time) (Fill, error) {
	if qty <= 0 {
		return Fill{}, &domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if pos != nil && pos.Status == domain.PositionClosed {
		return Fill{}, domain.ErrPositionClosed
	}

	if pos == nil {
		if side == domain.OrderSideSell {
			return Fill{}, domain.ErrInsufficientPosition
		}
		return Fill{
			Position: domain.Position{
				Instrument:   in,
				Quantity:     qty,
				AvgPrice:     price,
				CurrentPrice: price,
				Status:       domain.PositionOpen,
				CreatedAt:    now,
				UpdatedAt:    now,
			},
			Opened: true,
		}, nil
	}

	next := *pos
	next.UpdatedAt = now

	switch side {
	case domain.OrderSideBuy:
		oldQty := decimal.NewFromInt(pos.Quantity)
		addQty := decimal.NewFromInt(qty)
		newQty := oldQty.Add(addQty)
		cost := pos.AvgPrice.Mul(oldQty).Add(price.Mul(addQty))
		next.Quantity = pos.Quantity + qty
		next.AvgPrice = cost.Div(newQty)
		return Fill{Position: next}, nil

	case domain.OrderSideSell:
		if qty > pos.Quantity {
			return Fill{}, domain.ErrOverSell
		}
		realized := price.Sub(pos.AvgPrice).Mul(decimal.NewFromInt(qty))
		next.Quantity = pos.Quantity - qty
		if next.Quantity == 0 {
			next.Status = domain.PositionClosed
		}
		return Fill{
			Position:    next,
			Closed:      next.Quantity == 0,
			RealizedPnL: realized,
		}, nil

	default:
		return Fill{}, &domain.ValidationError{Field: "side", Reason: "unknown side"}
	}
}

// MarkToMarket sets the position's current price and recomputes its
// unrealized P&L fields. Closed positions are returned unchanged.
func MarkToMarket(pos domain.Position, price decimal.Decimal, now time.Time) domain.Position {
	if pos.Status == domain.PositionClosed {
		return pos
	}
	pos.CurrentPrice = price
	diff := price.Sub(pos.AvgPrice)
	pos.PnL = diff.Mul(decimal.NewFromInt(pos.Quantity))
	if pos.AvgPrice.IsPositive() {
		pos.PnLPercent = diff.Div(pos.AvgPrice).Mul(decimal.NewFromInt(100))
	} else {
		pos.PnLPercent = decimal.Zero
	}
	pos.UpdatedAt = now
	return pos
}
