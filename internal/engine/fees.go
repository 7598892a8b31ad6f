package engine

import (
	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
)

// BrokerageCalculator prices the fee charged on each fill: a value-based rate
// with a per-order cap for equities and a flat amount per option order.
type BrokerageCalculator struct {
	equityRate decimal.Decimal
	equityCap  decimal.Decimal
	optionFlat decimal.Decimal
}

// NewBrokerageCalculator builds a calculator from the configured schedule.
//
//   - equityRate: fraction of trade value charged on equity fills
//     (e.g. 0.0003 for 0.03%).
//   - equityCap: per-order ceiling for the equity fee; zero disables the cap.
//   - optionFlat: flat fee per option fill regardless of value.
func NewBrokerageCalculator(equityRate, equityCap, optionFlat float64) *BrokerageCalculator {
	return &BrokerageCalculator{
		equityRate: decimal.NewFromFloat(equityRate),
		equityCap:  decimal.NewFromFloat(equityCap),
		optionFlat: decimal.NewFromFloat(optionFlat),
	}
}

// Brokerage returns the fee for a fill of the given trade value, rounded to
// two decimal places.
func (b *BrokerageCalculator) Brokerage(in domain.Instrument, tradeValue decimal.Decimal) decimal.Decimal {
	if in.IsOption() {
		return b.optionFlat
	}
	fee := tradeValue.Mul(b.equityRate).Round(2)
	if b.equityCap.IsPositive() && fee.GreaterThan(b.equityCap) {
		return b.equityCap
	}
	return fee
}
