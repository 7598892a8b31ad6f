package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RiskManager enforces pre-trade limits on buys: a ceiling on the number of
// simultaneously open positions and on the fraction of equity a single order
// may commit. Zero limits disable the corresponding check.
type RiskManager struct {
	maxOpenPositions int
	maxOrderPct      decimal.Decimal
}

// NewRiskManager creates a RiskManager with the specified limits.
//
//   - maxOpenPositions: maximum number of open positions the account may
//     hold; buys that would open one more are rejected.
//   - maxOrderPct: maximum fraction of account equity allowed in a single
//     order (e.g. 0.25 for 25%).
func NewRiskManager(maxOpenPositions int, maxOrderPct float64) *RiskManager {
	return &RiskManager{
		maxOpenPositions: maxOpenPositions,
		maxOrderPct:      decimal.NewFromFloat(maxOrderPct),
	}
}

// CheckOrder evaluates whether a proposed buy of orderValue complies with the
// configured limits. openPositions is the account's current open position
// count; opensNew says whether the fill would create a new position.
func (rm *RiskManager) CheckOrder(orderValue, equity decimal.Decimal, openPositions int, opensNew bool) error {
	if rm.maxOpenPositions > 0 && opensNew && openPositions >= rm.maxOpenPositions {
		return fmt.Errorf("open position limit reached (%d)", rm.maxOpenPositions)
	}
	if rm.maxOrderPct.IsPositive() && equity.IsPositive() {
		if limit := equity.Mul(rm.maxOrderPct); orderValue.GreaterThan(limit) {
			return fmt.Errorf("order value %s exceeds limit %s (%s%% of equity)",
				orderValue, limit, rm.maxOrderPct.Mul(decimal.NewFromInt(100)))
		}
	}
	return nil
}
