package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
)

// ApplyBuy debits a buy's net cost (trade value plus brokerage) from the
// balance and adds the trade value to the invested amount. It returns
// domain.ErrInsufficientBalance, leaving the account unchanged, when net
// exceeds free cash.
func ApplyBuy(acct domain.Account, tradeValue, net decimal.Decimal, now time.Time) (domain.Account, error) {
	if net.GreaterThan(acct.Balance) {
		return acct, domain.ErrInsufficientBalance
	}
	acct.Balance = acct.Balance.Sub(net)
	acct.InvestedAmount = acct.InvestedAmount.Add(tradeValue)
	acct.UpdatedAt = now
	return acct, nil
}

// ApplySell credits a sell's net proceeds (trade value minus brokerage) to
// the balance, reduces the invested amount by the trade value, and accrues
// the realized P&L into the running totals. The invested amount may go
// negative when positions are closed above their entry price; that is the
// accounting identity the conservation property relies on.
func ApplySell(acct domain.Account, tradeValue, net, realized decimal.Decimal, now time.Time) domain.Account {
	acct.Balance = acct.Balance.Add(net)
	acct.InvestedAmount = acct.InvestedAmount.Sub(tradeValue)
	acct = AccrueRealized(acct, realized, now)
	acct.UpdatedAt = now
	return acct
}

// AccrueRealized adds realized P&L to the account's total and to the current
// day's bucket, rolling the day bucket over on the first accrual of a new
// UTC calendar day.
func AccrueRealized(acct domain.Account, realized decimal.Decimal, now time.Time) domain.Account {
	day := now.UTC().Format("2006-01-02")
	if acct.DayDate != day {
		acct.DayDate = day
		acct.DayPnL = decimal.Zero
	}
	acct.DayPnL = acct.DayPnL.Add(realized)
	acct.TotalPnL = acct.TotalPnL.Add(realized)
	return acct
}

// PositionsValue sums the market value of the open positions.
func PositionsValue(positions []domain.Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		if p.Status != domain.PositionOpen {
			continue
		}
		total = total.Add(p.MarketValue())
	}
	return total
}

// TotalValue is free cash plus the market value of the open positions.
func TotalValue(acct domain.Account, positions []domain.Position) decimal.Decimal {
	return acct.Balance.Add(PositionsValue(positions))
}

// UnrealizedPnL sums the marked P&L of the open positions.
func UnrealizedPnL(positions []domain.Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		if p.Status != domain.PositionOpen {
			continue
		}
		total = total.Add(p.PnL)
	}
	return total
}
