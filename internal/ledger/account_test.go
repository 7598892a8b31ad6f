package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
)

func newAccount(t *testing.T, balance string) domain.Account {
	t.Helper()
	return domain.Account{
		ID:             "default",
		Balance:        dec(t, balance),
		InvestedAmount: decimal.Zero,
		TotalPnL:       decimal.Zero,
		DayPnL:         decimal.Zero,
	}
}

func TestApplyBuy(t *testing.T) {
	acct := newAccount(t, "1000000")

	// 10 @ 100 with 0.30 brokerage: net 1000.30.
	got, err := ApplyBuy(acct, dec(t, "1000"), dec(t, "1000.30"), time.Now())
	if err != nil {
		t.Fatalf("ApplyBuy = %v, want nil", err)
	}
	if !got.Balance.Equal(dec(t, "998999.70")) {
		t.Errorf("Balance = %s, want 998999.70", got.Balance)
	}
	if !got.InvestedAmount.Equal(dec(t, "1000")) {
		t.Errorf("InvestedAmount = %s, want 1000", got.InvestedAmount)
	}
}

func TestApplyBuyInsufficientBalance(t *testing.T) {
	acct := newAccount(t, "500")

	got, err := ApplyBuy(acct, dec(t, "1000"), dec(t, "1000.30"), time.Now())
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("ApplyBuy = %v, want ErrInsufficientBalance", err)
	}
	if !got.Balance.Equal(acct.Balance) || !got.InvestedAmount.Equal(acct.InvestedAmount) {
		t.Errorf("account mutated on rejected buy: %+v", got)
	}
}

func TestApplyBuyExactBalanceAllowed(t *testing.T) {
	acct := newAccount(t, "1000.30")
	got, err := ApplyBuy(acct, dec(t, "1000"), dec(t, "1000.30"), time.Now())
	if err != nil {
		t.Fatalf("ApplyBuy with exact balance = %v, want nil", err)
	}
	if !got.Balance.IsZero() {
		t.Errorf("Balance = %s, want 0", got.Balance)
	}
}

func TestApplySell(t *testing.T) {
	now := time.Now()
	acct := newAccount(t, "998999.70")
	acct.InvestedAmount = dec(t, "1000")

	// 10 @ 110 with 0.33 brokerage: net 1099.67, realized 100.
	got := ApplySell(acct, dec(t, "1100"), dec(t, "1099.67"), dec(t, "100"), now)
	if !got.Balance.Equal(dec(t, "1000099.37")) {
		t.Errorf("Balance = %s, want 1000099.37", got.Balance)
	}
	if !got.InvestedAmount.Equal(dec(t, "-100")) {
		t.Errorf("InvestedAmount = %s, want -100", got.InvestedAmount)
	}
	if !got.TotalPnL.Equal(dec(t, "100")) {
		t.Errorf("TotalPnL = %s, want 100", got.TotalPnL)
	}
	if !got.DayPnL.Equal(dec(t, "100")) {
		t.Errorf("DayPnL = %s, want 100", got.DayPnL)
	}

	// Fees are the only leak: balance + invested = initial - total brokerage.
	sum := got.Balance.Add(got.InvestedAmount)
	if !sum.Equal(dec(t, "999999.37")) {
		t.Errorf("balance+invested = %s, want 999999.37", sum)
	}
}

func TestAccrueRealizedRollsDay(t *testing.T) {
	day1 := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)

	acct := newAccount(t, "1000000")
	acct = AccrueRealized(acct, dec(t, "40"), day1)
	acct = AccrueRealized(acct, dec(t, "-15"), day1)
	if !acct.DayPnL.Equal(dec(t, "25")) {
		t.Errorf("DayPnL = %s, want 25", acct.DayPnL)
	}
	if !acct.TotalPnL.Equal(dec(t, "25")) {
		t.Errorf("TotalPnL = %s, want 25", acct.TotalPnL)
	}

	acct = AccrueRealized(acct, dec(t, "10"), day2)
	if !acct.DayPnL.Equal(dec(t, "10")) {
		t.Errorf("DayPnL after rollover = %s, want 10", acct.DayPnL)
	}
	if !acct.TotalPnL.Equal(dec(t, "35")) {
		t.Errorf("TotalPnL after rollover = %s, want 35", acct.TotalPnL)
	}
	if acct.DayDate != "2026-03-03" {
		t.Errorf("DayDate = %q, want 2026-03-03", acct.DayDate)
	}
}

func TestPortfolioValues(t *testing.T) {
	acct := newAccount(t, "5000")
	open := domain.Position{
		Instrument:   domain.Instrument{Symbol: "AAPL", Type: domain.InstrumentEquity},
		Quantity:     10,
		AvgPrice:     dec(t, "100"),
		CurrentPrice: dec(t, "110"),
		PnL:          dec(t, "100"),
		Status:       domain.PositionOpen,
	}
	fresh := domain.Position{
		Instrument: domain.Instrument{Symbol: "MSFT", Type: domain.InstrumentEquity},
		Quantity:   5,
		AvgPrice:   dec(t, "200"),
		Status:     domain.PositionOpen,
	}
	closed := domain.Position{
		Instrument: domain.Instrument{Symbol: "TSLA", Type: domain.InstrumentEquity},
		Quantity:   0,
		AvgPrice:   dec(t, "300"),
		Status:     domain.PositionClosed,
	}
	positions := []domain.Position{open, fresh, closed}

	// 10*110 + 5*200 (avg fallback, no refresh yet) + nothing for closed.
	if got := PositionsValue(positions); !got.Equal(dec(t, "2100")) {
		t.Errorf("PositionsValue = %s, want 2100", got)
	}
	if got := TotalValue(acct, positions); !got.Equal(dec(t, "7100")) {
		t.Errorf("TotalValue = %s, want 7100", got)
	}
	if got := UnrealizedPnL(positions); !got.Equal(dec(t, "100")) {
		t.Errorf("UnrealizedPnL = %s, want 100", got)
	}
}
