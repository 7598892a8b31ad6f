package engine

import (
	"testing"

	"paperbroker/internal/domain"
)

func TestBrokerageEquityRate(t *testing.T) {
	calc := NewBrokerageCalculator(0.0003, 20, 20)
	equity := domain.Instrument{Symbol: "AAPL", Type: domain.InstrumentEquity}

	fee := calc.Brokerage(equity, mustDec(t, "1000"))
	if !fee.Equal(mustDec(t, "0.30")) {
		t.Errorf("fee(1000) = %s, want 0.30", fee)
	}

	fee = calc.Brokerage(equity, mustDec(t, "1100"))
	if !fee.Equal(mustDec(t, "0.33")) {
		t.Errorf("fee(1100) = %s, want 0.33", fee)
	}

	// Sub-cent values round to two places.
	fee = calc.Brokerage(equity, mustDec(t, "333"))
	if !fee.Equal(mustDec(t, "0.10")) {
		t.Errorf("fee(333) = %s, want 0.10", fee)
	}
}

func TestBrokerageEquityCap(t *testing.T) {
	calc := NewBrokerageCalculator(0.0003, 20, 20)
	equity := domain.Instrument{Symbol: "AAPL", Type: domain.InstrumentEquity}

	// 100000 * 0.0003 = 30, capped at 20.
	fee := calc.Brokerage(equity, mustDec(t, "100000"))
	if !fee.Equal(mustDec(t, "20")) {
		t.Errorf("fee(100000) = %s, want cap 20", fee)
	}

	// Zero cap disables capping.
	uncapped := NewBrokerageCalculator(0.0003, 0, 20)
	fee = uncapped.Brokerage(equity, mustDec(t, "100000"))
	if !fee.Equal(mustDec(t, "30")) {
		t.Errorf("uncapped fee(100000) = %s, want 30", fee)
	}
}

func TestBrokerageOptionFlat(t *testing.T) {
	calc := NewBrokerageCalculator(0.0003, 20, 20)
	option := domain.Instrument{
		Symbol:     "NIFTY",
		Type:       domain.InstrumentOption,
		OptionType: domain.OptionCall,
		Strike:     mustDec(t, "18000"),
		Expiry:     "2026-09-25",
	}

	for _, value := range []string{"100", "1000000"} {
		fee := calc.Brokerage(option, mustDec(t, value))
		if !fee.Equal(mustDec(t, "20")) {
			t.Errorf("option fee(%s) = %s, want flat 20", value, fee)
		}
	}
}

func TestRiskManagerCheckOrder(t *testing.T) {
	rm := NewRiskManager(2, 0.25)
	equity := mustDec(t, "1000000")

	if err := rm.CheckOrder(mustDec(t, "250000"), equity, 0, true); err != nil {
		t.Errorf("order at the limit rejected: %v", err)
	}
	if err := rm.CheckOrder(mustDec(t, "250001"), equity, 0, true); err == nil {
		t.Error("order above the limit accepted")
	}
	if err := rm.CheckOrder(mustDec(t, "1000"), equity, 2, true); err == nil {
		t.Error("new position over the cap accepted")
	}
	if err := rm.CheckOrder(mustDec(t, "1000"), equity, 2, false); err != nil {
		t.Errorf("add-on to existing position rejected: %v", err)
	}

	// Zero limits disable the checks.
	off := NewRiskManager(0, 0)
	if err := off.CheckOrder(mustDec(t, "99999999"), equity, 100, true); err != nil {
		t.Errorf("disabled risk manager rejected order: %v", err)
	}
}
