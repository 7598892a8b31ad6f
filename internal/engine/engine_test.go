package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
	"paperbroker/internal/quote"
	"paperbroker/internal/store"
)

const testAccount = "default"

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

// newTestEngine wires an Engine against a temp SQLite store and a static
// price source, with the default fee schedule and no risk limits.
func newTestEngine(t *testing.T, prices map[string]float64) (*Engine, *store.SQLiteStore, *quote.StaticSource) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	src := quote.NewStaticSource(prices)
	fees := NewBrokerageCalculator(0.0003, 20, 20)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(st, src, fees, nil, decimal.NewFromInt(1000000), log)
	return e, st, src
}

func marketSpec(symbol string, side domain.OrderSide, qty int64) domain.OrderSpec {
	return domain.OrderSpec{
		Symbol:         symbol,
		InstrumentType: domain.InstrumentEquity,
		Type:           domain.OrderTypeMarket,
		Side:           side,
		Quantity:       qty,
	}
}

func place(t *testing.T, e *Engine, spec domain.OrderSpec) *PlaceResult {
	t.Helper()
	res, err := e.PlaceOrder(context.Background(), testAccount, spec)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	return res
}

func TestMarketBuyExecutes(t *testing.T) {
	e, st, _ := newTestEngine(t, map[string]float64{"AAPL": 100})
	ctx := context.Background()

	res := place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 10))
	if !res.Success {
		t.Fatalf("PlaceOrder failed: %s", res.Message)
	}
	if res.OrderID == "" {
		t.Error("OrderID is empty")
	}
	if res.Order.Status != domain.OrderStatusExecuted {
		t.Errorf("order status = %s, want EXECUTED", res.Order.Status)
	}
	if res.Order.FilledQuantity != 10 {
		t.Errorf("FilledQuantity = %d, want 10", res.Order.FilledQuantity)
	}
	if !res.Order.AvgFilledPrice.Equal(mustDec(t, "100")) {
		t.Errorf("AvgFilledPrice = %s, want 100", res.Order.AvgFilledPrice)
	}

	// Trade value 1000, brokerage 0.30, net debit 1000.30.
	acct, err := st.GetAccount(ctx, testAccount)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acct.Balance.Equal(mustDec(t, "998999.70")) {
		t.Errorf("Balance = %s, want 998999.70", acct.Balance)
	}
	if !acct.InvestedAmount.Equal(mustDec(t, "1000")) {
		t.Errorf("InvestedAmount = %s, want 1000", acct.InvestedAmount)
	}

	pos, err := st.GetOpenPosition(ctx, testAccount, domain.Instrument{Symbol: "AAPL", Type: domain.InstrumentEquity})
	if err != nil {
		t.Fatalf("GetOpenPosition: %v", err)
	}
	if pos == nil {
		t.Fatal("no open position after buy")
	}
	if pos.Quantity != 10 || !pos.AvgPrice.Equal(mustDec(t, "100")) {
		t.Errorf("position = %d @ %s, want 10 @ 100", pos.Quantity, pos.AvgPrice)
	}

	trades, err := st.ListTrades(ctx, testAccount, 0)
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("len(trades) = %d, want 1", len(trades))
	}
	if !trades[0].Brokerage.Equal(mustDec(t, "0.30")) {
		t.Errorf("Brokerage = %s, want 0.30", trades[0].Brokerage)
	}
	if !trades[0].NetValue.Equal(mustDec(t, "1000.30")) {
		t.Errorf("NetValue = %s, want 1000.30", trades[0].NetValue)
	}
}

func TestMarketSellRealizesPnL(t *testing.T) {
	e, st, src := newTestEngine(t, map[string]float64{"AAPL": 100})
	ctx := context.Background()

	if res := place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 10)); !res.Success {
		t.Fatalf("buy failed: %s", res.Message)
	}

	src.SetPrice("AAPL", mustDec(t, "110"))
	res := place(t, e, marketSpec("AAPL", domain.OrderSideSell, 10))
	if !res.Success {
		t.Fatalf("sell failed: %s", res.Message)
	}

	// Sell value 1100, brokerage 0.33, net credit 1099.67.
	acct, err := st.GetAccount(ctx, testAccount)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acct.Balance.Equal(mustDec(t, "1000099.37")) {
		t.Errorf("Balance = %s, want 1000099.37", acct.Balance)
	}
	if !acct.InvestedAmount.Equal(mustDec(t, "-100")) {
		t.Errorf("InvestedAmount = %s, want -100", acct.InvestedAmount)
	}
	if !acct.TotalPnL.Equal(mustDec(t, "100")) {
		t.Errorf("TotalPnL = %s, want 100", acct.TotalPnL)
	}
	if !acct.DayPnL.Equal(mustDec(t, "100")) {
		t.Errorf("DayPnL = %s, want 100", acct.DayPnL)
	}

	// Cash plus invested drifts from the initial balance only by total fees.
	sum := acct.Balance.Add(acct.InvestedAmount)
	if !sum.Equal(mustDec(t, "999999.37")) {
		t.Errorf("balance+invested = %s, want 999999.37", sum)
	}

	pos, err := st.GetOpenPosition(ctx, testAccount, domain.Instrument{Symbol: "AAPL", Type: domain.InstrumentEquity})
	if err != nil {
		t.Fatalf("GetOpenPosition: %v", err)
	}
	if pos != nil {
		t.Errorf("position still open after full sell: %+v", pos)
	}

	trades, err := st.ListTrades(ctx, testAccount, 0)
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("len(trades) = %d, want 2", len(trades))
	}
	// Newest first.
	if !trades[0].RealizedPnL.Equal(mustDec(t, "100")) {
		t.Errorf("sell RealizedPnL = %s, want 100", trades[0].RealizedPnL)
	}
	if !trades[0].NetValue.Equal(mustDec(t, "1099.67")) {
		t.Errorf("sell NetValue = %s, want 1099.67", trades[0].NetValue)
	}
}

func TestPartialSellKeepsAvgPrice(t *testing.T) {
	e, st, src := newTestEngine(t, map[string]float64{"AAPL": 100})
	ctx := context.Background()

	place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 30))
	src.SetPrice("AAPL", mustDec(t, "120"))
	res := place(t, e, marketSpec("AAPL", domain.OrderSideSell, 10))
	if !res.Success {
		t.Fatalf("sell failed: %s", res.Message)
	}

	pos, err := st.GetOpenPosition(ctx, testAccount, domain.Instrument{Symbol: "AAPL", Type: domain.InstrumentEquity})
	if err != nil {
		t.Fatalf("GetOpenPosition: %v", err)
	}
	if pos == nil {
		t.Fatal("position closed by partial sell")
	}
	if pos.Quantity != 20 {
		t.Errorf("Quantity = %d, want 20", pos.Quantity)
	}
	if !pos.AvgPrice.Equal(mustDec(t, "100")) {
		t.Errorf("AvgPrice = %s, want 100 (sells must not move it)", pos.AvgPrice)
	}

	trades, _ := st.ListTrades(ctx, testAccount, 1)
	if !trades[0].RealizedPnL.Equal(mustDec(t, "200")) {
		t.Errorf("RealizedPnL = %s, want 200", trades[0].RealizedPnL)
	}
}

func TestWeightedAverageBuy(t *testing.T) {
	e, st, src := newTestEngine(t, map[string]float64{"AAPL": 100})
	ctx := context.Background()

	place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 10))
	src.SetPrice("AAPL", mustDec(t, "120"))
	place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 10))

	pos, err := st.GetOpenPosition(ctx, testAccount, domain.Instrument{Symbol: "AAPL", Type: domain.InstrumentEquity})
	if err != nil {
		t.Fatalf("GetOpenPosition: %v", err)
	}
	if pos.Quantity != 20 {
		t.Errorf("Quantity = %d, want 20", pos.Quantity)
	}
	if !pos.AvgPrice.Equal(mustDec(t, "110")) {
		t.Errorf("AvgPrice = %s, want 110", pos.AvgPrice)
	}
}

func TestValidationRejectsWithoutRow(t *testing.T) {
	e, st, _ := newTestEngine(t, map[string]float64{"AAPL": 100})
	ctx := context.Background()

	spec := marketSpec("AAPL", domain.OrderSideBuy, 0)
	res := place(t, e, spec)
	if res.Success {
		t.Fatal("zero-quantity order accepted")
	}
	if !strings.Contains(res.Message, "quantity") {
		t.Errorf("Message = %q, want mention of quantity", res.Message)
	}
	if res.OrderID != "" {
		t.Errorf("OrderID = %q, want empty for validation failure", res.OrderID)
	}

	orders, err := st.ListOrders(ctx, testAccount, 0)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("len(orders) = %d, want 0 (validation failures leave no row)", len(orders))
	}
}

func TestInsufficientBalanceRejects(t *testing.T) {
	e, st, _ := newTestEngine(t, map[string]float64{"BRK": 200000})
	ctx := context.Background()

	res := place(t, e, marketSpec("BRK", domain.OrderSideBuy, 10))
	if res.Success {
		t.Fatal("unaffordable buy accepted")
	}
	if !strings.Contains(res.Message, "insufficient balance") {
		t.Errorf("Message = %q, want insufficient balance", res.Message)
	}

	// The attempt is recorded, the ledger untouched.
	order, err := st.GetOrder(ctx, testAccount, res.OrderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Status != domain.OrderStatusRejected {
		t.Errorf("order status = %s, want REJECTED", order.Status)
	}
	if order.Reason == "" {
		t.Error("rejected order has no reason")
	}

	acct, err := st.GetAccount(ctx, testAccount)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !acct.Balance.Equal(mustDec(t, "1000000")) {
		t.Errorf("Balance = %s, want 1000000 (no mutation on rejection)", acct.Balance)
	}
	trades, _ := st.ListTrades(ctx, testAccount, 0)
	if len(trades) != 0 {
		t.Errorf("len(trades) = %d, want 0", len(trades))
	}
}

func TestSellWithoutPositionRejects(t *testing.T) {
	e, st, _ := newTestEngine(t, map[string]float64{"AAPL": 100})
	ctx := context.Background()

	res := place(t, e, marketSpec("AAPL", domain.OrderSideSell, 10))
	if res.Success {
		t.Fatal("naked sell accepted")
	}
	if !strings.Contains(res.Message, "insufficient position") {
		t.Errorf("Message = %q, want insufficient position", res.Message)
	}

	order, err := st.GetOrder(ctx, testAccount, res.OrderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Status != domain.OrderStatusRejected {
		t.Errorf("order status = %s, want REJECTED", order.Status)
	}
}

func TestOverSellRejects(t *testing.T) {
	e, st, _ := newTestEngine(t, map[string]float64{"AAPL": 100})
	ctx := context.Background()

	place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 10))
	balanceAfterBuy := mustDec(t, "998999.70")

	res := place(t, e, marketSpec("AAPL", domain.OrderSideSell, 15))
	if res.Success {
		t.Fatal("oversell accepted")
	}

	pos, err := st.GetOpenPosition(ctx, testAccount, domain.Instrument{Symbol: "AAPL", Type: domain.InstrumentEquity})
	if err != nil {
		t.Fatalf("GetOpenPosition: %v", err)
	}
	if pos == nil || pos.Quantity != 10 {
		t.Fatalf("position = %+v, want untouched quantity 10", pos)
	}
	acct, _ := st.GetAccount(ctx, testAccount)
	if !acct.Balance.Equal(balanceAfterBuy) {
		t.Errorf("Balance = %s, want %s (no mutation on rejection)", acct.Balance, balanceAfterBuy)
	}
}

func TestPriceUnavailableRejects(t *testing.T) {
	e, st, _ := newTestEngine(t, map[string]float64{})
	ctx := context.Background()

	res := place(t, e, marketSpec("GHOST", domain.OrderSideBuy, 10))
	if res.Success {
		t.Fatal("order without a price accepted")
	}
	if !strings.Contains(res.Message, "price unavailable") {
		t.Errorf("Message = %q, want price unavailable", res.Message)
	}

	// The attempt still leaves a REJECTED row.
	orders, err := st.ListOrders(ctx, testAccount, 0)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("len(orders) = %d, want 1", len(orders))
	}
	if orders[0].Status != domain.OrderStatusRejected {
		t.Errorf("order status = %s, want REJECTED", orders[0].Status)
	}
}

func TestConservationAcrossSequence(t *testing.T) {
	e, st, src := newTestEngine(t, map[string]float64{"AAPL": 100, "MSFT": 50})
	ctx := context.Background()

	place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 10))
	place(t, e, marketSpec("MSFT", domain.OrderSideBuy, 40))
	src.SetPrice("AAPL", mustDec(t, "110"))
	place(t, e, marketSpec("AAPL", domain.OrderSideSell, 5))
	src.SetPrice("MSFT", mustDec(t, "45"))
	place(t, e, marketSpec("MSFT", domain.OrderSideSell, 40))

	acct, err := st.GetAccount(ctx, testAccount)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	trades, err := st.ListTrades(ctx, testAccount, 0)
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(trades) != 4 {
		t.Fatalf("len(trades) = %d, want 4", len(trades))
	}

	fees := decimal.Zero
	for _, tr := range trades {
		fees = fees.Add(tr.Brokerage)
	}
	got := acct.Balance.Add(acct.InvestedAmount)
	want := mustDec(t, "1000000").Sub(fees)
	if !got.Equal(want) {
		t.Errorf("balance+invested = %s, want %s (initial minus fees %s)", got, want, fees)
	}
}

func TestLimitOrderStaysPending(t *testing.T) {
	e, st, _ := newTestEngine(t, map[string]float64{"AAPL": 100})
	ctx := context.Background()

	spec := marketSpec("AAPL", domain.OrderSideBuy, 10)
	spec.Type = domain.OrderTypeLimit
	spec.Price = mustDec(t, "95")
	res := place(t, e, spec)
	if !res.Success {
		t.Fatalf("limit order refused: %s", res.Message)
	}
	if res.Order.Status != domain.OrderStatusPending {
		t.Errorf("order status = %s, want PENDING", res.Order.Status)
	}

	acct, _ := st.GetAccount(ctx, testAccount)
	if !acct.Balance.Equal(mustDec(t, "1000000")) {
		t.Errorf("Balance = %s, want 1000000 (no debit before execution)", acct.Balance)
	}
	trades, _ := st.ListTrades(ctx, testAccount, 0)
	if len(trades) != 0 {
		t.Errorf("len(trades) = %d, want 0", len(trades))
	}
}

func TestCancelOrder(t *testing.T) {
	e, _, _ := newTestEngine(t, map[string]float64{"AAPL": 100})
	ctx := context.Background()

	spec := marketSpec("AAPL", domain.OrderSideBuy, 10)
	spec.Type = domain.OrderTypeLimit
	spec.Price = mustDec(t, "95")
	res := place(t, e, spec)

	order, err := e.CancelOrder(ctx, testAccount, res.OrderID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Errorf("order status = %s, want CANCELLED", order.Status)
	}

	// Terminal orders cannot be cancelled again.
	if _, err := e.CancelOrder(ctx, testAccount, res.OrderID); !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Errorf("second cancel = %v, want ErrOrderNotCancellable", err)
	}
	if _, err := e.CancelOrder(ctx, testAccount, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("cancel missing = %v, want ErrOrderNotFound", err)
	}
}

func TestRiskLimits(t *testing.T) {
	e, st, _ := newTestEngine(t, map[string]float64{"AAPL": 100, "MSFT": 50})
	e.risk = NewRiskManager(1, 0.25)
	ctx := context.Background()

	// Above 25% of equity: 3000 shares at 100 = 300000 > 250000.
	res := place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 3000))
	if res.Success {
		t.Fatal("oversized order accepted")
	}
	if !strings.Contains(res.Message, "exceeds limit") {
		t.Errorf("Message = %q, want exceeds limit", res.Message)
	}

	// Within limits.
	if res := place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 10)); !res.Success {
		t.Fatalf("normal order rejected: %s", res.Message)
	}

	// Adding to the existing position is allowed under max_open_positions.
	if res := place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 5)); !res.Success {
		t.Fatalf("add-on order rejected: %s", res.Message)
	}

	// A second distinct position breaches the open-position cap.
	res = place(t, e, marketSpec("MSFT", domain.OrderSideBuy, 10))
	if res.Success {
		t.Fatal("second position accepted over the cap")
	}
	if !strings.Contains(res.Message, "position limit") {
		t.Errorf("Message = %q, want position limit", res.Message)
	}

	positions, _ := st.ListOpenPositions(ctx, testAccount)
	if len(positions) != 1 {
		t.Errorf("len(positions) = %d, want 1", len(positions))
	}
}

func TestGetPortfolio(t *testing.T) {
	e, _, src := newTestEngine(t, map[string]float64{"AAPL": 100})
	ctx := context.Background()

	place(t, e, marketSpec("AAPL", domain.OrderSideBuy, 10))
	src.SetPrice("AAPL", mustDec(t, "110"))
	if _, err := e.RefreshPositions(ctx, testAccount); err != nil {
		t.Fatalf("RefreshPositions: %v", err)
	}

	pf, err := e.GetPortfolio(ctx, testAccount)
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if len(pf.Positions) != 1 {
		t.Fatalf("len(Positions) = %d, want 1", len(pf.Positions))
	}
	if !pf.PositionsValue.Equal(mustDec(t, "1100")) {
		t.Errorf("PositionsValue = %s, want 1100", pf.PositionsValue)
	}
	// 998999.70 cash + 1100 marked value.
	if !pf.TotalValue.Equal(mustDec(t, "1000099.70")) {
		t.Errorf("TotalValue = %s, want 1000099.70", pf.TotalValue)
	}
	if !pf.UnrealizedPnL.Equal(mustDec(t, "100")) {
		t.Errorf("UnrealizedPnL = %s, want 100", pf.UnrealizedPnL)
	}
}

func TestGetPortfolioCreatesAccount(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)

	pf, err := e.GetPortfolio(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if !pf.Account.Balance.Equal(mustDec(t, "1000000")) {
		t.Errorf("Balance = %s, want 1000000", pf.Account.Balance)
	}
	if len(pf.Positions) != 0 {
		t.Errorf("len(Positions) = %d, want 0", len(pf.Positions))
	}
}
