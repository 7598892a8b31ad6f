package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/pkg/paperbroker"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: paperbroker-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  portfolio              Show account balance and open positions\n")
	fmt.Fprintf(os.Stderr, "  buy SYMBOL QTY         Place a buy order\n")
	fmt.Fprintf(os.Stderr, "  sell SYMBOL QTY        Place a sell order\n")
	fmt.Fprintf(os.Stderr, "  orders [-limit N]      List recent orders\n")
	fmt.Fprintf(os.Stderr, "  cancel ORDER_ID        Cancel a pending order\n")
	fmt.Fprintf(os.Stderr, "  trades [-limit N]      List recent trades\n")
	fmt.Fprintf(os.Stderr, "  stats                  Show trading statistics\n")
	fmt.Fprintf(os.Stderr, "  watch [add|rm SYMBOL]  Show or edit the watchlist\n")
	fmt.Fprintf(os.Stderr, "  quote SYMBOL           Show the current quote for a symbol\n")
	fmt.Fprintf(os.Stderr, "  version                Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
	fmt.Fprintf(os.Stderr, "  PAPERBROKER_URL      server address (default http://localhost:8080)\n")
	fmt.Fprintf(os.Stderr, "  PAPERBROKER_ACCOUNT  account id (default: server's default account)\n")
}

func main() {
	flag.Usage = usage

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := paperbroker.NewClient(paperbroker.ClientOpts{
		BaseURL: serverURL(),
		Account: os.Getenv("PAPERBROKER_ACCOUNT"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("paperbroker-cli %s\n", version)

	case "portfolio":
		err = showPortfolio(ctx, client)

	case "buy":
		err = placeOrder(ctx, client, "BUY", os.Args[2:])

	case "sell":
		err = placeOrder(ctx, client, "SELL", os.Args[2:])

	case "orders":
		err = showOrders(ctx, client, os.Args[2:])

	case "cancel":
		err = cancelOrder(ctx, client, os.Args[2:])

	case "trades":
		err = showTrades(ctx, client, os.Args[2:])

	case "stats":
		err = showStats(ctx, client)

	case "watch":
		err = watch(ctx, client, os.Args[2:])

	case "quote":
		err = showQuote(ctx, client, os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serverURL() string {
	if u := os.Getenv("PAPERBROKER_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func showPortfolio(ctx context.Context, c *paperbroker.Client) error {
	pf, err := c.GetPortfolio(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Account %s\n", pf.Account.ID)
	fmt.Printf("  %-16s %14s\n", "Balance", money(pf.Account.Balance))
	fmt.Printf("  %-16s %14s\n", "Invested", money(pf.Account.InvestedAmount))
	fmt.Printf("  %-16s %14s\n", "Positions value", money(pf.PositionsValue))
	fmt.Printf("  %-16s %14s\n", "Total value", money(pf.TotalValue))
	fmt.Printf("  %-16s %14s\n", "Unrealized P&L", money(pf.UnrealizedPnL))
	fmt.Printf("  %-16s %14s\n", "Realized P&L", money(pf.Account.TotalPnL))
	fmt.Printf("  %-16s %14s\n", "Day P&L", money(pf.Account.DayPnL))

	if len(pf.Positions) == 0 {
		fmt.Println("\nNo open positions.")
		return nil
	}
	fmt.Printf("\n  %-12s %6s %10s %10s %12s %8s\n", "Symbol", "Qty", "Avg", "Last", "P&L", "P&L%")
	for _, p := range pf.Positions {
		fmt.Printf("  %-12s %6d %10s %10s %12s %7s%%\n",
			describeInstrument(p.Symbol, p.InstrumentType, p.OptionType, p.StrikePrice, p.ExpiryDate),
			p.Quantity, money(p.AvgPrice), money(p.CurrentPrice),
			money(p.PnL), p.PnLPercent.StringFixed(2))
	}
	return nil
}

func describeInstrument(symbol, instrumentType, optionType string, strike decimal.Decimal, expiry string) string {
	if instrumentType != "OPTION" {
		return symbol
	}
	return fmt.Sprintf("%s %s %s %s", symbol, strike.String(), optionType, expiry)
}

func placeOrder(ctx context.Context, c *paperbroker.Client, side string, args []string) error {
	fs := flag.NewFlagSet(strings.ToLower(side), flag.ExitOnError)
	orderType := fs.String("type", "MARKET", "order type: MARKET, LIMIT, SL, SL-M")
	price := fs.Float64("price", 0, "limit price (LIMIT and SL orders)")
	trigger := fs.Float64("trigger", 0, "trigger price (SL and SL-M orders)")
	option := fs.String("option", "", "option type: CE or PE (options only)")
	strike := fs.Float64("strike", 0, "strike price (options only)")
	expiry := fs.String("expiry", "", "expiry date YYYY-MM-DD (options only)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: paperbroker-cli %s SYMBOL QUANTITY [options]\n\nOptions:\n", strings.ToLower(side))
		fs.PrintDefaults()
	}

	if len(args) < 2 {
		fs.Usage()
		os.Exit(1)
	}
	symbol := strings.ToUpper(args[0])
	qty, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("bad quantity %q", args[1])
	}
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	req := paperbroker.OrderRequest{
		Symbol:         symbol,
		InstrumentType: "EQUITY",
		Type:           strings.ToUpper(*orderType),
		Side:           side,
		Quantity:       qty,
		Price:          decimal.NewFromFloat(*price),
		TriggerPrice:   decimal.NewFromFloat(*trigger),
	}
	if *option != "" {
		req.InstrumentType = "OPTION"
		req.OptionType = strings.ToUpper(*option)
		req.StrikePrice = decimal.NewFromFloat(*strike)
		req.ExpiryDate = *expiry
	}

	res, err := c.PlaceOrder(ctx, req)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("order rejected: %s", res.Message)
	}
	fmt.Printf("order %s: %s\n", res.OrderID, res.Message)
	if res.Order != nil && res.Order.Status == "EXECUTED" {
		fmt.Printf("filled %d @ %s\n", res.Order.FilledQuantity, money(res.Order.AvgFilledPrice))
	}
	return nil
}

func parseLimitFlag(name string, args []string) (int, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	limit := fs.Int("limit", 20, "max rows to show")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	return *limit, nil
}

func showOrders(ctx context.Context, c *paperbroker.Client, args []string) error {
	limit, err := parseLimitFlag("orders", args)
	if err != nil {
		return err
	}
	orders, err := c.GetOrders(ctx, limit)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("No orders.")
		return nil
	}

	fmt.Printf("  %-16s %-9s %-4s %-6s %-12s %6s %10s %-9s\n",
		"Time", "ID", "Side", "Type", "Symbol", "Qty", "Price", "Status")
	for _, o := range orders {
		price := o.Price
		if o.Status == "EXECUTED" {
			price = o.AvgFilledPrice
		}
		fmt.Printf("  %-16s %-9s %-4s %-6s %-12s %6d %10s %-9s\n",
			o.OrderTime.Local().Format("2006-01-02 15:04"), o.ID, o.Side, o.Type,
			o.Symbol, o.Quantity, money(price), o.Status)
		if o.Reason != "" {
			fmt.Printf("%45s %s\n", "", o.Reason)
		}
	}
	return nil
}

func cancelOrder(ctx context.Context, c *paperbroker.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: paperbroker-cli cancel ORDER_ID")
	}
	res, err := c.CancelOrder(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(res.Message)
	return nil
}

func showTrades(ctx context.Context, c *paperbroker.Client, args []string) error {
	limit, err := parseLimitFlag("trades", args)
	if err != nil {
		return err
	}
	trades, err := c.GetTrades(ctx, limit)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Println("No trades.")
		return nil
	}

	fmt.Printf("  %-16s %-4s %-12s %6s %10s %12s %8s %10s\n",
		"Time", "Side", "Symbol", "Qty", "Price", "Value", "Fee", "P&L")
	for _, t := range trades {
		fmt.Printf("  %-16s %-4s %-12s %6d %10s %12s %8s %10s\n",
			t.TradeTime.Local().Format("2006-01-02 15:04"), t.Side, t.Symbol,
			t.Quantity, money(t.Price), money(t.TradeValue), money(t.Brokerage),
			money(t.RealizedPnL))
	}
	return nil
}

func showStats(ctx context.Context, c *paperbroker.Client) error {
	stats, err := c.GetStats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("  %-16s %10d\n", "Trades", stats.TotalTrades)
	fmt.Printf("  %-16s %10d\n", "Buys", stats.BuyTrades)
	fmt.Printf("  %-16s %10d\n", "Sells", stats.SellTrades)
	fmt.Printf("  %-16s %10d\n", "Symbols", stats.UniqueSymbols)
	fmt.Printf("  %-16s %9s%%\n", "Win rate", stats.WinRate.StringFixed(2))
	fmt.Printf("  %-16s %10s\n", "Realized P&L", money(stats.RealizedPnL))
	fmt.Printf("  %-16s %10s\n", "Fees", money(stats.TotalFees))
	fmt.Printf("  %-16s %10s\n", "Turnover", money(stats.Turnover))

	if len(stats.BySymbol) > 0 {
		fmt.Printf("\n  %-12s %7s %12s %10s %12s\n", "Symbol", "Trades", "P&L", "Fees", "Turnover")
		for _, s := range stats.BySymbol {
			fmt.Printf("  %-12s %7d %12s %10s %12s\n",
				s.Symbol, s.Trades, money(s.RealizedPnL), money(s.Fees), money(s.Turnover))
		}
	}
	return nil
}

func watch(ctx context.Context, c *paperbroker.Client, args []string) error {
	if len(args) == 0 {
		items, err := c.GetWatchlist(ctx)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("Watchlist is empty.")
			return nil
		}
		fmt.Printf("  %-12s %10s %10s %8s\n", "Symbol", "Price", "Change", "Change%")
		for _, it := range items {
			if it.Quote == nil {
				fmt.Printf("  %-12s %10s %10s %8s\n", it.Symbol, "-", "-", "-")
				continue
			}
			fmt.Printf("  %-12s %10s %10s %7s%%\n", it.Symbol,
				money(it.Quote.Price), money(it.Quote.Change),
				it.Quote.ChangePercent.StringFixed(2))
		}
		return nil
	}

	if len(args) < 2 {
		return fmt.Errorf("usage: paperbroker-cli watch [add|rm SYMBOL]")
	}
	symbol := strings.ToUpper(args[1])
	switch args[0] {
	case "add":
		if err := c.AddToWatchlist(ctx, symbol); err != nil {
			return err
		}
		fmt.Printf("added %s\n", symbol)
	case "rm", "remove":
		if err := c.RemoveFromWatchlist(ctx, symbol); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", symbol)
	default:
		return fmt.Errorf("usage: paperbroker-cli watch [add|rm SYMBOL]")
	}
	return nil
}

func showQuote(ctx context.Context, c *paperbroker.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: paperbroker-cli quote SYMBOL")
	}
	q, err := c.GetQuote(ctx, strings.ToUpper(args[0]))
	if err != nil {
		return err
	}
	if q.PrevClose.IsZero() {
		fmt.Printf("%s  %s\n", q.Symbol, money(q.Price))
		return nil
	}
	change := money(q.Change)
	if q.Change.IsPositive() {
		change = "+" + change
	}
	fmt.Printf("%s  %s  %s (%s%%)\n", q.Symbol, money(q.Price), change, q.ChangePercent.StringFixed(2))
	return nil
}
