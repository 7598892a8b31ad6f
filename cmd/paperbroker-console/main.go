package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"paperbroker/pkg/paperbroker"
)

// Styles.
var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	errHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	priceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
)

var tabNames = []string{"positions", "orders", "trades", "watchlist"}

// Messages.
type tickMsg time.Time

type dataMsg struct {
	portfolio *paperbroker.Portfolio
	orders    []paperbroker.Order
	trades    []paperbroker.Trade
	watchlist []paperbroker.WatchlistItem
	err       error
}

func tickCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model.
type model struct {
	client *paperbroker.Client
	logger *slog.Logger

	portfolio *paperbroker.Portfolio
	orders    []paperbroker.Order
	trades    []paperbroker.Trade
	watchlist []paperbroker.WatchlistItem
	fetchErr  string
	lastSync  time.Time

	tab int // index into tabNames

	viewport      viewport.Model
	ready         bool
	width, height int
}

func initialModel(client *paperbroker.Client, logger *slog.Logger) model {
	return model{
		client: client,
		logger: logger,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), tickCmd())
}

// fetchCmd loads a full snapshot from the server in the background.
func (m model) fetchCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pf, err := client.GetPortfolio(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		orders, err := client.GetOrders(ctx, 50)
		if err != nil {
			return dataMsg{err: err}
		}
		trades, err := client.GetTrades(ctx, 50)
		if err != nil {
			return dataMsg{err: err}
		}
		wl, err := client.GetWatchlist(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{portfolio: pf, orders: orders, trades: trades, watchlist: wl}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.fetchCmd()
		case "tab":
			m.tab = (m.tab + 1) % len(tabNames)
			if m.ready {
				m.viewport.SetContent(m.renderContent())
				m.viewport.GotoTop()
			}
			return m, nil
		case "1", "2", "3", "4":
			m.tab = int(msg.String()[0] - '1')
			if m.ready {
				m.viewport.SetContent(m.renderContent())
				m.viewport.GotoTop()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerH := 1
		footerH := 1
		vpHeight := m.height - headerH - footerH
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
			m.viewport.SetContent(m.renderContent())
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), tickCmd())

	case dataMsg:
		if msg.err != nil {
			m.fetchErr = msg.err.Error()
			m.logger.Warn("fetch failed", "error", msg.err)
		} else {
			m.fetchErr = ""
			m.portfolio = msg.portfolio
			m.orders = msg.orders
			m.trades = msg.trades
			m.watchlist = msg.watchlist
			m.lastSync = time.Now()
		}
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "Connecting..."
	}

	var headerBar string
	if m.fetchErr != "" {
		headerBar = errHeaderStyle.Render(padOrTrunc(" paperbroker  server unreachable: "+m.fetchErr+" ", m.width))
	} else if m.portfolio == nil {
		headerBar = headerStyle.Render(padOrTrunc(" paperbroker  loading... ", m.width))
	} else {
		a := m.portfolio.Account
		headerText := fmt.Sprintf(
			" %s  balance: %s  total: %s  unrl: %s  rlzd: %s  day: %s  [%s] %s ",
			a.ID,
			money(a.Balance),
			money(m.portfolio.TotalValue),
			money(m.portfolio.UnrealizedPnL),
			money(a.TotalPnL),
			money(a.DayPnL),
			tabNames[m.tab],
			m.lastSync.Format("15:04:05"),
		)
		headerBar = headerStyle.Render(padOrTrunc(headerText, m.width))
	}

	pct := m.viewport.ScrollPercent() * 100
	footerLeft := " q quit  r refresh  1-4/tab views  pgup/dn scroll"
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := m.width - len(footerLeft) - len(footerRight)
	if gap < 0 {
		gap = 0
	}
	footerBar := footerStyle.Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	return headerBar + "\n" + m.viewport.View() + "\n" + footerBar
}

func (m *model) renderContent() string {
	var b strings.Builder
	label := fmt.Sprintf("  %s  ", strings.ToUpper(tabNames[m.tab]))
	b.WriteString(sectionStyle.Width(m.width).Render(label))
	b.WriteString("\n\n")

	switch m.tab {
	case 0:
		m.renderPositions(&b)
	case 1:
		m.renderOrders(&b)
	case 2:
		m.renderTrades(&b)
	case 3:
		m.renderWatchlist(&b)
	}
	return b.String()
}

func (m *model) renderPositions(b *strings.Builder) {
	if m.portfolio == nil || len(m.portfolio.Positions) == 0 {
		b.WriteString(dimStyle.Render("  (no open positions)"))
		b.WriteString("\n")
		return
	}
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-22s %7s %10s %10s %12s %8s",
		"Symbol", "Qty", "Avg", "Last", "P&L", "P&L%")))
	b.WriteString("\n")
	for _, p := range m.portfolio.Positions {
		b.WriteString(symbolStyle.Render(fmt.Sprintf("  %-22s", positionLabel(p))))
		b.WriteString(fmt.Sprintf(" %7d", p.Quantity))
		b.WriteString(priceStyle.Render(fmt.Sprintf(" %10s", money(p.AvgPrice))))
		b.WriteString(priceStyle.Render(fmt.Sprintf(" %10s", money(p.CurrentPrice))))
		st := pnlStyle(p.PnL)
		b.WriteString(st.Render(fmt.Sprintf(" %12s", money(p.PnL))))
		b.WriteString(st.Render(fmt.Sprintf(" %7s%%", p.PnLPercent.StringFixed(2))))
		b.WriteString("\n")
	}
}

func (m *model) renderOrders(b *strings.Builder) {
	if len(m.orders) == 0 {
		b.WriteString(dimStyle.Render("  (no orders)"))
		b.WriteString("\n")
		return
	}
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-12s %-9s %-4s %-6s %-12s %7s %10s %-9s",
		"Time", "ID", "Side", "Type", "Symbol", "Qty", "Price", "Status")))
	b.WriteString("\n")
	for _, o := range m.orders {
		price := o.Price
		if o.Status == "EXECUTED" {
			price = o.AvgFilledPrice
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %-12s", o.OrderTime.Local().Format("Jan 02 15:04"))))
		b.WriteString(fmt.Sprintf(" %-9s", o.ID))
		b.WriteString(sideStyle(o.Side).Render(fmt.Sprintf(" %-4s", o.Side)))
		b.WriteString(fmt.Sprintf(" %-6s", o.Type))
		b.WriteString(symbolStyle.Render(fmt.Sprintf(" %-12s", o.Symbol)))
		b.WriteString(fmt.Sprintf(" %7d", o.Quantity))
		b.WriteString(priceStyle.Render(fmt.Sprintf(" %10s", money(price))))
		b.WriteString(statusStyle(o.Status).Render(fmt.Sprintf(" %-9s", o.Status)))
		if o.Reason != "" && o.Status == "REJECTED" {
			b.WriteString(dimStyle.Render("  " + o.Reason))
		}
		b.WriteString("\n")
	}
}

func (m *model) renderTrades(b *strings.Builder) {
	if len(m.trades) == 0 {
		b.WriteString(dimStyle.Render("  (no trades)"))
		b.WriteString("\n")
		return
	}
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-12s %-4s %-12s %7s %10s %12s %8s %10s",
		"Time", "Side", "Symbol", "Qty", "Price", "Value", "Fee", "P&L")))
	b.WriteString("\n")
	for _, t := range m.trades {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %-12s", t.TradeTime.Local().Format("Jan 02 15:04"))))
		b.WriteString(sideStyle(t.Side).Render(fmt.Sprintf(" %-4s", t.Side)))
		b.WriteString(symbolStyle.Render(fmt.Sprintf(" %-12s", t.Symbol)))
		b.WriteString(fmt.Sprintf(" %7d", t.Quantity))
		b.WriteString(priceStyle.Render(fmt.Sprintf(" %10s", money(t.Price))))
		b.WriteString(priceStyle.Render(fmt.Sprintf(" %12s", money(t.TradeValue))))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %8s", money(t.Brokerage))))
		b.WriteString(pnlStyle(t.RealizedPnL).Render(fmt.Sprintf(" %10s", money(t.RealizedPnL))))
		b.WriteString("\n")
	}
}

func (m *model) renderWatchlist(b *strings.Builder) {
	if len(m.watchlist) == 0 {
		b.WriteString(dimStyle.Render("  (watchlist is empty)"))
		b.WriteString("\n")
		return
	}
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-12s %10s %10s %8s",
		"Symbol", "Price", "Change", "Change%")))
	b.WriteString("\n")
	for _, it := range m.watchlist {
		b.WriteString(symbolStyle.Render(fmt.Sprintf("  %-12s", it.Symbol)))
		if it.Quote == nil {
			b.WriteString(dimStyle.Render(fmt.Sprintf(" %10s %10s %8s", "-", "-", "-")))
			b.WriteString("\n")
			continue
		}
		b.WriteString(priceStyle.Render(fmt.Sprintf(" %10s", money(it.Quote.Price))))
		st := pnlStyle(it.Quote.Change)
		b.WriteString(st.Render(fmt.Sprintf(" %10s", money(it.Quote.Change))))
		b.WriteString(st.Render(fmt.Sprintf(" %7s%%", it.Quote.ChangePercent.StringFixed(2))))
		b.WriteString("\n")
	}
}

func positionLabel(p paperbroker.Position) string {
	if p.InstrumentType != "OPTION" {
		return p.Symbol
	}
	return fmt.Sprintf("%s %s %s %s", p.Symbol, p.StrikePrice.String(), p.OptionType, p.ExpiryDate)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func pnlStyle(d decimal.Decimal) lipgloss.Style {
	switch {
	case d.IsPositive():
		return gainStyle
	case d.IsNegative():
		return lossStyle
	default:
		return dimStyle
	}
}

func sideStyle(side string) lipgloss.Style {
	if side == "BUY" {
		return gainStyle
	}
	return lossStyle
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "EXECUTED":
		return gainStyle
	case "REJECTED":
		return lossStyle
	case "PENDING":
		return pendingStyle
	default:
		return dimStyle
	}
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}

func main() {
	baseURL := "http://localhost:8080"
	if u := os.Getenv("PAPERBROKER_URL"); u != "" {
		baseURL = u
	}

	logPath := fmt.Sprintf("/tmp/paperbroker-console-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo}))

	client := paperbroker.NewClient(paperbroker.ClientOpts{
		BaseURL: baseURL,
		Account: os.Getenv("PAPERBROKER_ACCOUNT"),
	})

	p := tea.NewProgram(
		initialModel(client, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
