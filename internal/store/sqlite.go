package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// timeLayout is RFC3339 with fixed nine-digit fractional seconds so stored
// timestamps sort lexicographically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store backed by a SQLite database. Monetary values
// are stored as exact decimal strings, never as floating point, and all rows
// are scanned by named column lists.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema when missing, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id      TEXT PRIMARY KEY,
			balance         TEXT NOT NULL,
			invested_amount TEXT NOT NULL,
			total_pnl       TEXT NOT NULL,
			day_pnl         TEXT NOT NULL,
			day_date        TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id      TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			instrument_type TEXT NOT NULL,
			option_type     TEXT NOT NULL DEFAULT '',
			strike_price    TEXT NOT NULL DEFAULT '0',
			expiry_date     TEXT NOT NULL DEFAULT '',
			quantity        INTEGER NOT NULL,
			avg_price       TEXT NOT NULL,
			current_price   TEXT NOT NULL DEFAULT '0',
			pnl             TEXT NOT NULL DEFAULT '0',
			pnl_percent     TEXT NOT NULL DEFAULT '0',
			status          TEXT NOT NULL DEFAULT 'OPEN',
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		)`,
		// One open position per instrument; closed rows are kept as history.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open
			ON positions(account_id, symbol, instrument_type, option_type, strike_price, expiry_date)
			WHERE status = 'OPEN'`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id         TEXT PRIMARY KEY,
			account_id       TEXT NOT NULL,
			symbol           TEXT NOT NULL,
			instrument_type  TEXT NOT NULL,
			option_type      TEXT NOT NULL DEFAULT '',
			strike_price     TEXT NOT NULL DEFAULT '0',
			expiry_date      TEXT NOT NULL DEFAULT '',
			order_type       TEXT NOT NULL,
			side             TEXT NOT NULL,
			quantity         INTEGER NOT NULL,
			price            TEXT NOT NULL DEFAULT '0',
			trigger_price    TEXT NOT NULL DEFAULT '0',
			filled_quantity  INTEGER NOT NULL DEFAULT 0,
			avg_filled_price TEXT NOT NULL DEFAULT '0',
			status           TEXT NOT NULL DEFAULT 'PENDING',
			reason           TEXT NOT NULL DEFAULT '',
			order_time       TEXT NOT NULL,
			execution_time   TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_account_time
			ON orders(account_id, order_time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_pending
			ON orders(account_id, order_time) WHERE status = 'PENDING'`,
		`CREATE TABLE IF NOT EXISTS trades (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id        TEXT NOT NULL,
			account_id      TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			instrument_type TEXT NOT NULL,
			option_type     TEXT NOT NULL DEFAULT '',
			strike_price    TEXT NOT NULL DEFAULT '0',
			expiry_date     TEXT NOT NULL DEFAULT '',
			side            TEXT NOT NULL,
			quantity        INTEGER NOT NULL,
			price           TEXT NOT NULL,
			trade_value     TEXT NOT NULL,
			brokerage       TEXT NOT NULL,
			net_value       TEXT NOT NULL,
			realized_pnl    TEXT NOT NULL DEFAULT '0',
			trade_time      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_account_time
			ON trades(account_id, trade_time DESC)`,
		`CREATE TABLE IF NOT EXISTS watchlist (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id      TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			instrument_type TEXT NOT NULL DEFAULT 'EQUITY',
			added_at        TEXT NOT NULL,
			UNIQUE(account_id, symbol)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Column formatting helpers
// ---------------------------------------------------------------------------

func fmtDec(d decimal.Decimal) string { return d.String() }

func parseDec(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// execer covers both *sql.DB and *sql.Tx so row mutations can run inside or
// outside the execution transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ---------------------------------------------------------------------------
// AccountStore implementation
// ---------------------------------------------------------------------------

const accountCols = `account_id, balance, invested_amount, total_pnl, day_pnl, day_date, created_at, updated_at`

// EnsureAccount returns the account with the given id, creating it with the
// initial balance on first use.
func (s *SQLiteStore) EnsureAccount(ctx context.Context, id string, initialBalance decimal.Decimal) (*domain.Account, error) {
	now := fmtTime(time.Now())
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO accounts
		(account_id, balance, invested_amount, total_pnl, day_pnl, day_date, created_at, updated_at)
		VALUES (?, ?, '0', '0', '0', '', ?, ?)`,
		id, fmtDec(initialBalance), now, now)
	if err != nil {
		return nil, fmt.Errorf("creating account %s: %w", id, err)
	}
	return s.GetAccount(ctx, id)
}

// GetAccount retrieves an account by id.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE account_id = ?`, id)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading account %s: %w", id, err)
	}
	return acct, nil
}

// ListAccounts returns all account ids, sorted.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id FROM accounts ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateAccount persists changes to an existing account.
func (s *SQLiteStore) UpdateAccount(ctx context.Context, acct *domain.Account) error {
	return updateAccount(ctx, s.db, acct)
}

func updateAccount(ctx context.Context, ex execer, acct *domain.Account) error {
	res, err := ex.ExecContext(ctx, `UPDATE accounts
		SET balance = ?, invested_amount = ?, total_pnl = ?, day_pnl = ?, day_date = ?, updated_at = ?
		WHERE account_id = ?`,
		fmtDec(acct.Balance), fmtDec(acct.InvestedAmount), fmtDec(acct.TotalPnL),
		fmtDec(acct.DayPnL), acct.DayDate, fmtTime(acct.UpdatedAt), acct.ID)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", acct.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func scanAccount(sc scanner) (*domain.Account, error) {
	var acct domain.Account
	var balance, invested, totalPnL, dayPnL string
	var createdAt, updatedAt string
	if err := sc.Scan(&acct.ID, &balance, &invested, &totalPnL, &dayPnL,
		&acct.DayDate, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if acct.Balance, err = parseDec(balance); err != nil {
		return nil, fmt.Errorf("parsing balance: %w", err)
	}
	if acct.InvestedAmount, err = parseDec(invested); err != nil {
		return nil, fmt.Errorf("parsing invested_amount: %w", err)
	}
	if acct.TotalPnL, err = parseDec(totalPnL); err != nil {
		return nil, fmt.Errorf("parsing total_pnl: %w", err)
	}
	if acct.DayPnL, err = parseDec(dayPnL); err != nil {
		return nil, fmt.Errorf("parsing day_pnl: %w", err)
	}
	if acct.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if acct.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &acct, nil
}

// ---------------------------------------------------------------------------
// PositionStore implementation
// ---------------------------------------------------------------------------

const positionCols = `account_id, symbol, instrument_type, option_type, strike_price, expiry_date,
	quantity, avg_price, current_price, pnl, pnl_percent, status, created_at, updated_at`

// GetOpenPosition retrieves the open position for the instrument, or
// (nil, nil) when the account holds none.
func (s *SQLiteStore) GetOpenPosition(ctx context.Context, accountID string, in domain.Instrument) (*domain.Position, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+positionCols+` FROM positions
		WHERE account_id = ? AND symbol = ? AND instrument_type = ?
		  AND option_type = ? AND strike_price = ? AND expiry_date = ?
		  AND status = 'OPEN'`,
		accountID, in.Symbol, string(in.Type), string(in.OptionType), fmtDec(in.Strike), in.Expiry)
	pos, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading position %s: %w", in.Key(), err)
	}
	return pos, nil
}

// ListOpenPositions returns all open positions for the account.
func (s *SQLiteStore) ListOpenPositions(ctx context.Context, accountID string) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+positionCols+` FROM positions
		WHERE account_id = ? AND status = 'OPEN' ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}

// MarkPosition persists refreshed price and P&L fields for the open position
// matching pos's instrument.
func (s *SQLiteStore) MarkPosition(ctx context.Context, accountID string, pos *domain.Position) error {
	in := pos.Instrument
	res, err := s.db.ExecContext(ctx, `UPDATE positions
		SET current_price = ?, pnl = ?, pnl_percent = ?, updated_at = ?
		WHERE account_id = ? AND symbol = ? AND instrument_type = ?
		  AND option_type = ? AND strike_price = ? AND expiry_date = ?
		  AND status = 'OPEN'`,
		fmtDec(pos.CurrentPrice), fmtDec(pos.PnL), fmtDec(pos.PnLPercent), fmtTime(pos.UpdatedAt),
		accountID, in.Symbol, string(in.Type), string(in.OptionType), fmtDec(in.Strike), in.Expiry)
	if err != nil {
		return fmt.Errorf("marking position %s: %w", in.Key(), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPositionClosed
	}
	return nil
}

func insertPosition(ctx context.Context, ex execer, pos *domain.Position) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO positions
		(account_id, symbol, instrument_type, option_type, strike_price, expiry_date,
		 quantity, avg_price, current_price, pnl, pnl_percent, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.AccountID, pos.Symbol, string(pos.Type), string(pos.OptionType),
		fmtDec(pos.Strike), pos.Expiry, pos.Quantity, fmtDec(pos.AvgPrice),
		fmtDec(pos.CurrentPrice), fmtDec(pos.PnL), fmtDec(pos.PnLPercent),
		string(pos.Status), fmtTime(pos.CreatedAt), fmtTime(pos.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting position %s: %w", pos.Key(), err)
	}
	return nil
}

func updatePositionFill(ctx context.Context, ex execer, pos *domain.Position) error {
	in := pos.Instrument
	res, err := ex.ExecContext(ctx, `UPDATE positions
		SET quantity = ?, avg_price = ?, status = ?, updated_at = ?
		WHERE account_id = ? AND symbol = ? AND instrument_type = ?
		  AND option_type = ? AND strike_price = ? AND expiry_date = ?
		  AND status = 'OPEN'`,
		pos.Quantity, fmtDec(pos.AvgPrice), string(pos.Status), fmtTime(pos.UpdatedAt),
		pos.AccountID, in.Symbol, string(in.Type), string(in.OptionType), fmtDec(in.Strike), in.Expiry)
	if err != nil {
		return fmt.Errorf("updating position %s: %w", in.Key(), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("updating position %s: no open row", in.Key())
	}
	return nil
}

func scanPosition(sc scanner) (*domain.Position, error) {
	var pos domain.Position
	var itype, otype, strike string
	var avgPrice, curPrice, pnl, pnlPercent string
	var status, createdAt, updatedAt string
	if err := sc.Scan(&pos.AccountID, &pos.Symbol, &itype, &otype, &strike, &pos.Expiry,
		&pos.Quantity, &avgPrice, &curPrice, &pnl, &pnlPercent,
		&status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	pos.Type = domain.InstrumentType(itype)
	pos.OptionType = domain.OptionType(otype)
	pos.Status = domain.PositionStatus(status)
	var err error
	if pos.Strike, err = parseDec(strike); err != nil {
		return nil, fmt.Errorf("parsing strike_price: %w", err)
	}
	if pos.AvgPrice, err = parseDec(avgPrice); err != nil {
		return nil, fmt.Errorf("parsing avg_price: %w", err)
	}
	if pos.CurrentPrice, err = parseDec(curPrice); err != nil {
		return nil, fmt.Errorf("parsing current_price: %w", err)
	}
	if pos.PnL, err = parseDec(pnl); err != nil {
		return nil, fmt.Errorf("parsing pnl: %w", err)
	}
	if pos.PnLPercent, err = parseDec(pnlPercent); err != nil {
		return nil, fmt.Errorf("parsing pnl_percent: %w", err)
	}
	if pos.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if pos.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &pos, nil
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

const orderCols = `order_id, account_id, symbol, instrument_type, option_type, strike_price, expiry_date,
	order_type, side, quantity, price, trigger_price, filled_quantity, avg_filled_price,
	status, reason, order_time, execution_time`

// SaveOrder inserts a new order.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order *domain.Order) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO orders
		(order_id, account_id, symbol, instrument_type, option_type, strike_price, expiry_date,
		 order_type, side, quantity, price, trigger_price, filled_quantity, avg_filled_price,
		 status, reason, order_time, execution_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.AccountID, order.Symbol, string(order.Instrument.Type), string(order.OptionType),
		fmtDec(order.Strike), order.Expiry, string(order.Type), string(order.Side),
		order.Quantity, fmtDec(order.Price), fmtDec(order.TriggerPrice),
		order.FilledQuantity, fmtDec(order.AvgFilledPrice), string(order.Status),
		order.Reason, fmtTime(order.OrderTime), fmtTime(order.ExecutionTime))
	if err != nil {
		return fmt.Errorf("saving order %s: %w", order.ID, err)
	}
	return nil
}

// GetOrder retrieves a single order by account and id.
func (s *SQLiteStore) GetOrder(ctx context.Context, accountID, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE account_id = ? AND order_id = ?`, accountID, id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading order %s: %w", id, err)
	}
	return order, nil
}

// ListOrders returns the account's most recent orders, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, accountID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders
		WHERE account_id = ? ORDER BY order_time DESC, order_id DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListPendingOrders returns the account's PENDING orders, oldest first.
func (s *SQLiteStore) ListPendingOrders(ctx context.Context, accountID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders
		WHERE account_id = ? AND status = 'PENDING'
		ORDER BY order_time ASC, order_id ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing pending orders: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// UpdateOrder persists changes to an existing order.
func (s *SQLiteStore) UpdateOrder(ctx context.Context, order *domain.Order) error {
	return updateOrder(ctx, s.db, order)
}

func updateOrder(ctx context.Context, ex execer, order *domain.Order) error {
	res, err := ex.ExecContext(ctx, `UPDATE orders
		SET filled_quantity = ?, avg_filled_price = ?, status = ?, reason = ?, execution_time = ?
		WHERE account_id = ? AND order_id = ?`,
		order.FilledQuantity, fmtDec(order.AvgFilledPrice), string(order.Status),
		order.Reason, fmtTime(order.ExecutionTime), order.AccountID, order.ID)
	if err != nil {
		return fmt.Errorf("updating order %s: %w", order.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func scanOrder(sc scanner) (*domain.Order, error) {
	var order domain.Order
	var itype, otype, strike string
	var price, trigger, avgFilled string
	var orderType, side, status string
	var orderTime, executionTime string
	if err := sc.Scan(&order.ID, &order.AccountID, &order.Symbol, &itype, &otype, &strike,
		&order.Expiry, &orderType, &side, &order.Quantity, &price, &trigger,
		&order.FilledQuantity, &avgFilled, &status, &order.Reason,
		&orderTime, &executionTime); err != nil {
		return nil, err
	}
	order.Instrument.Type = domain.InstrumentType(itype)
	order.OptionType = domain.OptionType(otype)
	order.Type = domain.OrderType(orderType)
	order.Side = domain.OrderSide(side)
	order.Status = domain.OrderStatus(status)
	var err error
	if order.Strike, err = parseDec(strike); err != nil {
		return nil, fmt.Errorf("parsing strike_price: %w", err)
	}
	if order.Price, err = parseDec(price); err != nil {
		return nil, fmt.Errorf("parsing price: %w", err)
	}
	if order.TriggerPrice, err = parseDec(trigger); err != nil {
		return nil, fmt.Errorf("parsing trigger_price: %w", err)
	}
	if order.AvgFilledPrice, err = parseDec(avgFilled); err != nil {
		return nil, fmt.Errorf("parsing avg_filled_price: %w", err)
	}
	if order.OrderTime, err = parseTime(orderTime); err != nil {
		return nil, fmt.Errorf("parsing order_time: %w", err)
	}
	if order.ExecutionTime, err = parseTime(executionTime); err != nil {
		return nil, fmt.Errorf("parsing execution_time: %w", err)
	}
	return &order, nil
}

// ---------------------------------------------------------------------------
// TradeStore implementation
// ---------------------------------------------------------------------------

const tradeCols = `id, order_id, account_id, symbol, instrument_type, option_type, strike_price, expiry_date,
	side, quantity, price, trade_value, brokerage, net_value, realized_pnl, trade_time`

// ListTrades returns the account's most recent trades, newest first.
func (s *SQLiteStore) ListTrades(ctx context.Context, accountID string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+tradeCols+` FROM trades
		WHERE account_id = ? ORDER BY trade_time DESC, id DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		trades = append(trades, *trade)
	}
	return trades, rows.Err()
}

func insertTrade(ctx context.Context, ex execer, trade *domain.Trade) (int64, error) {
	res, err := ex.ExecContext(ctx, `INSERT INTO trades
		(order_id, account_id, symbol, instrument_type, option_type, strike_price, expiry_date,
		 side, quantity, price, trade_value, brokerage, net_value, realized_pnl, trade_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.OrderID, trade.AccountID, trade.Symbol, string(trade.Type), string(trade.OptionType),
		fmtDec(trade.Strike), trade.Expiry, string(trade.Side), trade.Quantity,
		fmtDec(trade.Price), fmtDec(trade.TradeValue), fmtDec(trade.Brokerage),
		fmtDec(trade.NetValue), fmtDec(trade.RealizedPnL), fmtTime(trade.TradeTime))
	if err != nil {
		return 0, fmt.Errorf("inserting trade for order %s: %w", trade.OrderID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading trade id: %w", err)
	}
	return id, nil
}

func scanTrade(sc scanner) (*domain.Trade, error) {
	var trade domain.Trade
	var itype, otype, strike, side string
	var price, value, brokerage, net, realized string
	var tradeTime string
	if err := sc.Scan(&trade.ID, &trade.OrderID, &trade.AccountID, &trade.Symbol,
		&itype, &otype, &strike, &trade.Expiry, &side, &trade.Quantity,
		&price, &value, &brokerage, &net, &realized, &tradeTime); err != nil {
		return nil, err
	}
	trade.Type = domain.InstrumentType(itype)
	trade.OptionType = domain.OptionType(otype)
	trade.Side = domain.OrderSide(side)
	var err error
	if trade.Strike, err = parseDec(strike); err != nil {
		return nil, fmt.Errorf("parsing strike_price: %w", err)
	}
	if trade.Price, err = parseDec(price); err != nil {
		return nil, fmt.Errorf("parsing price: %w", err)
	}
	if trade.TradeValue, err = parseDec(value); err != nil {
		return nil, fmt.Errorf("parsing trade_value: %w", err)
	}
	if trade.Brokerage, err = parseDec(brokerage); err != nil {
		return nil, fmt.Errorf("parsing brokerage: %w", err)
	}
	if trade.NetValue, err = parseDec(net); err != nil {
		return nil, fmt.Errorf("parsing net_value: %w", err)
	}
	if trade.RealizedPnL, err = parseDec(realized); err != nil {
		return nil, fmt.Errorf("parsing realized_pnl: %w", err)
	}
	if trade.TradeTime, err = parseTime(tradeTime); err != nil {
		return nil, fmt.Errorf("parsing trade_time: %w", err)
	}
	return &trade, nil
}

// ---------------------------------------------------------------------------
// WatchlistStore implementation
// ---------------------------------------------------------------------------

// AddWatchlist inserts the entry, reporting false when the symbol was
// already present for the account.
func (s *SQLiteStore) AddWatchlist(ctx context.Context, entry *domain.WatchlistEntry) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO watchlist
		(account_id, symbol, instrument_type, added_at) VALUES (?, ?, ?, ?)`,
		entry.AccountID, entry.Symbol, string(entry.InstrumentType), fmtTime(entry.AddedAt))
	if err != nil {
		return false, fmt.Errorf("adding %s to watchlist: %w", entry.Symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adding %s to watchlist: %w", entry.Symbol, err)
	}
	if n == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return true, nil
}

// ListWatchlist returns the account's watchlist in insertion order.
func (s *SQLiteStore) ListWatchlist(ctx context.Context, accountID string) ([]domain.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, account_id, symbol, instrument_type, added_at
		FROM watchlist WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing watchlist: %w", err)
	}
	defer rows.Close()

	var entries []domain.WatchlistEntry
	for rows.Next() {
		var (
			entry        domain.WatchlistEntry
			itype, added string
		)
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Symbol, &itype, &added); err != nil {
			return nil, fmt.Errorf("scanning watchlist entry: %w", err)
		}
		entry.InstrumentType = domain.InstrumentType(itype)
		if entry.AddedAt, err = parseTime(added); err != nil {
			return nil, fmt.Errorf("parsing added_at: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RemoveWatchlist deletes the symbol from the account's watchlist.
func (s *SQLiteStore) RemoveWatchlist(ctx context.Context, accountID, symbol string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE account_id = ? AND symbol = ?`, accountID, symbol)
	if err != nil {
		return false, fmt.Errorf("removing %s from watchlist: %w", symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("removing %s from watchlist: %w", symbol, err)
	}
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// ExecutionStore implementation
// ---------------------------------------------------------------------------

// ApplyExecution persists the whole update in one transaction: account,
// position, trade, and order move together or not at all.
func (s *SQLiteStore) ApplyExecution(ctx context.Context, upd *ExecutionUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning execution tx: %w", err)
	}
	defer tx.Rollback()

	if err := updateAccount(ctx, tx, &upd.Account); err != nil {
		return err
	}
	if upd.NewPosition {
		if err := insertPosition(ctx, tx, &upd.Position); err != nil {
			return err
		}
	} else {
		if err := updatePositionFill(ctx, tx, &upd.Position); err != nil {
			return err
		}
	}
	id, err := insertTrade(ctx, tx, &upd.Trade)
	if err != nil {
		return err
	}
	upd.Trade.ID = id
	if err := updateOrder(ctx, tx, &upd.Order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing execution: %w", err)
	}
	return nil
}
