// Package store defines storage interfaces for persisting and retrieving
// ledger state: accounts, positions, orders, trades, and watchlists.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/domain"
)

// AccountStore persists account cash ledgers.
type AccountStore interface {
	// EnsureAccount returns the account with the given id, creating it with
	// the initial balance on first use.
	EnsureAccount(ctx context.Context, id string, initialBalance decimal.Decimal) (*domain.Account, error)

	// GetAccount retrieves an account by id. Returns
	// domain.ErrAccountNotFound when it does not exist.
	GetAccount(ctx context.Context, id string) (*domain.Account, error)

	// ListAccounts returns all account ids, sorted.
	ListAccounts(ctx context.Context) ([]string, error)

	// UpdateAccount persists changes to an existing account.
	UpdateAccount(ctx context.Context, acct *domain.Account) error
}

// PositionStore persists position records.
type PositionStore interface {
	// GetOpenPosition retrieves the open position for the instrument, or
	// (nil, nil) when the account holds none.
	GetOpenPosition(ctx context.Context, accountID string, in domain.Instrument) (*domain.Position, error)

	// ListOpenPositions returns all open positions for the account.
	ListOpenPositions(ctx context.Context, accountID string) ([]domain.Position, error)

	// MarkPosition persists refreshed price and P&L fields for the open
	// position matching pos's instrument.
	MarkPosition(ctx context.Context, accountID string, pos *domain.Position) error
}

// OrderStore persists order records.
type OrderStore interface {
	// SaveOrder inserts a new order.
	SaveOrder(ctx context.Context, order *domain.Order) error

	// GetOrder retrieves a single order by account and id. Returns
	// domain.ErrOrderNotFound when it does not exist.
	GetOrder(ctx context.Context, accountID, id string) (*domain.Order, error)

	// ListOrders returns the account's most recent orders, newest first,
	// up to limit. A non-positive limit returns all of them.
	ListOrders(ctx context.Context, accountID string, limit int) ([]domain.Order, error)

	// ListPendingOrders returns the account's PENDING orders, oldest first.
	ListPendingOrders(ctx context.Context, accountID string) ([]domain.Order, error)

	// UpdateOrder persists changes to an existing order.
	UpdateOrder(ctx context.Context, order *domain.Order) error
}

// TradeStore retrieves immutable fill records. Trades are only written
// through ApplyExecution.
type TradeStore interface {
	// ListTrades returns the account's most recent trades, newest first, up
	// to limit. A non-positive limit returns all of them.
	ListTrades(ctx context.Context, accountID string, limit int) ([]domain.Trade, error)
}

// WatchlistStore persists watchlist entries.
type WatchlistStore interface {
	// AddWatchlist inserts the entry, reporting false when the symbol was
	// already present for the account.
	AddWatchlist(ctx context.Context, entry *domain.WatchlistEntry) (bool, error)

	// ListWatchlist returns the account's watchlist in insertion order.
	ListWatchlist(ctx context.Context, accountID string) ([]domain.WatchlistEntry, error)

	// RemoveWatchlist deletes the symbol from the account's watchlist,
	// reporting whether an entry was removed.
	RemoveWatchlist(ctx context.Context, accountID, symbol string) (bool, error)
}

// ExecutionUpdate is the atomic state change produced by one fill: the
// post-fill account row, the post-fill position row, the immutable trade
// record, and the order in its terminal state. ApplyExecution persists all
// four or none of them.
type ExecutionUpdate struct {
	Account     domain.Account
	Position    domain.Position
	NewPosition bool // insert a fresh position row instead of updating
	Trade       domain.Trade
	Order       domain.Order
}

// ExecutionStore applies fills atomically.
type ExecutionStore interface {
	// ApplyExecution persists the whole update in one transaction. On
	// success the generated trade id is written back into upd.Trade.ID.
	ApplyExecution(ctx context.Context, upd *ExecutionUpdate) error
}

// Store is the full persistence surface the order engine works against.
type Store interface {
	AccountStore
	PositionStore
	OrderStore
	TradeStore
	WatchlistStore
	ExecutionStore
}

// TradeArchiver exports fills to long-term archive files, outside the live
// database. Archiving the same trade twice is a no-op.
type TradeArchiver interface {
	// ArchiveTrades appends the trades to the archive, deduplicating by
	// trade id.
	ArchiveTrades(ctx context.Context, trades []domain.Trade) error

	// ReadArchivedTrades returns archived trades for the account whose trade
	// time falls within [start, end], oldest first.
	ReadArchivedTrades(ctx context.Context, accountID string, start, end time.Time) ([]domain.Trade, error)
}
