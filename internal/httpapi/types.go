// Package httpapi provides the HTTP REST API for the paper trading engine,
// serving portfolio, position, order, and trade data as JSON and accepting
// order placement, cancellation, and watchlist edits.
package httpapi

import (
	"paperbroker/internal/domain"
)

// PositionsResponse lists the account's open positions.
type PositionsResponse struct {
	Positions []domain.Position `json:"positions"`
}

// OrdersResponse lists orders, newest first.
type OrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// TradesResponse lists executed trades, newest first.
type TradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}

// WatchlistItem is a watchlist entry decorated with a live quote when the
// price source has one for the symbol.
type WatchlistItem struct {
	domain.WatchlistEntry
	Quote *domain.Quote `json:"quote,omitempty"`
}

// WatchlistResponse lists the account's watchlist in insertion order.
type WatchlistResponse struct {
	Items []WatchlistItem `json:"items"`
}

// CancelResponse reports the outcome of an order cancellation.
type CancelResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Order   *domain.Order `json:"order,omitempty"`
}
