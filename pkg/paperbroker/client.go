// Package paperbroker provides a Go SDK for the paperbroker-server API.
package paperbroker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ClientOpts configures a Client.
type ClientOpts struct {
	// BaseURL of the server, e.g. "http://localhost:8080".
	BaseURL string
	// Account routes requests to a specific account. Empty uses the
	// server's default account.
	Account string
	// HTTPClient overrides the default client (30 second timeout).
	HTTPClient *http.Client
}

// Client provides a Go SDK for interacting with the paperbroker-server API.
type Client struct {
	baseURL    string
	account    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(opts ClientOpts) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		account:    opts.Account,
		httpClient: httpClient,
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// GetPortfolio retrieves the account summary with open positions.
func (c *Client) GetPortfolio(ctx context.Context) (*Portfolio, error) {
	var pf Portfolio
	if err := c.get(ctx, "/api/portfolio", nil, &pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

// GetPositions retrieves current open positions.
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	var resp struct {
		Positions []Position `json:"positions"`
	}
	if err := c.get(ctx, "/api/positions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// GetOrders retrieves the most recent orders, newest first. A limit of zero
// or less uses the server default.
func (c *Client) GetOrders(ctx context.Context, limit int) ([]Order, error) {
	var resp struct {
		Orders []Order `json:"orders"`
	}
	if err := c.get(ctx, "/api/orders", limitQuery(limit), &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// PlaceOrder submits a new order. A rejected order is not an error: the
// result carries Success false and the rejection reason in Message.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*PlaceResult, error) {
	var res PlaceResult
	if err := c.do(ctx, http.MethodPost, "/api/orders", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelOrder cancels a pending order by ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*CancelResult, error) {
	var res CancelResult
	if err := c.do(ctx, http.MethodDelete, "/api/orders/"+url.PathEscape(orderID), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetTrades retrieves the most recent trades, newest first. A limit of zero
// or less uses the server default.
func (c *Client) GetTrades(ctx context.Context, limit int) ([]Trade, error) {
	var resp struct {
		Trades []Trade `json:"trades"`
	}
	if err := c.get(ctx, "/api/trades", limitQuery(limit), &resp); err != nil {
		return nil, err
	}
	return resp.Trades, nil
}

// GetStats retrieves trade statistics for the account.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.get(ctx, "/api/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetWatchlist retrieves the watchlist with live quotes where available.
func (c *Client) GetWatchlist(ctx context.Context) ([]WatchlistItem, error) {
	var resp struct {
		Items []WatchlistItem `json:"items"`
	}
	if err := c.get(ctx, "/api/watchlist", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// AddToWatchlist adds a symbol to the watchlist. Adding a symbol that is
// already present is a no-op.
func (c *Client) AddToWatchlist(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodPut, "/api/watchlist/"+url.PathEscape(symbol), nil, nil, nil)
}

// RemoveFromWatchlist removes a symbol from the watchlist.
func (c *Client) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	return c.do(ctx, http.MethodDelete, "/api/watchlist/"+url.PathEscape(symbol), nil, nil, nil)
}

// GetQuote retrieves the current quote for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	var q Quote
	if err := c.get(ctx, "/api/quote/"+url.PathEscape(symbol), nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// ---------------------------------------------------------------------------
// Transport helpers
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if query == nil {
		query = url.Values{}
	}
	if c.account != "" && query.Get("account") == "" {
		query.Set("account", c.account)
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// apiError extracts the error message from a failed response.
func apiError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	}
	return apiErr
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}
