package paperbroker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(ClientOpts{BaseURL: "http://localhost:9035/"})

	if c.baseURL != "http://localhost:9035" {
		t.Errorf("baseURL = %q, want trailing slash stripped", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
	if c.httpClient.Timeout == 0 {
		t.Error("default client has no timeout")
	}
}

func TestGetPortfolio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/portfolio" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("account"); got != "swing" {
			t.Errorf("account param = %q, want swing", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"account": {"account_id": "swing", "balance": "998999.70", "invested_amount": "1000"},
			"positions": [{"symbol": "AAPL", "quantity": 10, "avg_price": "100"}],
			"positions_value": "1000",
			"total_value": "999999.70",
			"unrealized_pnl": "0"
		}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOpts{BaseURL: srv.URL, Account: "swing"})
	pf, err := c.GetPortfolio(context.Background())
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if pf.Account.ID != "swing" {
		t.Errorf("account id = %q, want swing", pf.Account.ID)
	}
	if want := "998999.7"; pf.Account.Balance.String() != want {
		t.Errorf("balance = %s, want %s", pf.Account.Balance, want)
	}
	if len(pf.Positions) != 1 || pf.Positions[0].Symbol != "AAPL" {
		t.Errorf("positions = %+v", pf.Positions)
	}
}

func TestPlaceOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/orders" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Symbol != "AAPL" || req.Side != "BUY" || req.Quantity != 10 {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "message": "order executed", "order_id": "ab12cd34"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOpts{BaseURL: srv.URL})
	res, err := c.PlaceOrder(context.Background(), OrderRequest{
		Symbol:         "AAPL",
		InstrumentType: "EQUITY",
		Type:           "MARKET",
		Side:           "BUY",
		Quantity:       10,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !res.Success || res.OrderID != "ab12cd34" {
		t.Errorf("result = %+v", res)
	}
}

func TestGetOrdersLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit param = %q, want 5", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"orders": [{"order_id": "x1", "status": "EXECUTED"}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOpts{BaseURL: srv.URL})
	orders, err := c.GetOrders(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetOrders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "x1" {
		t.Errorf("orders = %+v", orders)
	}
}

func TestWatchlistWrites(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(ClientOpts{BaseURL: srv.URL})
	if err := c.AddToWatchlist(context.Background(), "AAPL"); err != nil {
		t.Fatalf("AddToWatchlist: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/api/watchlist/AAPL" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}

	if err := c.RemoveFromWatchlist(context.Background(), "AAPL"); err != nil {
		t.Fatalf("RemoveFromWatchlist: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/watchlist/AAPL" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "order not found"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOpts{BaseURL: srv.URL})
	_, err := c.CancelOrder(context.Background(), "nosuch")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.Message != "order not found" {
		t.Errorf("message = %q", apiErr.Message)
	}
}
