package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paperbroker/internal/domain"
	"paperbroker/internal/engine"
	"paperbroker/internal/quote"
	"paperbroker/internal/report"
	"paperbroker/internal/store"
)

// defaultListLimit bounds order and trade listings when the request does
// not say how many it wants.
const defaultListLimit = 50

// Server serves the trading HTTP API.
type Server struct {
	engine *engine.Engine
	store  store.Store
	quotes quote.Source
	log    *slog.Logger

	// Account used when a request carries no account query param.
	defaultAccount string
}

// NewServer creates a new trading HTTP server.
func NewServer(eng *engine.Engine, st store.Store, quotes quote.Source, defaultAccount string, log *slog.Logger) *Server {
	return &Server{
		engine:         eng,
		store:          st,
		quotes:         quotes,
		log:            log,
		defaultAccount: defaultAccount,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("GET /api/orders", s.handleOrders)
	mux.HandleFunc("POST /api/orders", s.handlePlaceOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", s.handleCancelOrder)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("PUT /api/watchlist/{symbol}", s.handleAddWatchlist)
	mux.HandleFunc("DELETE /api/watchlist/{symbol}", s.handleRemoveWatchlist)
	mux.HandleFunc("GET /api/quote/{symbol}", s.handleQuote)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// serverError logs err and reports a generic 500 to the client.
func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.log.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

// account extracts the account from the request, falling back to the
// configured default.
func (s *Server) account(r *http.Request) string {
	if a := r.URL.Query().Get("account"); a != "" {
		return a
	}
	return s.defaultAccount
}

// parseLimit extracts the listing limit from the "limit" query param.
func parseLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	pf, err := s.engine.GetPortfolio(r.Context(), s.account(r))
	if err != nil {
		s.serverError(w, "loading portfolio", err)
		return
	}
	writeJSON(w, pf)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.store.ListOpenPositions(r.Context(), s.account(r))
	if err != nil {
		s.serverError(w, "listing positions", err)
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, PositionsResponse{Positions: positions})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.store.ListOrders(r.Context(), s.account(r), parseLimit(r, defaultListLimit))
	if err != nil {
		s.serverError(w, "listing orders", err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	writeJSON(w, OrdersResponse{Orders: orders})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var spec domain.OrderSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.engine.PlaceOrder(r.Context(), s.account(r), spec)
	if err != nil {
		s.serverError(w, "placing order", err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.engine.CancelOrder(r.Context(), s.account(r), r.PathValue("id"))
	switch {
	case err == nil:
		writeJSON(w, CancelResponse{Success: true, Message: "order cancelled", Order: order})
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, domain.ErrOrderNotCancellable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.serverError(w, "cancelling order", err)
	}
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTrades(r.Context(), s.account(r), parseLimit(r, defaultListLimit))
	if err != nil {
		s.serverError(w, "listing trades", err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, TradesResponse{Trades: trades})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTrades(r.Context(), s.account(r), 0)
	if err != nil {
		s.serverError(w, "loading trade history", err)
		return
	}
	writeJSON(w, report.Compute(trades))
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListWatchlist(r.Context(), s.account(r))
	if err != nil {
		s.serverError(w, "listing watchlist", err)
		return
	}
	items := make([]WatchlistItem, 0, len(entries))
	for _, e := range entries {
		item := WatchlistItem{WatchlistEntry: e}
		if q, qerr := s.quotes.Quote(r.Context(), e.Symbol); qerr == nil {
			item.Quote = &q
		}
		items = append(items, item)
	}
	writeJSON(w, WatchlistResponse{Items: items})
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	entry := &domain.WatchlistEntry{
		AccountID:      s.account(r),
		Symbol:         symbol,
		InstrumentType: domain.InstrumentEquity,
		AddedAt:        time.Now().UTC(),
	}
	if _, err := s.store.AddWatchlist(r.Context(), entry); err != nil {
		s.serverError(w, "updating watchlist", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	removed, err := s.store.RemoveWatchlist(r.Context(), s.account(r), symbol)
	if err != nil {
		s.serverError(w, "updating watchlist", err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "symbol not in watchlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	q, err := s.quotes.Quote(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, domain.ErrPriceUnavailable) {
			writeError(w, http.StatusNotFound, "no quote for "+symbol)
			return
		}
		s.serverError(w, "fetching quote", err)
		return
	}
	writeJSON(w, q)
}
