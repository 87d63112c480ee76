package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"bitodash/internal/domain"
	"bitodash/internal/infra"
	"bitodash/internal/infra/bitopro"
	"bitodash/internal/service"

	"github.com/gorilla/mux"
)

// Exchange is the subset of the exchange client the handler needs.
// bitopro.Client satisfies it; tests substitute a fake.
type Exchange interface {
	GetAccountBalance(ctx context.Context) ([]domain.Balance, error)
	GetTickers(ctx context.Context) ([]domain.Ticker, error)
	GetTicker(ctx context.Context, pair string) (domain.Ticker, error)
	GetOrderBook(ctx context.Context, pair string, limit int) (domain.OrderBook, error)
	CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResult, error)
	CancelOrder(ctx context.Context, pair, orderID string) error
	GetOrders(ctx context.Context, pair, statusKind string, limit int, startMs, endMs int64) ([]domain.Order, error)
	GetOrdersAcrossPairs(ctx context.Context, pairs []string, statusKind string, limit int) ([]domain.Order, error)
}

// BitoProHandler serves the exchange routes. A fresh client is built per
// request so credentials supplied in headers take effect immediately.
type BitoProHandler struct {
	cfg       *infra.Config
	store     *infra.CredentialStore
	portfolio *service.PortfolioService
	newClient func(creds domain.Credentials) Exchange
}

// NewBitoProHandler wires the exchange routes.
func NewBitoProHandler(cfg *infra.Config, clock infra.Clock, store *infra.CredentialStore, portfolio *service.PortfolioService) *BitoProHandler {
	return &BitoProHandler{
		cfg:       cfg,
		store:     store,
		portfolio: portfolio,
		newClient: func(creds domain.Credentials) Exchange {
			return bitopro.NewClient(cfg.API.BitoPro.RestURL, creds, clock)
		},
	}
}

// credentials resolves exchange credentials in priority order: request
// headers, then the credential store, then the config file / environment.
func (h *BitoProHandler) credentials(r *http.Request) domain.Credentials {
	creds := domain.Credentials{
		APIKey:    r.Header.Get("X-API-Key"),
		APISecret: r.Header.Get("X-API-Secret"),
		Email:     r.Header.Get("X-API-Email"),
	}
	if creds.IsConfigured() {
		return creds
	}
	if stored := h.store.LoadExchange(); stored.IsConfigured() {
		return stored
	}
	return domain.Credentials{
		APIKey:    h.cfg.API.BitoPro.APIKey,
		APISecret: h.cfg.API.BitoPro.APISecret,
		Email:     h.cfg.API.BitoPro.Email,
	}
}

func (h *BitoProHandler) client(r *http.Request) Exchange {
	return h.newClient(h.credentials(r))
}

// Balance handles GET /api/bitopro/balance.
func (h *BitoProHandler) Balance(w http.ResponseWriter, r *http.Request) {
	balances, err := h.client(r).GetAccountBalance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

// Tickers handles GET /api/bitopro/tickers.
func (h *BitoProHandler) Tickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.client(r).GetTickers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tickers)
}

// Ticker handles GET /api/bitopro/ticker/{pair}.
func (h *BitoProHandler) Ticker(w http.ResponseWriter, r *http.Request) {
	pair := mux.Vars(r)["pair"]
	ticker, err := h.client(r).GetTicker(r.Context(), pair)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticker)
}

// OrderBook handles GET /api/bitopro/orderbook/{pair}?limit=N.
func (h *BitoProHandler) OrderBook(w http.ResponseWriter, r *http.Request) {
	pair := mux.Vars(r)["pair"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	book, err := h.client(r).GetOrderBook(r.Context(), pair, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// CreateOrder handles POST /api/bitopro/order.
func (h *BitoProHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	result, err := h.client(r).CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type cancelOrderRequest struct {
	Pair    string `json:"pair"`
	OrderID string `json:"orderId"`
}

// CancelOrder handles POST /api/bitopro/order/cancel.
func (h *BitoProHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Pair == "" || req.OrderID == "" {
		writeBadRequest(w, "pair and orderId are required")
		return
	}
	if err := h.client(r).CancelOrder(r.Context(), req.Pair, req.OrderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// Orders handles GET /api/bitopro/orders. Without a pairs parameter it
// aggregates over the configured pairs; with ?pairs=a,b it queries those.
func (h *BitoProHandler) Orders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pairs := h.cfg.API.BitoPro.Pairs
	if raw := q.Get("pairs"); raw != "" {
		pairs = splitPairs(raw)
	}
	statusKind := q.Get("statusKind")
	limit, _ := strconv.Atoi(q.Get("limit"))

	orders, err := h.client(r).GetOrdersAcrossPairs(r.Context(), pairs, statusKind, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// OrderHistory handles GET /api/bitopro/orders/{pair} with optional
// statusKind, limit, startTimestamp and endTimestamp query parameters.
func (h *BitoProHandler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	pair := mux.Vars(r)["pair"]
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	startMs, _ := strconv.ParseInt(q.Get("startTimestamp"), 10, 64)
	endMs, _ := strconv.ParseInt(q.Get("endTimestamp"), 10, 64)

	orders, err := h.client(r).GetOrders(r.Context(), pair, q.Get("statusKind"), limit, startMs, endMs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// Portfolio handles GET /api/portfolio: balances priced via tickers and
// converted through the USD/TWD rate.
func (h *BitoProHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	client := h.client(r)
	valuation, err := h.portfolio.Valuation(r.Context(), client)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, valuation)
}

func splitPairs(raw string) []string {
	parts := strings.Split(raw, ",")
	pairs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}
