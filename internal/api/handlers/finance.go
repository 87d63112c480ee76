package handlers

import (
	"net/http"
	"strings"

	"bitodash/internal/infra/finance"

	"github.com/gorilla/mux"
)

// FinanceHandler serves the market-data routes backed by the public
// provider chain. No credentials involved.
type FinanceHandler struct {
	svc *finance.Service
}

// NewFinanceHandler wires the market-data routes.
func NewFinanceHandler(svc *finance.Service) *FinanceHandler {
	return &FinanceHandler{svc: svc}
}

// FxRate handles GET /api/finance/fx. Always 200: the chain falls back to a
// stale or default rate rather than failing.
func (h *FinanceHandler) FxRate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.UsdTwdRate(r.Context()))
}

// StockQuote handles GET /api/finance/stock/{symbol}.
func (h *FinanceHandler) StockQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	quote, err := h.svc.StockQuote(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// FearGreed handles GET /api/feargreed.
func (h *FinanceHandler) FearGreed(w http.ResponseWriter, r *http.Request) {
	idx, err := h.svc.FearGreedIndex(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// ClearCache handles DELETE /api/finance/cache, forcing the next lookup of
// every cached resource to hit the providers again.
func (h *FinanceHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCache()
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}
