package api

import (
	"net/http"

	"bitodash/internal/api/handlers"
	"bitodash/internal/api/middleware"
	"bitodash/internal/infra"
	"bitodash/internal/infra/bitopro"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Routes carries everything the router mounts.
type Routes struct {
	Config      *infra.Config
	BitoPro     *handlers.BitoProHandler
	Finance     *handlers.FinanceHandler
	Notion      *handlers.NotionHandler
	Credentials *handlers.CredentialsHandler
	Stream      *StreamHandler
	Hub         *Hub
	Worker      *bitopro.OrderBookWorker
}

// NewRouter builds the HTTP surface: exchange, ledger and market-data
// routes under /api, the order-book stream under /ws, plus health and
// metrics. Middleware order is recovery, then logging, then CORS.
func NewRouter(rt Routes) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)

	r.HandleFunc("/health", rt.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api").Subrouter()

	bp := apiRouter.PathPrefix("/bitopro").Subrouter()
	bp.HandleFunc("/balance", rt.BitoPro.Balance).Methods(http.MethodGet)
	bp.HandleFunc("/tickers", rt.BitoPro.Tickers).Methods(http.MethodGet)
	bp.HandleFunc("/ticker/{pair}", rt.BitoPro.Ticker).Methods(http.MethodGet)
	bp.HandleFunc("/orderbook/{pair}", rt.BitoPro.OrderBook).Methods(http.MethodGet)
	bp.HandleFunc("/order", rt.BitoPro.CreateOrder).Methods(http.MethodPost)
	bp.HandleFunc("/order/cancel", rt.BitoPro.CancelOrder).Methods(http.MethodPost)
	bp.HandleFunc("/orders", rt.BitoPro.Orders).Methods(http.MethodGet)
	bp.HandleFunc("/orders/{pair}", rt.BitoPro.OrderHistory).Methods(http.MethodGet)

	apiRouter.HandleFunc("/portfolio", rt.BitoPro.Portfolio).Methods(http.MethodGet)

	nt := apiRouter.PathPrefix("/notion").Subrouter()
	nt.HandleFunc("/assets", rt.Notion.Assets).Methods(http.MethodGet)
	nt.HandleFunc("/assets/summary", rt.Notion.AssetSummaries).Methods(http.MethodGet)
	nt.HandleFunc("/assets/add", rt.Notion.AddAssets).Methods(http.MethodPost)
	nt.HandleFunc("/assets/local", rt.Notion.LocalAssets).Methods(http.MethodGet)
	nt.HandleFunc("/assets/local/summary", rt.Notion.LocalSummaries).Methods(http.MethodGet)

	fin := apiRouter.PathPrefix("/finance").Subrouter()
	fin.HandleFunc("/fx", rt.Finance.FxRate).Methods(http.MethodGet)
	fin.HandleFunc("/stock/{symbol}", rt.Finance.StockQuote).Methods(http.MethodGet)
	fin.HandleFunc("/cache", rt.Finance.ClearCache).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/feargreed", rt.Finance.FearGreed).Methods(http.MethodGet)

	creds := apiRouter.PathPrefix("/credentials").Subrouter()
	creds.HandleFunc("/exchange", rt.Credentials.ExchangeStatus).Methods(http.MethodGet)
	creds.HandleFunc("/exchange", rt.Credentials.SaveExchange).Methods(http.MethodPost)
	creds.HandleFunc("/exchange", rt.Credentials.ClearExchange).Methods(http.MethodDelete)
	creds.HandleFunc("/notion", rt.Credentials.NotionStatus).Methods(http.MethodGet)
	creds.HandleFunc("/notion", rt.Credentials.SaveNotion).Methods(http.MethodPost)
	creds.HandleFunc("/notion", rt.Credentials.ClearNotion).Methods(http.MethodDelete)

	r.Handle("/ws/orderbook/{pair}", rt.Stream).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins(rt.Config),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-API-Key", "X-API-Secret", "X-API-Email", "X-Notion-Token", "X-Notion-Database-Id"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func allowedOrigins(cfg *infra.Config) []string {
	if cfg != nil && len(cfg.Server.AllowedOrigins) > 0 {
		return cfg.Server.AllowedOrigins
	}
	return []string{"http://localhost:3000"}
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	WSClients   int    `json:"wsClients"`
	StreamState string `json:"streamState"`
	StreamPair  string `json:"streamPair,omitempty"`
	StreamError string `json:"streamError,omitempty"`
}

func (rt Routes) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if rt.Config != nil {
		resp.Version = rt.Config.App.Version
	}
	if rt.Hub != nil {
		resp.WSClients = rt.Hub.ClientCount()
	}
	if rt.Worker != nil {
		resp.StreamState = rt.Worker.State().String()
		if snap, ok := rt.Worker.Snapshot(); ok {
			resp.StreamPair = snap.Pair
		}
		resp.StreamError = rt.Worker.LastError()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
