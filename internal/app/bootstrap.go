package app

import (
	"context"
	"log/slog"
	"net/http"

	"bitodash/internal/api"
	"bitodash/internal/api/handlers"
	"bitodash/internal/infra"
	"bitodash/internal/infra/bitopro"
	"bitodash/internal/infra/finance"
	"bitodash/internal/infra/storage"
	"bitodash/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	CredStore *infra.CredentialStore
	Finance   *finance.Service
	Refresher *finance.Refresher
	Worker    *bitopro.OrderBookWorker
	Hub       *api.Hub
	Handler   http.Handler
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize wires the whole system: config, logging, storage, the market
// data services and the HTTP surface. Nothing is listening yet when it
// returns; main owns the server and the worker lifecycle.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping BitoDash...")

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	store, err := storage.NewStorage()
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	b.CredStore = infra.NewCredentialStore(store)

	clock := infra.RealClock{}
	b.Finance = finance.NewService(cfg, clock)
	b.Refresher = finance.NewRefresher(b.Finance, nil)

	b.Hub = api.NewHub()
	b.Worker = bitopro.NewOrderBookWorker(cfg.API.BitoPro.WSURL, clock, b.Hub.BroadcastSnapshot)

	ledger := service.NewLedgerService(store)
	portfolio := service.NewPortfolioService(b.Finance)

	b.Handler = api.NewRouter(api.Routes{
		Config:      cfg,
		BitoPro:     handlers.NewBitoProHandler(cfg, clock, b.CredStore, portfolio),
		Finance:     handlers.NewFinanceHandler(b.Finance),
		Notion:      handlers.NewNotionHandler(cfg, b.CredStore, ledger),
		Credentials: handlers.NewCredentialsHandler(b.CredStore),
		Stream:      api.NewStreamHandler(b.Hub, b.Worker),
		Hub:         b.Hub,
		Worker:      b.Worker,
	})
	slog.Info("✅ HTTP surface wired")

	return nil
}

// Start launches the hub loop, the FX cache refresher, and points the
// order-book worker at the first configured pair so a snapshot is warm
// before the first client.
func (b *Bootstrap) Start(ctx context.Context) {
	go b.Hub.Run()
	b.Refresher.Start(ctx)
	if pairs := b.Config.API.BitoPro.Pairs; len(pairs) > 0 {
		b.Worker.SetPair(pairs[0])
	}
}

// Stop tears down the background workers.
func (b *Bootstrap) Stop() {
	b.Refresher.Stop()
	b.Worker.Stop()
}
