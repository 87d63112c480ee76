package finance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Refresher keeps the USD/TWD cache warm by polling the provider chain in
// the background, so interactive requests almost always hit a fresh entry.
type Refresher struct {
	svc          *Service
	onUpdate     func(decimal.Decimal)
	rate         decimal.Decimal
	mu           sync.RWMutex
	pollInterval time.Duration
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewRefresher creates a refresher over the given service. onUpdate fires
// whenever the polled rate changes; it may be nil.
func NewRefresher(svc *Service, onUpdate func(decimal.Decimal)) *Refresher {
	return &Refresher{
		svc:          svc,
		onUpdate:     onUpdate,
		rate:         decimal.Zero,
		pollInterval: 10 * time.Minute,
	}
}

// SetPollInterval overrides the polling cadence. Call before Start.
func (r *Refresher) SetPollInterval(d time.Duration) {
	if d > 0 {
		r.pollInterval = d
	}
}

// Start fetches once immediately, then polls until the context is
// cancelled or Stop is called.
func (r *Refresher) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.refresh(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("FX refresh panic recovered", slog.Any("panic", rec))
			}
		}()

		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("FX refresh stopped")
				return
			case <-ticker.C:
				r.refresh(ctx)
			}
		}
	}()
}

func (r *Refresher) refresh(ctx context.Context) {
	result := r.svc.UsdTwdRate(ctx)
	if result.Stale {
		slog.Warn("FX refresh got no fresh rate", slog.String("source", result.Source))
		return
	}

	r.mu.Lock()
	oldRate := r.rate
	r.rate = result.Rate
	r.mu.Unlock()

	if !oldRate.Equal(result.Rate) {
		slog.Info("USD/TWD rate updated",
			slog.String("rate", result.Rate.String()),
			slog.String("old_rate", oldRate.String()),
			slog.String("source", result.Source),
		)
		if r.onUpdate != nil {
			r.onUpdate(result.Rate)
		}
	}
}

// Stop halts polling and waits for the loop to exit.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.wg.Wait()
	}
}

// Rate returns the last fresh rate seen, zero before the first success.
func (r *Refresher) Rate() decimal.Decimal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rate
}
