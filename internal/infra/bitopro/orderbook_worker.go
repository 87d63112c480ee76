package bitopro

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bitodash/internal/domain"
	"bitodash/internal/infra"

	"github.com/gorilla/websocket"
)

// WorkerState enumerates the order-book stream lifecycle.
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateConnecting
	StateLive
	StateReconnecting
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// OrderBookWorker maintains a live best-bid/best-ask view for exactly one
// trading pair at a time. Switching the pair tears down the active socket
// and any pending reconnect timer; data racing in from the previous pair is
// discarded by a generation check at every transition (socket open, inbound
// frame, socket close), so a stale feed can never overwrite the snapshot of
// the currently selected pair.
type OrderBookWorker struct {
	wsBase         string
	clock          infra.Clock
	reconnectDelay time.Duration
	onSnapshot     func(domain.OrderBookSnapshot)
	logger         *slog.Logger

	mu          sync.RWMutex
	state       WorkerState
	pair        string // currently desired pair, "" when idle
	generation  uint64 // bumped on every SetPair/Stop
	conn        *websocket.Conn
	cancel      context.CancelFunc
	snapshot    domain.OrderBookSnapshot
	hasSnapshot bool
	lastErr     string // transient connectivity indicator, "" when healthy
	wg          sync.WaitGroup
}

// NewOrderBookWorker creates a stream worker. onSnapshot (optional) fires on
// every applied frame; wsBase defaults to the public BitoPro stream.
func NewOrderBookWorker(wsBase string, clock infra.Clock, onSnapshot func(domain.OrderBookSnapshot)) *OrderBookWorker {
	if wsBase == "" {
		wsBase = WSOrderBookURL
	}
	if clock == nil {
		clock = infra.RealClock{}
	}
	return &OrderBookWorker{
		wsBase:         wsBase,
		clock:          clock,
		reconnectDelay: DefaultReconnectDelay,
		onSnapshot:     onSnapshot,
		state:          StateIdle,
		logger:         slog.Default().With("module", "orderbook_worker"),
	}
}

// SetReconnectDelay overrides the fixed reconnect wait. Zero keeps the default.
func (w *OrderBookWorker) SetReconnectDelay(d time.Duration) {
	if d > 0 {
		w.reconnectDelay = d
	}
}

// SetPair selects the pair to stream. Any previous session, including a
// pending reconnect timer, is abandoned. An empty pair returns to Idle.
func (w *OrderBookWorker) SetPair(pair string) {
	pair = strings.ToLower(pair)

	w.mu.Lock()
	if pair == w.pair {
		w.mu.Unlock()
		return
	}

	w.generation++
	gen := w.generation
	w.pair = pair
	w.snapshot = domain.OrderBookSnapshot{}
	w.hasSnapshot = false
	w.teardownLocked()

	if pair == "" {
		w.state = StateIdle
		w.mu.Unlock()
		return
	}

	w.state = StateConnecting
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	go w.session(ctx, gen, pair)
}

// Stop tears down the active socket and cancels any pending reconnect.
// No timers or sockets survive.
func (w *OrderBookWorker) Stop() {
	w.mu.Lock()
	w.generation++
	w.pair = ""
	w.snapshot = domain.OrderBookSnapshot{}
	w.hasSnapshot = false
	w.state = StateIdle
	w.teardownLocked()
	w.mu.Unlock()

	w.wg.Wait()
}

// Snapshot returns the latest best-bid/ask view and whether one exists for
// the currently selected pair.
func (w *OrderBookWorker) Snapshot() (domain.OrderBookSnapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot, w.hasSnapshot
}

// State returns the current lifecycle state.
func (w *OrderBookWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// IsConnected reports whether the stream is live.
func (w *OrderBookWorker) IsConnected() bool {
	return w.State() == StateLive
}

// LastError returns the transient connectivity indicator. Cleared on the
// next successful connection; never fatal.
func (w *OrderBookWorker) LastError() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// session owns one pair subscription from first dial until the pair is
// abandoned. The reconnect loop runs indefinitely with a fixed delay as
// long as the generation still matches.
func (w *OrderBookWorker) session(ctx context.Context, gen uint64, pair string) {
	defer w.wg.Done()

	for {
		if w.stale(gen) {
			return
		}

		conn, err := w.dial(ctx, pair)
		if err != nil {
			if w.stale(gen) || ctx.Err() != nil {
				return
			}
			w.logger.Warn("Order-book stream connect failed",
				slog.String("pair", pair), slog.Any("error", err))
			w.noteDisconnect(gen, err)
			if !w.waitReconnect(ctx, gen) {
				return
			}
			continue
		}

		// Race guard: the desired pair may have changed while the
		// handshake was in flight. The fresh socket is discarded.
		if !w.adopt(gen, conn) {
			conn.Close()
			return
		}
		w.logger.Info("Order-book stream connected", slog.String("pair", pair))

		w.readLoop(ctx, gen, pair, conn)

		if w.stale(gen) || ctx.Err() != nil {
			return
		}
		infra.WSReconnects.Inc()
		if !w.waitReconnect(ctx, gen) {
			return
		}
	}
}

func (w *OrderBookWorker) dial(ctx context.Context, pair string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.wsBase+"/"+pair, nil)
	if err != nil {
		return nil, domain.NewTransportError("dial order-book stream", err)
	}
	return conn, nil
}

// adopt installs a freshly opened socket, or reports false when the
// generation moved on while connecting.
func (w *OrderBookWorker) adopt(gen uint64, conn *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		return false
	}
	w.conn = conn
	w.state = StateLive
	w.lastErr = ""
	return true
}

func (w *OrderBookWorker) readLoop(ctx context.Context, gen uint64, pair string, conn *websocket.Conn) {
	defer func() {
		w.mu.Lock()
		if w.conn == conn {
			w.conn = nil
		}
		w.mu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !w.stale(gen) && ctx.Err() == nil {
				w.logger.Warn("Order-book stream read failed",
					slog.String("pair", pair), slog.Any("error", err))
				w.noteDisconnect(gen, err)
			}
			return
		}
		w.handleFrame(gen, pair, msg)
	}
}

func (w *OrderBookWorker) handleFrame(gen uint64, pair string, msg []byte) {
	var frame wsFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		w.logger.Warn("Dropping malformed order-book frame", slog.Any("error", err))
		infra.WSFrames.WithLabelValues("ignored").Inc()
		return
	}
	if frame.Event != "ORDER_BOOK" {
		infra.WSFrames.WithLabelValues("ignored").Inc()
		return
	}

	// Second staleness guard: frames already in flight when the pair
	// switched must not touch the new pair's snapshot.
	if !strings.EqualFold(frame.Pair, pair) {
		infra.WSFrames.WithLabelValues("stale").Inc()
		return
	}

	bids, err := levelsToDomain(frame.Bids)
	if err != nil {
		w.logger.Warn("Dropping order-book frame with bad bids", slog.Any("error", err))
		infra.WSFrames.WithLabelValues("ignored").Inc()
		return
	}
	asks, err := levelsToDomain(frame.Asks)
	if err != nil {
		w.logger.Warn("Dropping order-book frame with bad asks", slog.Any("error", err))
		infra.WSFrames.WithLabelValues("ignored").Inc()
		return
	}

	snap := domain.SnapshotFromBook(pair, bids, asks)

	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		infra.WSFrames.WithLabelValues("stale").Inc()
		return
	}
	w.snapshot = snap
	w.hasSnapshot = true
	w.mu.Unlock()

	infra.WSFrames.WithLabelValues("applied").Inc()
	if w.onSnapshot != nil {
		w.onSnapshot(snap)
	}
}

// noteDisconnect records the transient error and moves to Reconnecting,
// but only when the failed session is still the desired one.
func (w *OrderBookWorker) noteDisconnect(gen uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		return
	}
	w.state = StateReconnecting
	w.lastErr = err.Error()
}

// waitReconnect sleeps the fixed delay. Returns false when the session was
// cancelled while waiting, which also cancels the pending timer.
func (w *OrderBookWorker) waitReconnect(ctx context.Context, gen uint64) bool {
	select {
	case <-ctx.Done():
		return false
	case <-w.clock.After(w.reconnectDelay):
	}
	if w.stale(gen) {
		return false
	}
	w.mu.Lock()
	if gen == w.generation {
		w.state = StateConnecting
	}
	w.mu.Unlock()
	return true
}

func (w *OrderBookWorker) stale(gen uint64) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return gen != w.generation
}

// teardownLocked closes the active socket and cancels the session context.
// Caller holds w.mu.
func (w *OrderBookWorker) teardownLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}
