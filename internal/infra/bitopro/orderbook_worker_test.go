package bitopro

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitodash/internal/domain"

	"github.com/gorilla/websocket"
)

// manualClock hands out a caller-controlled After channel so reconnect
// timing is driven by the test, not the wall clock.
type manualClock struct {
	after chan time.Time
}

func (c *manualClock) Now() time.Time                         { return time.Now() }
func (c *manualClock) After(d time.Duration) <-chan time.Time { return c.after }

// wsTestServer runs a WebSocket endpoint; handler owns each connection.
func wsTestServer(t *testing.T, handler func(pair string, conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pair := strings.TrimPrefix(r.URL.Path, "/")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(pair, conn)
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestOrderBookWorker_AppliesFrames(t *testing.T) {
	srv, wsBase := wsTestServer(t, func(pair string, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"event":"ORDER_BOOK","pair":"`+pair+`","bids":[{"price":"100","amount":"1","count":1}],"asks":[{"price":"102","amount":"2","count":1}]}`,
		))
		// Keep the socket open until the client goes away
		conn.ReadMessage()
	})
	defer srv.Close()

	applied := make(chan domain.OrderBookSnapshot, 4)
	worker := NewOrderBookWorker(wsBase, nil, func(snap domain.OrderBookSnapshot) {
		applied <- snap
	})
	defer worker.Stop()

	worker.SetPair("BTC_TWD")

	select {
	case snap := <-applied:
		if snap.Pair != "btc_twd" {
			t.Errorf("Expected lowercase pair btc_twd, got %q", snap.Pair)
		}
		if !snap.BestBid.Equal(decimalFromString(t, "100")) || !snap.BestAsk.Equal(decimalFromString(t, "102")) {
			t.Errorf("Unexpected best bid/ask: %s / %s", snap.BestBid, snap.BestAsk)
		}
		// Mid price of 100 and 102
		if !snap.LastPrice.Equal(decimalFromString(t, "101")) {
			t.Errorf("Expected mid price 101, got %s", snap.LastPrice)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("No snapshot applied within 5s")
	}

	if got, ok := worker.Snapshot(); !ok || got.Pair != "btc_twd" {
		t.Errorf("Snapshot() should expose the applied frame, got ok=%v pair=%q", ok, got.Pair)
	}
	if !worker.IsConnected() {
		t.Error("Worker should report live after an applied frame")
	}
}

func TestOrderBookWorker_IgnoresForeignFrames(t *testing.T) {
	srv, wsBase := wsTestServer(t, func(pair string, conn *websocket.Conn) {
		// Non-book event, then a frame for a different pair, then a good one
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"TRADE","pair":"`+pair+`"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"event":"ORDER_BOOK","pair":"eth_twd","bids":[{"price":"1","amount":"1","count":1}],"asks":[]}`))
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"event":"ORDER_BOOK","pair":"`+pair+`","bids":[{"price":"50","amount":"1","count":1}],"asks":[{"price":"52","amount":"1","count":1}]}`))
		conn.ReadMessage()
	})
	defer srv.Close()

	applied := make(chan domain.OrderBookSnapshot, 4)
	worker := NewOrderBookWorker(wsBase, nil, func(snap domain.OrderBookSnapshot) {
		applied <- snap
	})
	defer worker.Stop()

	worker.SetPair("btc_twd")

	select {
	case snap := <-applied:
		// The first applied snapshot must come from the matching frame only
		if !snap.BestBid.Equal(decimalFromString(t, "50")) {
			t.Errorf("A foreign frame leaked through: %+v", snap)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Matching frame never applied")
	}
}

func TestOrderBookWorker_StaleGenerationDiscarded(t *testing.T) {
	worker := NewOrderBookWorker("ws://unused", nil, nil)

	worker.mu.Lock()
	worker.generation = 5
	worker.pair = "btc_twd"
	worker.mu.Unlock()

	frame := []byte(`{"event":"ORDER_BOOK","pair":"btc_twd","bids":[{"price":"1","amount":"1","count":1}],"asks":[]}`)

	// A frame from a torn-down session must not touch the snapshot.
	worker.handleFrame(4, "btc_twd", frame)
	if _, ok := worker.Snapshot(); ok {
		t.Fatal("Stale-generation frame was applied")
	}

	worker.handleFrame(5, "btc_twd", frame)
	if _, ok := worker.Snapshot(); !ok {
		t.Fatal("Current-generation frame was not applied")
	}
}

func TestOrderBookWorker_SetPairClearsSnapshot(t *testing.T) {
	srv, wsBase := wsTestServer(t, func(pair string, conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(
			`{"event":"ORDER_BOOK","pair":"`+pair+`","bids":[{"price":"10","amount":"1","count":1}],"asks":[{"price":"12","amount":"1","count":1}]}`))
		conn.ReadMessage()
	})
	defer srv.Close()

	applied := make(chan domain.OrderBookSnapshot, 8)
	worker := NewOrderBookWorker(wsBase, nil, func(snap domain.OrderBookSnapshot) {
		applied <- snap
	})
	defer worker.Stop()

	worker.SetPair("btc_twd")
	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("First pair never produced a snapshot")
	}

	worker.SetPair("eth_twd")
	// Immediately after the switch the old snapshot must be gone even
	// though the new feed has not delivered yet.
	if snap, ok := worker.Snapshot(); ok && snap.Pair == "btc_twd" {
		t.Error("Old pair snapshot survived the switch")
	}

	// The new pair eventually produces its own snapshot.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap := <-applied:
			if snap.Pair == "eth_twd" {
				return
			}
		case <-deadline:
			t.Fatal("New pair never produced a snapshot")
		}
	}
}

func TestOrderBookWorker_SamePairIsNoop(t *testing.T) {
	worker := NewOrderBookWorker("ws://unused", &manualClock{after: make(chan time.Time)}, nil)

	worker.mu.Lock()
	worker.pair = "btc_twd"
	gen := worker.generation
	worker.mu.Unlock()

	worker.SetPair("BTC_TWD") // same pair, different case

	worker.mu.RLock()
	defer worker.mu.RUnlock()
	if worker.generation != gen {
		t.Error("Re-selecting the same pair must not restart the session")
	}
}

func TestOrderBookWorker_StopCancelsPendingReconnect(t *testing.T) {
	clock := &manualClock{after: make(chan time.Time)}

	// Nothing listens on this address, so every dial fails and the worker
	// parks on the reconnect timer.
	worker := NewOrderBookWorker("ws://127.0.0.1:1", clock, nil)
	worker.SetPair("btc_twd")

	// Wait for the first failure to land.
	deadline := time.Now().Add(5 * time.Second)
	for worker.State() != StateReconnecting {
		if time.Now().After(deadline) {
			t.Fatal("Worker never reached reconnecting state")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if worker.LastError() == "" {
		t.Error("A failed connect should record a transient error")
	}

	// Stop must cancel the armed timer; the never-firing After channel
	// would otherwise block the session goroutine forever and Stop's
	// WaitGroup wait would hang the test.
	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not cancel the pending reconnect timer")
	}

	if worker.State() != StateIdle {
		t.Errorf("Expected idle after Stop, got %s", worker.State())
	}
}
