package api

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bitodash/internal/domain"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

func newTestClient(hub *Hub, pair string) *wsClient {
	return &wsClient{
		hub:  hub,
		send: make(chan []byte, 4),
		id:   "test-" + pair,
		pair: pair,
	}
}

func registerAndWait(t *testing.T, hub *Hub, c *wsClient) {
	t.Helper()
	hub.register <- c
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

func TestHub_BroadcastFiltersByPair(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	btc := newTestClient(hub, "btc_twd")
	eth := newTestClient(hub, "eth_twd")
	hub.register <- btc
	hub.register <- eth
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	hub.BroadcastSnapshot(domain.OrderBookSnapshot{
		Pair:      "BTC_TWD",
		BestBid:   decimal.NewFromInt(100),
		BestAsk:   decimal.NewFromInt(102),
		LastPrice: decimal.NewFromInt(101),
	})

	select {
	case msg := <-btc.send:
		if !strings.Contains(string(msg), `"pair":"BTC_TWD"`) {
			t.Errorf("Unexpected payload: %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Matching client never received the snapshot")
	}

	select {
	case msg := <-eth.send:
		t.Errorf("Client on another pair received %s", msg)
	default:
	}
}

func TestHub_SlowClientSkippedNotBlocked(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := newTestClient(hub, "btc_twd")
	registerAndWait(t, hub, slow)

	// Fill the send buffer, then broadcast more than it can hold.
	snap := domain.OrderBookSnapshot{Pair: "btc_twd"}
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(slow.send)+5; i++ {
			hub.BroadcastSnapshot(snap)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := newTestClient(hub, "btc_twd")
	registerAndWait(t, hub, c)

	hub.unregister <- c
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("Expected closed channel, got a message")
		}
	case <-time.After(time.Second):
		t.Fatal("Send channel was never closed")
	}
	if n := hub.ClientCount(); n != 0 {
		t.Errorf("Expected 0 clients after unregister, got %d", n)
	}
}

// fakeStream is a canned BookStream.
type fakeStream struct {
	mu   sync.Mutex
	pair string
	snap domain.OrderBookSnapshot
	ok   bool
}

func (f *fakeStream) SetPair(pair string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pair = pair
}

func (f *fakeStream) Snapshot() (domain.OrderBookSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.ok
}

func (f *fakeStream) Pair() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pair
}

func TestStreamHandler_SeedsNewClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	stream := &fakeStream{
		snap: domain.OrderBookSnapshot{
			Pair:      "btc_twd",
			BestBid:   decimal.NewFromInt(100),
			BestAsk:   decimal.NewFromInt(102),
			LastPrice: decimal.NewFromInt(101),
		},
		ok: true,
	}

	router := mux.NewRouter()
	router.Handle("/ws/orderbook/{pair}", NewStreamHandler(hub, stream))
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/orderbook/BTC_TWD"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if got := stream.Pair(); got != "btc_twd" {
		t.Errorf("Worker should be retargeted to the lowercased pair, got %q", got)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected a seed snapshot, got %v", err)
	}
	var snap domain.OrderBookSnapshot
	if err := json.Unmarshal(msg, &snap); err != nil {
		t.Fatalf("Bad seed payload: %v", err)
	}
	if !snap.BestBid.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Seed snapshot lost data: %+v", snap)
	}
}

func TestStreamHandler_RejectsMissingPair(t *testing.T) {
	hub := NewHub()
	handler := NewStreamHandler(hub, &fakeStream{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/ws/orderbook/", nil))

	if rec.Code != 400 {
		t.Errorf("Expected 400 without a pair, got %d", rec.Code)
	}
}
