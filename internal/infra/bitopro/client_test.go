package bitopro

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitodash/internal/domain"

	"github.com/shopspring/decimal"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Bad test decimal %q: %v", s, err)
	}
	return d
}

var testCreds = domain.Credentials{
	APIKey:    "test-key",
	APISecret: "test-secret",
	Email:     "user@example.com",
}

func testClient(serverURL string) *Client {
	return NewClient(serverURL, testCreds, fixedClock{now: time.UnixMilli(1700000000000)})
}

func TestClient_GetAccountBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/balance" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		// Auth headers must be present on account endpoints
		for _, h := range []string{"X-BITOPRO-APIKEY", "X-BITOPRO-PAYLOAD", "X-BITOPRO-SIGNATURE"} {
			if r.Header.Get(h) == "" {
				t.Errorf("Missing auth header %s", h)
			}
		}
		w.Write([]byte(`{"data":[
			{"currency":"twd","amount":"10000","available":"9000","stake":"0","tradable":true},
			{"currency":"btc","amount":"0.5","available":"0.5","stake":"0","tradable":true}
		]}`))
	}))
	defer server.Close()

	balances, err := testClient(server.URL).GetAccountBalance(context.Background())
	if err != nil {
		t.Fatalf("GetAccountBalance failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("Expected 2 balances, got %d", len(balances))
	}
	if balances[0].Currency != "twd" || !balances[0].Amount.Equal(decimalFromString(t, "10000")) {
		t.Errorf("Unexpected first balance: %+v", balances[0])
	}
}

func TestClient_AuthRequiredWithoutCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Request must not reach the network without credentials")
	}))
	defer server.Close()

	client := NewClient(server.URL, domain.Credentials{}, fixedClock{now: time.Now()})

	if _, err := client.GetAccountBalance(context.Background()); !errors.Is(err, domain.ErrCredentialsMissing) {
		t.Errorf("Expected ErrCredentialsMissing, got %v", err)
	}
	var cfgErr *domain.ConfigError
	_, err := client.GetOrdersAcrossPairs(context.Background(), []string{"btc_twd"}, "", 0)
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected ConfigError, got %v", err)
	}
}

func TestClient_CreateOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders/btc_twd" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		// The signed payload must match the body that arrived
		var body createOrderBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Body decode failed: %v", err)
		}
		if body.Action != "buy" || body.Type != "limit" || body.Timestamp == 0 {
			t.Errorf("Unexpected body: %+v", body)
		}
		w.Write([]byte(`{"orderId":"123456","action":"buy","amount":"0.01","price":"1500000","timestamp":1700000000000}`))
	}))
	defer server.Close()

	result, err := testClient(server.URL).CreateOrder(context.Background(), domain.CreateOrderRequest{
		Pair:   "btc_twd",
		Action: "buy",
		Type:   "limit",
		Amount: "0.01",
		Price:  "1500000",
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if result.OrderID != "123456" {
		t.Errorf("Expected order id 123456, got %q", result.OrderID)
	}
}

func TestClient_CreateOrder_UpstreamErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"insufficient balance"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).CreateOrder(context.Background(), domain.CreateOrderRequest{
		Pair: "btc_twd", Action: "sell", Type: "market", Amount: "1",
	})

	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("Expected UpstreamError, got %v", err)
	}
	if upErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("Expected mirrored status 422, got %d", upErr.Status)
	}
	if !strings.Contains(upErr.Message, "insufficient balance") {
		t.Errorf("Upstream message lost: %q", upErr.Message)
	}
}

func TestClient_CreateOrder_ValidationBeforeNetwork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Invalid request must not reach the network")
	}))
	defer server.Close()

	// Limit order with no price
	_, err := testClient(server.URL).CreateOrder(context.Background(), domain.CreateOrderRequest{
		Pair: "btc_twd", Action: "buy", Type: "limit", Amount: "0.01",
	})
	if !errors.Is(err, domain.ErrInvalidOrderParam) {
		t.Errorf("Expected ErrInvalidOrderParam, got %v", err)
	}
}

func TestClient_AuthErrorNotRetriable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid signature"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetAccountBalance(context.Background())

	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
	if domain.IsRetriable(err) {
		t.Error("Auth errors must never be retriable")
	}
}

func TestClient_ServerErrorRetriable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetTickers(context.Background())
	if !domain.IsRetriable(err) {
		t.Errorf("5xx upstream errors should be retriable, got %v", err)
	}
}

func TestClient_GetOrders_WindowTooWide(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Out-of-range query must be rejected before the network")
	}))
	defer server.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	end := start + (90*24*time.Hour).Milliseconds() + 1

	_, err := testClient(server.URL).GetOrders(context.Background(), "btc_twd", "", 0, start, end)
	if !errors.Is(err, domain.ErrWindowTooWide) {
		t.Errorf("Expected ErrWindowTooWide, got %v", err)
	}

	// Exactly 90 days is allowed; flip the server into a normal responder.
	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer okServer.Close()

	if _, err := testClient(okServer.URL).GetOrders(context.Background(), "btc_twd", "", 0, start, start+(90*24*time.Hour).Milliseconds()); err != nil {
		t.Errorf("Exactly 90 days should pass, got %v", err)
	}
}

func TestClient_GetOrders_DefaultStatusKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("statusKind"); got != "ALL" {
			t.Errorf("Expected statusKind ALL, got %q", got)
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	if _, err := testClient(server.URL).GetOrders(context.Background(), "btc_twd", "", 0, 0, 0); err != nil {
		t.Fatalf("GetOrders failed: %v", err)
	}
}

func TestClient_GetOrdersAcrossPairs(t *testing.T) {
	// btc succeeds, eth fails, xrp returns a duplicate of a btc order id.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "btc_twd"):
			w.Write([]byte(`{"data":[
				{"id":"1","pair":"btc_twd","action":"buy","type":"limit","price":"100","originalAmount":"1","status":2,"createdTimestamp":100},
				{"id":"2","pair":"btc_twd","action":"sell","type":"limit","price":"110","originalAmount":"1","status":2,"createdTimestamp":300}
			]}`))
		case strings.Contains(r.URL.Path, "eth_twd"):
			w.WriteHeader(http.StatusInternalServerError)
		case strings.Contains(r.URL.Path, "xrp_twd"):
			w.Write([]byte(`{"data":[
				{"id":"1","pair":"btc_twd","action":"buy","type":"limit","price":"100","originalAmount":"1","status":2,"createdTimestamp":100},
				{"id":"3","pair":"xrp_twd","action":"buy","type":"market","originalAmount":"50","status":0,"createdTimestamp":200}
			]}`))
		default:
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	orders, err := testClient(server.URL).GetOrdersAcrossPairs(
		context.Background(), []string{"btc_twd", "eth_twd", "xrp_twd"}, "", 0)
	if err != nil {
		t.Fatalf("Aggregation must survive a failing pair, got %v", err)
	}

	// 3 unique ids out of 4 fetched rows, eth contributes nothing.
	if len(orders) != 3 {
		t.Fatalf("Expected 3 unique orders, got %d", len(orders))
	}
	// Newest first
	for i := 1; i < len(orders); i++ {
		if orders[i-1].CreatedTimestamp < orders[i].CreatedTimestamp {
			t.Errorf("Orders not sorted newest first: %d before %d",
				orders[i-1].CreatedTimestamp, orders[i].CreatedTimestamp)
		}
	}
	if orders[0].ID != "2" {
		t.Errorf("Expected newest order id 2 first, got %s", orders[0].ID)
	}
}

func TestClient_GetOrderBook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("Expected limit 5, got %q", got)
		}
		w.Write([]byte(`{"bids":[{"price":"99","amount":"1","count":2}],"asks":[{"price":"101","amount":"3","count":1}]}`))
	}))
	defer server.Close()

	book, err := testClient(server.URL).GetOrderBook(context.Background(), "btc_twd", 5)
	if err != nil {
		t.Fatalf("GetOrderBook failed: %v", err)
	}
	if len(book.Bids) != 1 || len(book.Asks) != 1 {
		t.Fatalf("Unexpected book shape: %+v", book)
	}
	if !book.Bids[0].Price.Equal(decimalFromString(t, "99")) {
		t.Errorf("Unexpected bid price: %s", book.Bids[0].Price)
	}
}

func TestClient_MalformedDecimalRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"currency":"twd","amount":"not-a-number","available":"0","stake":"0","tradable":true}]}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetAccountBalance(context.Background())
	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("Expected UpstreamError for malformed numeric, got %v", err)
	}
}
