package bitopro

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"bitodash/internal/domain"
	"bitodash/internal/infra"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Client is the BitoPro v3 REST API client (boundary layer).
// Stateless between calls except for the signer's clock dependency; a fresh
// instance per request (credentials from inbound headers) is cheap and the
// intended usage for the API server.
type Client struct {
	http   *resty.Client
	signer *Signer
	creds  domain.Credentials
	logger *slog.Logger
}

// NewClient creates a BitoPro API client. Credentials may be zero for
// public-endpoint-only usage; authenticated calls then fail with ConfigError
// before any network I/O.
func NewClient(baseURL string, creds domain.Credentials, clock infra.Clock) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", infra.DefaultUserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		signer: NewSigner(creds.APIKey, creds.APISecret, creds.Email, clock),
		creds:  creds,
		logger: slog.Default().With("module", "bitopro_client"),
	}
}

// Trade is one public trade record.
type Trade struct {
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp int64           `json:"timestamp"`
	IsBuyer   bool            `json:"isBuyer"`
}

// Currency describes one asset the exchange supports.
type Currency struct {
	Currency    string `json:"currency"`
	Deposit     bool   `json:"deposit"`
	Withdraw    bool   `json:"withdraw"`
	MinWithdraw string `json:"minWithdraw"`
}

// TradingPair describes one market the exchange lists.
type TradingPair struct {
	Pair           string `json:"pair"`
	Base           string `json:"base"`
	Quote          string `json:"quote"`
	BasePrecision  int    `json:"basePrecision"`
	QuotePrecision int    `json:"quotePrecision"`
	Maintain       bool   `json:"maintain"`
}

// GetAccountBalance returns every currency balance on the account.
func (c *Client) GetAccountBalance(ctx context.Context) ([]domain.Balance, error) {
	var resp balanceResponse
	if err := c.doAuthGet(ctx, "/accounts/balance", nil, &resp); err != nil {
		return nil, err
	}

	balances := make([]domain.Balance, 0, len(resp.Data))
	for _, b := range resp.Data {
		amount, err := parseDecimal("amount", b.Amount)
		if err != nil {
			return nil, &domain.UpstreamError{Status: http.StatusOK, Message: "malformed balance", Err: err}
		}
		available, err := parseDecimal("available", b.Available)
		if err != nil {
			return nil, &domain.UpstreamError{Status: http.StatusOK, Message: "malformed balance", Err: err}
		}
		stake, err := parseDecimal("stake", b.Stake)
		if err != nil {
			return nil, &domain.UpstreamError{Status: http.StatusOK, Message: "malformed balance", Err: err}
		}
		balances = append(balances, domain.Balance{
			Currency:  b.Currency,
			Amount:    amount,
			Available: available,
			Stake:     stake,
			Tradable:  b.Tradable,
		})
	}
	return balances, nil
}

// GetTickers returns 24h data for every listed pair. Public, no auth.
func (c *Client) GetTickers(ctx context.Context) ([]domain.Ticker, error) {
	var resp tickersResponse
	if err := c.doGet(ctx, "/tickers", nil, &resp); err != nil {
		return nil, err
	}

	tickers := make([]domain.Ticker, 0, len(resp.Data))
	for _, t := range resp.Data {
		ticker, err := t.toDomain()
		if err != nil {
			return nil, &domain.UpstreamError{Status: http.StatusOK, Message: "malformed ticker", Err: err}
		}
		tickers = append(tickers, ticker)
	}
	return tickers, nil
}

// GetTicker returns 24h data for one pair. Public, no auth.
func (c *Client) GetTicker(ctx context.Context, pair string) (domain.Ticker, error) {
	if pair == "" {
		return domain.Ticker{}, domain.ErrInvalidPair
	}
	var resp tickerResponse
	if err := c.doGet(ctx, "/tickers/"+pair, nil, &resp); err != nil {
		return domain.Ticker{}, err
	}
	ticker, err := resp.Data.toDomain()
	if err != nil {
		return domain.Ticker{}, &domain.UpstreamError{Status: http.StatusOK, Message: "malformed ticker", Err: err}
	}
	return ticker, nil
}

// GetOrderBook returns the visible depth for one pair. Public, no auth.
// limit bounds the number of levels per side; 0 means exchange default.
func (c *Client) GetOrderBook(ctx context.Context, pair string, limit int) (domain.OrderBook, error) {
	if pair == "" {
		return domain.OrderBook{}, domain.ErrInvalidPair
	}
	query := map[string]string{}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}

	var resp orderBookResponse
	if err := c.doGet(ctx, "/order-book/"+pair, query, &resp); err != nil {
		return domain.OrderBook{}, err
	}

	bids, err := levelsToDomain(resp.Bids)
	if err != nil {
		return domain.OrderBook{}, &domain.UpstreamError{Status: http.StatusOK, Message: "malformed order book", Err: err}
	}
	asks, err := levelsToDomain(resp.Asks)
	if err != nil {
		return domain.OrderBook{}, &domain.UpstreamError{Status: http.StatusOK, Message: "malformed order book", Err: err}
	}
	return domain.OrderBook{Pair: pair, Bids: bids, Asks: asks}, nil
}

// GetTrades returns recent public trades for one pair.
func (c *Client) GetTrades(ctx context.Context, pair string) ([]Trade, error) {
	if pair == "" {
		return nil, domain.ErrInvalidPair
	}
	var resp tradesResponse
	if err := c.doGet(ctx, "/trades/"+pair, nil, &resp); err != nil {
		return nil, err
	}

	trades := make([]Trade, 0, len(resp.Data))
	for _, t := range resp.Data {
		price, err := parseDecimal("price", t.Price)
		if err != nil {
			return nil, &domain.UpstreamError{Status: http.StatusOK, Message: "malformed trade", Err: err}
		}
		amount, err := parseDecimal("amount", t.Amount)
		if err != nil {
			return nil, &domain.UpstreamError{Status: http.StatusOK, Message: "malformed trade", Err: err}
		}
		trades = append(trades, Trade{Price: price, Amount: amount, Timestamp: t.Timestamp, IsBuyer: t.IsBuyer})
	}
	return trades, nil
}

// GetCurrencies returns the exchange's supported assets.
func (c *Client) GetCurrencies(ctx context.Context) ([]Currency, error) {
	var resp currenciesResponse
	if err := c.doGet(ctx, "/provisioning/currencies", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]Currency, 0, len(resp.Data))
	for _, cur := range resp.Data {
		out = append(out, Currency{
			Currency:    cur.Currency,
			Deposit:     cur.Deposit,
			Withdraw:    cur.Withdraw,
			MinWithdraw: cur.MinWithdraw,
		})
	}
	return out, nil
}

// GetTradingPairs returns the exchange's listed markets.
func (c *Client) GetTradingPairs(ctx context.Context) ([]TradingPair, error) {
	var resp tradingPairsResponse
	if err := c.doGet(ctx, "/provisioning/trading-pairs", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]TradingPair, 0, len(resp.Data))
	for _, p := range resp.Data {
		out = append(out, TradingPair{
			Pair:           p.Pair,
			Base:           p.Base,
			Quote:          p.Quote,
			BasePrecision:  p.BasePrecision,
			QuotePrecision: p.QuotePrecision,
			Maintain:       p.Maintain,
		})
	}
	return out, nil
}

// CreateOrder places a new order. The upstream's error message is surfaced
// verbatim with its status mirrored; a success is never invented.
func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResult, error) {
	var result domain.CreateOrderResult

	if err := req.Validate(); err != nil {
		return result, err
	}
	if err := c.requireCredentials(); err != nil {
		return result, err
	}

	body := createOrderBody{
		Action:    req.Action,
		Amount:    req.Amount,
		Price:     req.Price,
		Type:      req.Type,
		Timestamp: c.signer.Nonce(),
	}
	raw, headers, err := c.signer.SignedBody(body)
	if err != nil {
		return result, err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Content-Type", "application/json").
		SetBody(raw).
		Post("/orders/" + req.Pair)
	c.observe("create_order", resp, start)
	if err != nil {
		return result, domain.NewTransportError("create order", err)
	}
	if apiErr := c.checkStatus(resp); apiErr != nil {
		return result, apiErr
	}

	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return result, &domain.UpstreamError{Status: resp.StatusCode(), Message: "malformed create-order response", Err: err}
	}
	c.logger.Info("Order placed",
		slog.String("pair", req.Pair),
		slog.String("action", req.Action),
		slog.String("order_id", result.OrderID),
	)
	return result, nil
}

// CancelOrder cancels one order. Idempotent from the caller's view only in
// that cancelling a settled or already-cancelled order surfaces the
// exchange's own error rather than pretending success.
func (c *Client) CancelOrder(ctx context.Context, pair, orderID string) error {
	if pair == "" {
		return domain.ErrInvalidPair
	}
	if orderID == "" {
		return fmt.Errorf("%w: orderId", domain.ErrInvalidOrderParam)
	}
	if err := c.requireCredentials(); err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.signer.GetHeaders()).
		Delete("/orders/" + pair + "/" + orderID)
	c.observe("cancel_order", resp, start)
	if err != nil {
		return domain.NewTransportError("cancel order", err)
	}
	if apiErr := c.checkStatus(resp); apiErr != nil {
		return apiErr
	}

	c.logger.Info("Order cancelled", slog.String("pair", pair), slog.String("order_id", orderID))
	return nil
}

// GetOrders returns order history for one pair, optionally bounded by a
// millisecond time range. The exchange enforces a 90-day maximum window
// between start and end; out-of-range queries are rejected here instead of
// being silently truncated upstream.
func (c *Client) GetOrders(ctx context.Context, pair, statusKind string, limit int, startMs, endMs int64) ([]domain.Order, error) {
	if pair == "" {
		return nil, domain.ErrInvalidPair
	}
	if startMs > 0 && endMs > 0 && endMs-startMs > MaxHistoryWindow.Milliseconds() {
		return nil, fmt.Errorf("%w: %d..%d", domain.ErrWindowTooWide, startMs, endMs)
	}
	if err := c.requireCredentials(); err != nil {
		return nil, err
	}

	if statusKind == "" {
		statusKind = "ALL"
	}
	query := map[string]string{"statusKind": statusKind}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	if startMs > 0 {
		query["startTimestamp"] = strconv.FormatInt(startMs, 10)
	}
	if endMs > 0 {
		query["endTimestamp"] = strconv.FormatInt(endMs, 10)
	}

	var resp ordersResponse
	if err := c.doAuthGet(ctx, "/orders/all/"+pair, query, &resp); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(resp.Data))
	for _, o := range resp.Data {
		order, err := o.toDomain()
		if err != nil {
			return nil, &domain.UpstreamError{Status: http.StatusOK, Message: "malformed order", Err: err}
		}
		if order.Pair == "" {
			order.Pair = pair
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// GetOrdersAcrossPairs aggregates order history over several pairs.
// Pairs are fetched concurrently; a failure on one pair is logged and that
// pair contributes zero orders (lossy but available). The merged result is
// de-duplicated by order id and sorted by creation time, newest first.
func (c *Client) GetOrdersAcrossPairs(ctx context.Context, pairs []string, statusKind string, limit int) ([]domain.Order, error) {
	if err := c.requireCredentials(); err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		all []domain.Order
		wg  sync.WaitGroup
	)
	for _, pair := range pairs {
		wg.Add(1)
		go func(pair string) {
			defer wg.Done()
			orders, err := c.GetOrders(ctx, pair, statusKind, limit, 0, 0)
			if err != nil {
				c.logger.Warn("Order history fetch failed, skipping pair",
					slog.String("pair", pair), slog.Any("error", err))
				return
			}
			mu.Lock()
			all = append(all, orders...)
			mu.Unlock()
		}(pair)
	}
	wg.Wait()

	seen := make(map[string]bool, len(all))
	unique := all[:0]
	for _, order := range all {
		if seen[order.ID] {
			continue
		}
		seen[order.ID] = true
		unique = append(unique, order)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].CreatedTimestamp > unique[j].CreatedTimestamp
	})
	return unique, nil
}

// ======================================================================================
// Request plumbing
// ======================================================================================

func (c *Client) requireCredentials() error {
	if !c.creds.IsConfigured() {
		return domain.NewConfigError("bitopro", domain.ErrCredentialsMissing)
	}
	return nil
}

func (c *Client) doGet(ctx context.Context, endpoint string, query map[string]string, out interface{}) error {
	return c.get(ctx, endpoint, query, nil, out)
}

func (c *Client) doAuthGet(ctx context.Context, endpoint string, query map[string]string, out interface{}) error {
	if err := c.requireCredentials(); err != nil {
		return err
	}
	return c.get(ctx, endpoint, query, c.signer.GetHeaders(), out)
}

func (c *Client) get(ctx context.Context, endpoint string, query, headers map[string]string, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}

	start := time.Now()
	resp, err := req.Get(endpoint)
	c.observe(endpoint, resp, start)
	if err != nil {
		return domain.NewTransportError("get "+endpoint, err)
	}
	if apiErr := c.checkStatus(resp); apiErr != nil {
		return apiErr
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &domain.UpstreamError{Status: resp.StatusCode(), Message: "malformed response from " + endpoint, Err: err}
	}
	return nil
}

// checkStatus maps a non-2xx response to the error taxonomy, carrying the
// upstream's own message through untouched.
func (c *Client) checkStatus(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	message := upstreamMessage(resp.Body())
	status := resp.StatusCode()
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &domain.AuthError{Status: status, Message: message}
	}
	return &domain.UpstreamError{Status: status, Message: message}
}

func upstreamMessage(body []byte) string {
	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	if len(body) > 256 {
		body = body[:256]
	}
	return string(body)
}

func (c *Client) observe(endpoint string, resp *resty.Response, start time.Time) {
	status := "error"
	if resp != nil && resp.RawResponse != nil {
		status = strconv.Itoa(resp.StatusCode())
	}
	infra.UpstreamRequests.WithLabelValues("bitopro", endpoint, status).Inc()
	infra.UpstreamLatency.WithLabelValues("bitopro").Observe(float64(time.Since(start).Milliseconds()))
}
