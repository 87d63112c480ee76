package bitopro

import (
	"fmt"
	"time"

	"bitodash/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	// BaseURL is the BitoPro v3 REST endpoint.
	BaseURL = "https://api.bitopro.com/v3"

	// WSOrderBookURL is the public order-book stream base; the pair is
	// appended as a lowercase path segment.
	WSOrderBookURL = "wss://stream.bitopro.com:443/ws/v1/pub/order-books"

	// MaxHistoryWindow is the widest start/end range the exchange accepts
	// for order history queries. Wider queries must be chunked by the caller.
	MaxHistoryWindow = 90 * 24 * time.Hour

	requestTimeout   = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second

	// DefaultReconnectDelay is the fixed wait between stream reconnect
	// attempts. No backoff growth: acceptable for a single personal feed.
	DefaultReconnectDelay = 5 * time.Second
)

// errorResponse is the exchange's error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

type balanceResponse struct {
	Data []struct {
		Currency  string `json:"currency"`
		Amount    string `json:"amount"`
		Available string `json:"available"`
		Stake     string `json:"stake"`
		Tradable  bool   `json:"tradable"`
	} `json:"data"`
}

type tickerData struct {
	Pair            string `json:"pair"`
	LastPrice       string `json:"lastPrice"`
	PriceChange24hr string `json:"priceChange24hr"`
	High24hr        string `json:"high24hr"`
	Low24hr         string `json:"low24hr"`
	Volume24hr      string `json:"volume24hr"`
	IsBuyer         bool   `json:"isBuyer"`
}

type tickersResponse struct {
	Data []tickerData `json:"data"`
}

type tickerResponse struct {
	Data tickerData `json:"data"`
}

type bookLevel struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
	Count  int    `json:"count"`
}

type orderBookResponse struct {
	Bids []bookLevel `json:"bids"`
	Asks []bookLevel `json:"asks"`
}

type orderData struct {
	ID                string `json:"id"`
	Pair              string `json:"pair"`
	Action            string `json:"action"`
	Type              string `json:"type"`
	Price             string `json:"price"`
	AvgExecutionPrice string `json:"avgExecutionPrice"`
	OriginalAmount    string `json:"originalAmount"`
	ExecutedAmount    string `json:"executedAmount"`
	RemainingAmount   string `json:"remainingAmount"`
	Status            int    `json:"status"`
	CreatedTimestamp  int64  `json:"createdTimestamp"`
	UpdatedTimestamp  int64  `json:"updatedTimestamp"`
}

type ordersResponse struct {
	Data []orderData `json:"data"`
}

type createOrderBody struct {
	Action    string `json:"action"`
	Amount    string `json:"amount"`
	Price     string `json:"price,omitempty"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type tradeData struct {
	Price     string `json:"price"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
	IsBuyer   bool   `json:"isBuyer"`
}

type tradesResponse struct {
	Data []tradeData `json:"data"`
}

type currenciesResponse struct {
	Data []struct {
		Currency         string `json:"currency"`
		Deposit          bool   `json:"deposit"`
		Withdraw         bool   `json:"withdraw"`
		MinWithdraw      string `json:"minWithdraw"`
		MaxDailyWithdraw string `json:"maxDailyWithdraw"`
	} `json:"data"`
}

type tradingPairsResponse struct {
	Data []struct {
		Pair               string `json:"pair"`
		Base               string `json:"base"`
		Quote              string `json:"quote"`
		BasePrecision      int    `json:"basePrecision"`
		QuotePrecision     int    `json:"quotePrecision"`
		MinLimitBaseAmount string `json:"minLimitBaseAmount"`
		Maintain           bool   `json:"maintain"`
	} `json:"data"`
}

// wsFrame is one inbound order-book stream message. Only "ORDER_BOOK"
// events carry bids/asks; everything else is ignored.
type wsFrame struct {
	Event     string      `json:"event"`
	Pair      string      `json:"pair"`
	Timestamp int64       `json:"timestamp"`
	Bids      []bookLevel `json:"bids"`
	Asks      []bookLevel `json:"asks"`
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed %s %q: %w", field, s, err)
	}
	return d, nil
}

func (t tickerData) toDomain() (domain.Ticker, error) {
	var (
		ticker = domain.Ticker{Pair: t.Pair, IsBuyer: t.IsBuyer}
		err    error
	)
	if ticker.LastPrice, err = parseDecimal("lastPrice", t.LastPrice); err != nil {
		return ticker, err
	}
	if ticker.PriceChange24hr, err = parseDecimal("priceChange24hr", t.PriceChange24hr); err != nil {
		return ticker, err
	}
	if ticker.High24hr, err = parseDecimal("high24hr", t.High24hr); err != nil {
		return ticker, err
	}
	if ticker.Low24hr, err = parseDecimal("low24hr", t.Low24hr); err != nil {
		return ticker, err
	}
	if ticker.Volume24hr, err = parseDecimal("volume24hr", t.Volume24hr); err != nil {
		return ticker, err
	}
	return ticker, nil
}

func (o orderData) toDomain() (domain.Order, error) {
	var (
		order = domain.Order{
			ID:               o.ID,
			Pair:             o.Pair,
			Action:           o.Action,
			Type:             o.Type,
			Status:           o.Status,
			CreatedTimestamp: o.CreatedTimestamp,
			UpdatedTimestamp: o.UpdatedTimestamp,
		}
		err error
	)
	if order.Price, err = parseDecimal("price", o.Price); err != nil {
		return order, err
	}
	if order.AvgExecutionPrice, err = parseDecimal("avgExecutionPrice", o.AvgExecutionPrice); err != nil {
		return order, err
	}
	if order.OriginalAmount, err = parseDecimal("originalAmount", o.OriginalAmount); err != nil {
		return order, err
	}
	if order.ExecutedAmount, err = parseDecimal("executedAmount", o.ExecutedAmount); err != nil {
		return order, err
	}
	if order.RemainingAmount, err = parseDecimal("remainingAmount", o.RemainingAmount); err != nil {
		return order, err
	}
	return order, nil
}

func levelsToDomain(levels []bookLevel) ([]domain.BookLevel, error) {
	out := make([]domain.BookLevel, 0, len(levels))
	for _, lv := range levels {
		price, err := parseDecimal("price", lv.Price)
		if err != nil {
			return nil, err
		}
		amount, err := parseDecimal("amount", lv.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.BookLevel{Price: price, Amount: amount, Count: lv.Count})
	}
	return out, nil
}
