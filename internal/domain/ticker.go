package domain

import "github.com/shopspring/decimal"

// Ticker represents 24h price data for a single trading pair.
// Refreshed on a polling interval, never mutated locally.
type Ticker struct {
	Pair            string          `json:"pair"`
	LastPrice       decimal.Decimal `json:"lastPrice"`
	PriceChange24hr decimal.Decimal `json:"priceChange24hr"` // percent
	High24hr        decimal.Decimal `json:"high24hr"`
	Low24hr         decimal.Decimal `json:"low24hr"`
	Volume24hr      decimal.Decimal `json:"volume24hr"`
	IsBuyer         bool            `json:"isBuyer"`
}

// ChangeDirection returns "positive", "negative", or "neutral"
func (t *Ticker) ChangeDirection() string {
	if t.PriceChange24hr.IsPositive() {
		return "positive"
	}
	if t.PriceChange24hr.IsNegative() {
		return "negative"
	}
	return "neutral"
}

// BookLevel is one price level of an order book, as quoted by the exchange.
type BookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// OrderBook holds the visible depth of one pair. Levels arrive sorted
// best-first from the exchange.
type OrderBook struct {
	Pair string      `json:"pair"`
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// OrderBookSnapshot is the live best-bid/best-ask view derived from the
// WebSocket stream. Replaced wholesale on every inbound frame, never merged.
// LastPrice is the arithmetic mid of bid and ask, a proxy for last trade.
type OrderBookSnapshot struct {
	Pair      string          `json:"pair"`
	BestBid   decimal.Decimal `json:"bestBid"`
	BestAsk   decimal.Decimal `json:"bestAsk"`
	LastPrice decimal.Decimal `json:"lastPrice"`
}

// SnapshotFromBook derives the best-bid/ask snapshot from a full book.
// An empty side contributes a zero price.
func SnapshotFromBook(pair string, bids, asks []BookLevel) OrderBookSnapshot {
	snap := OrderBookSnapshot{Pair: pair}
	if len(bids) > 0 {
		snap.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		snap.BestAsk = asks[0].Price
	}
	snap.LastPrice = snap.BestBid.Add(snap.BestAsk).Div(decimal.NewFromInt(2))
	return snap
}
