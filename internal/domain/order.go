package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Order action and type values as the exchange expects them (lowercase).
const (
	ActionBuy  = "buy"
	ActionSell = "sell"

	OrderTypeLimit  = "limit"
	OrderTypeMarket = "market"
)

// Order status codes as returned by the exchange.
const (
	OrderStatusNotTriggered     = -1
	OrderStatusInProgress       = 0
	OrderStatusInProgressDeal   = 1
	OrderStatusCompleted        = 2
	OrderStatusCompletedPartial = 3
	OrderStatusCancelled        = 4
)

// Order represents a trading order as reported by the exchange.
// Immutable once returned: the dashboard only reads, filters and sorts it.
type Order struct {
	ID                string          `json:"id"`
	Pair              string          `json:"pair"`
	Action            string          `json:"action"` // "buy", "sell"
	Type              string          `json:"type"`   // "limit", "market"
	Price             decimal.Decimal `json:"price"`
	AvgExecutionPrice decimal.Decimal `json:"avgExecutionPrice"`
	OriginalAmount    decimal.Decimal `json:"originalAmount"`
	ExecutedAmount    decimal.Decimal `json:"executedAmount"`
	RemainingAmount   decimal.Decimal `json:"remainingAmount"`
	Status            int             `json:"status"`
	CreatedTimestamp  int64           `json:"createdTimestamp"` // Unix milliseconds
	UpdatedTimestamp  int64           `json:"updatedTimestamp"` // Unix milliseconds
}

// IsOpen checks if the order is still active on the book.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusInProgress || o.Status == OrderStatusInProgressDeal
}

// StatusText returns a human-readable status label.
func (o *Order) StatusText() string {
	switch o.Status {
	case OrderStatusNotTriggered:
		return "NOT_TRIGGERED"
	case OrderStatusInProgress:
		return "IN_PROGRESS"
	case OrderStatusInProgressDeal:
		return "IN_PROGRESS_PARTIAL"
	case OrderStatusCompleted:
		return "COMPLETED"
	case OrderStatusCompletedPartial:
		return "COMPLETED_PARTIAL"
	case OrderStatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// CreateOrderRequest carries the parameters for a new order.
// Amounts and prices travel as strings: the exchange rejects floats that
// lost precision, so the caller's exact text is forwarded untouched.
type CreateOrderRequest struct {
	Pair   string `json:"pair"`
	Action string `json:"action"`
	Type   string `json:"type"`
	Amount string `json:"amount"`
	Price  string `json:"price,omitempty"`
}

// Validate checks the request at the boundary before it is signed and sent.
// Price is required only for limit orders.
func (r *CreateOrderRequest) Validate() error {
	if r.Pair == "" {
		return ErrInvalidPair
	}
	if r.Action != ActionBuy && r.Action != ActionSell {
		return fmt.Errorf("%w: action %q", ErrInvalidOrderParam, r.Action)
	}
	if r.Type != OrderTypeLimit && r.Type != OrderTypeMarket {
		return fmt.Errorf("%w: type %q", ErrInvalidOrderParam, r.Type)
	}
	if r.Amount == "" {
		return fmt.Errorf("%w: amount", ErrInvalidOrderParam)
	}
	if r.Type == OrderTypeLimit && r.Price == "" {
		return fmt.Errorf("%w: price required for limit order", ErrInvalidOrderParam)
	}
	return nil
}

// CreateOrderResult is the exchange's acknowledgement of a new order.
type CreateOrderResult struct {
	OrderID   string `json:"orderId"`
	Action    string `json:"action"`
	Amount    string `json:"amount"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}
