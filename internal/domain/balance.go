package domain

import "github.com/shopspring/decimal"

// Balance represents one currency's account balance at the exchange.
type Balance struct {
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`    // Total balance
	Available decimal.Decimal `json:"available"` // Free to trade
	Stake     decimal.Decimal `json:"stake"`     // Locked in staking
	Tradable  bool            `json:"tradable"`
}

// HasFunds reports whether this currency holds anything at all.
func (b *Balance) HasFunds() bool {
	return b.Amount.IsPositive()
}
