package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetEntry is the local journal row for an asset record that was
// successfully written to the remote ledger.
type AssetEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Target    string    `gorm:"index" json:"target"`
	Date      string    `json:"date"`
	Quantity  string    `json:"quantity"` // decimal text, exact
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// ToRecord converts a journal row back to an asset record.
func (e *AssetEntry) ToRecord() (AssetRecord, error) {
	quantity, err := decimal.NewFromString(e.Quantity)
	if err != nil {
		return AssetRecord{}, err
	}
	amount, err := decimal.NewFromString(e.Amount)
	if err != nil {
		return AssetRecord{}, err
	}
	return AssetRecord{
		Target:   e.Target,
		Date:     e.Date,
		Quantity: quantity,
		Amount:   amount,
	}, nil
}

// Setting represents user-specific configuration (Key-Value).
// Credential blobs live here in obfuscated form.
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
