package domain

import "github.com/shopspring/decimal"

// AssetRecord is one buy/sell entry in the external asset ledger.
// Amount is negative for sells.
type AssetRecord struct {
	Target   string          `json:"target"`   // Asset symbol (BTC, ETH, ...)
	Date     string          `json:"date"`     // YYYY-MM-DD
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// AssetSummary aggregates every record sharing a target symbol.
type AssetSummary struct {
	Target        string          `json:"target"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
}

// SummarizeAssets groups records by target, summing quantity and amount.
// Input order is preserved for first appearance of each target.
func SummarizeAssets(records []AssetRecord) []AssetSummary {
	index := make(map[string]int)
	summaries := make([]AssetSummary, 0, len(records))

	for _, rec := range records {
		if rec.Target == "" {
			continue
		}
		i, ok := index[rec.Target]
		if !ok {
			index[rec.Target] = len(summaries)
			summaries = append(summaries, AssetSummary{Target: rec.Target})
			i = len(summaries) - 1
		}
		summaries[i].TotalQuantity = summaries[i].TotalQuantity.Add(rec.Quantity)
		summaries[i].TotalAmount = summaries[i].TotalAmount.Add(rec.Amount)
	}
	return summaries
}

// BatchResult reports the outcome of a partial-success batch operation.
// Every item is attempted independently: one bad record never aborts the rest.
type BatchResult struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}
