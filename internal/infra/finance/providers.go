package finance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Free public data sources, tried strictly in order. The first provider to
// return a well-formed numeric result wins; there is no merging or
// averaging across providers and no per-provider retry beyond the chain's
// natural fallthrough.

// fxProvider resolves one USD/TWD rate from a single upstream.
type fxProvider struct {
	name  string
	url   string
	parse func([]byte) (decimal.Decimal, error)
}

// stockProvider resolves one stock quote from a single upstream.
type stockProvider struct {
	name  string
	url   func(symbol string) string
	parse func(symbol string, body []byte) (StockQuote, error)
}

func defaultFxProviders() []fxProvider {
	return []fxProvider{
		{
			// European Central Bank data, free and unlimited
			name:  "frankfurter",
			url:   "https://api.frankfurter.app/latest?from=USD&to=TWD",
			parse: parseRatesTWD,
		},
		{
			name:  "er-api",
			url:   "https://open.er-api.com/v6/latest/USD",
			parse: parseRatesTWD,
		},
		{
			name: "currency-api",
			url:  "https://cdn.jsdelivr.net/npm/@fawazahmed0/currency-api@latest/v1/currencies/usd.json",
			parse: func(body []byte) (decimal.Decimal, error) {
				var data struct {
					USD struct {
						TWD float64 `json:"twd"`
					} `json:"usd"`
				}
				if err := json.Unmarshal(body, &data); err != nil {
					return decimal.Zero, err
				}
				return positiveRate(data.USD.TWD)
			},
		},
	}
}

func parseRatesTWD(body []byte) (decimal.Decimal, error) {
	var data struct {
		Rates struct {
			TWD float64 `json:"TWD"`
		} `json:"rates"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return decimal.Zero, err
	}
	return positiveRate(data.Rates.TWD)
}

func positiveRate(rate float64) (decimal.Decimal, error) {
	if rate <= 0 {
		return decimal.Zero, fmt.Errorf("no usable TWD rate in response")
	}
	return decimal.NewFromFloat(rate), nil
}

func defaultStockProviders() []stockProvider {
	return []stockProvider{
		{
			name: "chart-api",
			url: func(symbol string) string {
				return "https://query1.finance.yahoo.com/v8/finance/chart/" + symbol + "?interval=1d&range=1d"
			},
			parse: parseChartQuote,
		},
		{
			name: "fmp",
			url: func(symbol string) string {
				return "https://financialmodelingprep.com/api/v3/quote/" + symbol + "?apikey=demo"
			},
			parse: parseQuoteArray,
		},
	}
}

func parseChartQuote(symbol string, body []byte) (StockQuote, error) {
	var data struct {
		Chart struct {
			Result []struct {
				Meta struct {
					Currency           string  `json:"currency"`
					Symbol             string  `json:"symbol"`
					RegularMarketPrice float64 `json:"regularMarketPrice"`
					PreviousClose      float64 `json:"previousClose"`
				} `json:"meta"`
			} `json:"result"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return StockQuote{}, err
	}
	if len(data.Chart.Result) == 0 {
		return StockQuote{}, fmt.Errorf("empty chart result")
	}

	meta := data.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return StockQuote{}, fmt.Errorf("no market price for %s", symbol)
	}

	quote := StockQuote{
		Symbol:   strings.ToUpper(symbol),
		Price:    decimal.NewFromFloat(meta.RegularMarketPrice),
		Currency: meta.Currency,
	}
	if meta.Symbol != "" {
		quote.Symbol = meta.Symbol
	}
	if quote.Currency == "" {
		quote.Currency = "USD"
	}
	if meta.PreviousClose > 0 {
		prev := decimal.NewFromFloat(meta.PreviousClose)
		quote.Change = quote.Price.Sub(prev)
		quote.ChangePercent = quote.Change.Div(prev).Mul(decimal.NewFromInt(100))
	}
	return quote, nil
}

func parseQuoteArray(symbol string, body []byte) (StockQuote, error) {
	var data []struct {
		Price             float64 `json:"price"`
		Change            float64 `json:"change"`
		ChangesPercentage float64 `json:"changesPercentage"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return StockQuote{}, err
	}
	if len(data) == 0 || data[0].Price <= 0 {
		return StockQuote{}, fmt.Errorf("no usable quote for %s", symbol)
	}

	return StockQuote{
		Symbol:        strings.ToUpper(symbol),
		Price:         decimal.NewFromFloat(data[0].Price),
		Change:        decimal.NewFromFloat(data[0].Change),
		ChangePercent: decimal.NewFromFloat(data[0].ChangesPercentage),
		Currency:      "USD",
	}, nil
}
