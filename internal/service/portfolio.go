package service

import (
	"context"
	"sort"
	"strings"

	"bitodash/internal/domain"
	"bitodash/internal/infra/finance"

	"github.com/shopspring/decimal"
)

// ExchangeReader is the slice of the exchange client the portfolio needs.
type ExchangeReader interface {
	GetAccountBalance(ctx context.Context) ([]domain.Balance, error)
	GetTickers(ctx context.Context) ([]domain.Ticker, error)
}

// RateResolver resolves the USD/TWD conversion rate.
type RateResolver interface {
	UsdTwdRate(ctx context.Context) finance.FXResult
}

// Holding is one currency position valued in TWD and USD.
type Holding struct {
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Available decimal.Decimal `json:"available"`
	Stake     decimal.Decimal `json:"stake"`
	PriceTwd  decimal.Decimal `json:"priceTwd"`
	ValueTwd  decimal.Decimal `json:"valueTwd"`
	ValueUsd  decimal.Decimal `json:"valueUsd"`
}

// Valuation is the whole account valued at current tickers.
type Valuation struct {
	Holdings   []Holding       `json:"holdings"`
	TotalTwd   decimal.Decimal `json:"totalTwd"`
	TotalUsd   decimal.Decimal `json:"totalUsd"`
	UsdTwdRate decimal.Decimal `json:"usdTwdRate"`
	RateSource string          `json:"rateSource"`
	RateStale  bool            `json:"rateStale"`
}

// PortfolioService values account balances against live tickers and the
// FX chain. The exchange client comes in per call because credentials
// arrive with each inbound request.
type PortfolioService struct {
	rates RateResolver
}

// NewPortfolioService creates a portfolio valuation service.
func NewPortfolioService(rates RateResolver) *PortfolioService {
	return &PortfolioService{rates: rates}
}

// Valuation fetches balances and tickers, then values every non-empty
// holding in TWD using the <currency>_twd ticker. TWD itself is valued at
// par. Currencies without a TWD market contribute zero value but still
// appear, so nothing silently disappears from the dashboard.
func (s *PortfolioService) Valuation(ctx context.Context, ex ExchangeReader) (Valuation, error) {
	var out Valuation

	balances, err := ex.GetAccountBalance(ctx)
	if err != nil {
		return out, err
	}
	tickers, err := ex.GetTickers(ctx)
	if err != nil {
		return out, err
	}

	prices := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		prices[strings.ToLower(t.Pair)] = t.LastPrice
	}

	fx := s.rates.UsdTwdRate(ctx)
	out.UsdTwdRate = fx.Rate
	out.RateSource = fx.Source
	out.RateStale = fx.Stale

	for _, b := range balances {
		if !b.HasFunds() {
			continue
		}

		holding := Holding{
			Currency:  strings.ToUpper(b.Currency),
			Amount:    b.Amount,
			Available: b.Available,
			Stake:     b.Stake,
		}

		switch strings.ToLower(b.Currency) {
		case "twd":
			holding.PriceTwd = decimal.NewFromInt(1)
		default:
			holding.PriceTwd = prices[strings.ToLower(b.Currency)+"_twd"]
		}

		holding.ValueTwd = b.Amount.Mul(holding.PriceTwd)
		if !fx.Rate.IsZero() {
			holding.ValueUsd = holding.ValueTwd.Div(fx.Rate)
		}

		out.Holdings = append(out.Holdings, holding)
		out.TotalTwd = out.TotalTwd.Add(holding.ValueTwd)
	}

	if !fx.Rate.IsZero() {
		out.TotalUsd = out.TotalTwd.Div(fx.Rate)
	}

	// Largest positions first
	sort.SliceStable(out.Holdings, func(i, j int) bool {
		return out.Holdings[i].ValueTwd.GreaterThan(out.Holdings[j].ValueTwd)
	})
	return out, nil
}
