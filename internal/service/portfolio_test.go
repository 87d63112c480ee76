package service

import (
	"context"
	"errors"
	"testing"

	"bitodash/internal/domain"
	"bitodash/internal/infra/finance"

	"github.com/shopspring/decimal"
)

type fakeExchange struct {
	balances []domain.Balance
	tickers  []domain.Ticker
	err      error
}

func (f *fakeExchange) GetAccountBalance(ctx context.Context) ([]domain.Balance, error) {
	return f.balances, f.err
}

func (f *fakeExchange) GetTickers(ctx context.Context) ([]domain.Ticker, error) {
	return f.tickers, f.err
}

type fakeRates struct {
	result finance.FXResult
}

func (f *fakeRates) UsdTwdRate(ctx context.Context) finance.FXResult {
	return f.result
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Bad test decimal %q: %v", s, err)
	}
	return v
}

func TestPortfolio_Valuation(t *testing.T) {
	ex := &fakeExchange{
		balances: []domain.Balance{
			{Currency: "twd", Amount: dec(t, "10000"), Available: dec(t, "10000")},
			{Currency: "btc", Amount: dec(t, "0.5"), Available: dec(t, "0.5")},
			{Currency: "doge", Amount: dec(t, "100")}, // no TWD market
			{Currency: "eth", Amount: dec(t, "0")},    // empty, dropped
		},
		tickers: []domain.Ticker{
			{Pair: "BTC_TWD", LastPrice: dec(t, "2000000")},
			{Pair: "eth_twd", LastPrice: dec(t, "100000")},
		},
	}
	rates := &fakeRates{result: finance.FXResult{Rate: dec(t, "32"), Source: "frankfurter"}}

	valuation, err := NewPortfolioService(rates).Valuation(context.Background(), ex)
	if err != nil {
		t.Fatalf("Valuation failed: %v", err)
	}

	// eth dropped (zero balance), three holdings remain
	if len(valuation.Holdings) != 3 {
		t.Fatalf("Expected 3 holdings, got %d", len(valuation.Holdings))
	}

	// Largest TWD value first: BTC (1,000,000), then TWD (10,000), then DOGE (0)
	if valuation.Holdings[0].Currency != "BTC" {
		t.Errorf("Expected BTC first, got %s", valuation.Holdings[0].Currency)
	}
	if !valuation.Holdings[0].ValueTwd.Equal(dec(t, "1000000")) {
		t.Errorf("BTC value: expected 1000000, got %s", valuation.Holdings[0].ValueTwd)
	}

	// TWD valued at par
	if valuation.Holdings[1].Currency != "TWD" || !valuation.Holdings[1].PriceTwd.Equal(dec(t, "1")) {
		t.Errorf("TWD should be valued at par: %+v", valuation.Holdings[1])
	}

	// Currency without a TWD market stays visible with zero value
	if valuation.Holdings[2].Currency != "DOGE" || !valuation.Holdings[2].ValueTwd.IsZero() {
		t.Errorf("DOGE should appear with zero value: %+v", valuation.Holdings[2])
	}

	if !valuation.TotalTwd.Equal(dec(t, "1010000")) {
		t.Errorf("Total TWD: expected 1010000, got %s", valuation.TotalTwd)
	}
	// 1,010,000 / 32
	if !valuation.TotalUsd.Equal(valuation.TotalTwd.Div(dec(t, "32"))) {
		t.Errorf("Total USD inconsistent with rate: %s", valuation.TotalUsd)
	}
	if valuation.RateSource != "frankfurter" || valuation.RateStale {
		t.Errorf("Rate metadata lost: %+v", valuation)
	}
}

func TestPortfolio_StaleRateCarriedThrough(t *testing.T) {
	ex := &fakeExchange{
		balances: []domain.Balance{{Currency: "twd", Amount: dec(t, "100")}},
	}
	rates := &fakeRates{result: finance.FXResult{Rate: dec(t, "32.5"), Source: "default", Stale: true}}

	valuation, err := NewPortfolioService(rates).Valuation(context.Background(), ex)
	if err != nil {
		t.Fatalf("Valuation failed: %v", err)
	}
	if !valuation.RateStale || valuation.RateSource != "default" {
		t.Errorf("Stale default rate must be visible to the caller: %+v", valuation)
	}
}

func TestPortfolio_ExchangeErrorPropagates(t *testing.T) {
	wantErr := &domain.AuthError{Status: 401, Message: "bad key"}
	ex := &fakeExchange{err: wantErr}
	rates := &fakeRates{result: finance.FXResult{Rate: dec(t, "32")}}

	_, err := NewPortfolioService(rates).Valuation(context.Background(), ex)
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Errorf("Expected AuthError to propagate, got %v", err)
	}
}
