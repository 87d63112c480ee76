package finance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"bitodash/internal/domain"
	"bitodash/internal/infra"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	cacheKeyFx        = "FX_USDTWD"
	cacheKeyFearGreed = "FEAR_GREED"

	fearGreedURL = "https://api.alternative.me/fng/?limit=1"
	fearGreedTTL = time.Hour
)

// FXResult is a resolved USD/TWD rate. Stale marks a value served from an
// expired cache entry after every provider failed; Source names the
// provider that produced it ("default" for the hardcoded fallback).
type FXResult struct {
	Rate   decimal.Decimal `json:"rate"`
	Source string          `json:"source"`
	Stale  bool            `json:"stale"`
}

// StockQuote is a resolved stock price.
type StockQuote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Currency      string          `json:"currency"`
	Source        string          `json:"source"`
	Stale         bool            `json:"stale"`
}

// FearGreed is the crypto Fear & Greed index reading.
type FearGreed struct {
	Value          int    `json:"value"`
	Classification string `json:"classification"`
	Timestamp      int64  `json:"timestamp"`
}

// Service resolves FX rates and stock quotes through ordered provider
// chains with a TTL cache. Total provider failure degrades to the stale
// cache entry, then to a documented default (FX) or an unavailable error
// (stock). The chain itself never surfaces a provider error to callers.
type Service struct {
	http           *resty.Client
	cache          *Cache
	fxTTL          time.Duration
	stockTTL       time.Duration
	defaultUsdTwd  decimal.Decimal
	fxProviders    []fxProvider
	stockProviders []stockProvider
	logger         *slog.Logger
}

// NewService creates a market-data service with the default provider chains.
func NewService(cfg *infra.Config, clock infra.Clock) *Service {
	return newService(
		clock,
		time.Duration(cfg.API.Finance.FxTTLMin)*time.Minute,
		time.Duration(cfg.API.Finance.StockTTLMin)*time.Minute,
		time.Duration(cfg.API.Finance.ProviderTimeoutSec)*time.Second,
		decimal.NewFromFloat(cfg.API.Finance.DefaultUsdTwd),
		defaultFxProviders(),
		defaultStockProviders(),
	)
}

func newService(clock infra.Clock, fxTTL, stockTTL, providerTimeout time.Duration, defaultRate decimal.Decimal, fx []fxProvider, stock []stockProvider) *Service {
	httpClient := resty.New().
		SetTimeout(providerTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", infra.DefaultUserAgent)

	return &Service{
		http:           httpClient,
		cache:          NewCache(clock),
		fxTTL:          fxTTL,
		stockTTL:       stockTTL,
		defaultUsdTwd:  defaultRate,
		fxProviders:    fx,
		stockProviders: stock,
		logger:         slog.Default().With("module", "finance"),
	}
}

// UsdTwdRate resolves the USD/TWD rate. Never fails: the worst case is the
// hardcoded default on a cold cache with every provider down, so downstream
// arithmetic never sees zero or null.
func (s *Service) UsdTwdRate(ctx context.Context) FXResult {
	cached, lookup := s.cache.Get(cacheKeyFx, s.fxTTL)
	if lookup == LookupFresh {
		return cached.(FXResult)
	}

	for _, p := range s.fxProviders {
		rate, err := s.fetchFx(ctx, p)
		if err != nil {
			infra.ProviderFallbacks.WithLabelValues("fx", p.name, "error").Inc()
			s.logger.Warn("FX provider failed", slog.String("provider", p.name), slog.Any("error", err))
			continue
		}
		infra.ProviderFallbacks.WithLabelValues("fx", p.name, "ok").Inc()
		result := FXResult{Rate: rate, Source: p.name}
		s.cache.Put(cacheKeyFx, result)
		return result
	}

	if lookup == LookupStale {
		s.logger.Warn("Every FX provider failed, serving stale rate")
		stale := cached.(FXResult)
		stale.Stale = true
		return stale
	}

	s.logger.Warn("Every FX provider failed with no cache, serving default rate",
		slog.String("rate", s.defaultUsdTwd.String()))
	return FXResult{Rate: s.defaultUsdTwd, Source: "default", Stale: true}
}

// StockQuote resolves a quote for one symbol. Returns ErrQuoteUnavailable
// only when every provider failed and nothing is cached.
func (s *Service) StockQuote(ctx context.Context, symbol string) (StockQuote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return StockQuote{}, fmt.Errorf("empty stock symbol")
	}

	cacheKey := "STOCK_" + strings.ToUpper(symbol)
	cached, lookup := s.cache.Get(cacheKey, s.stockTTL)
	if lookup == LookupFresh {
		return cached.(StockQuote), nil
	}

	for _, p := range s.stockProviders {
		quote, err := s.fetchStock(ctx, p, symbol)
		if err != nil {
			infra.ProviderFallbacks.WithLabelValues("stock", p.name, "error").Inc()
			s.logger.Warn("Stock provider failed",
				slog.String("provider", p.name), slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}
		infra.ProviderFallbacks.WithLabelValues("stock", p.name, "ok").Inc()
		quote.Source = p.name
		s.cache.Put(cacheKey, quote)
		return quote, nil
	}

	if lookup == LookupStale {
		s.logger.Warn("Every stock provider failed, serving stale quote", slog.String("symbol", symbol))
		stale := cached.(StockQuote)
		stale.Stale = true
		return stale, nil
	}
	return StockQuote{}, domain.ErrQuoteUnavailable
}

// FearGreedIndex fetches the latest crypto Fear & Greed reading, cached
// for an hour. Degrades to the stale entry on failure.
func (s *Service) FearGreedIndex(ctx context.Context) (FearGreed, error) {
	cached, lookup := s.cache.Get(cacheKeyFearGreed, fearGreedTTL)
	if lookup == LookupFresh {
		return cached.(FearGreed), nil
	}

	reading, err := s.fetchFearGreed(ctx)
	if err != nil {
		s.logger.Warn("Fear & Greed fetch failed", slog.Any("error", err))
		if lookup == LookupStale {
			return cached.(FearGreed), nil
		}
		return FearGreed{}, err
	}
	s.cache.Put(cacheKeyFearGreed, reading)
	return reading, nil
}

// ClearCache drops every cached entry.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

func (s *Service) fetchFx(ctx context.Context, p fxProvider) (decimal.Decimal, error) {
	body, err := s.getBody(ctx, p.url)
	if err != nil {
		return decimal.Zero, err
	}
	return p.parse(body)
}

func (s *Service) fetchStock(ctx context.Context, p stockProvider, symbol string) (StockQuote, error) {
	body, err := s.getBody(ctx, p.url(symbol))
	if err != nil {
		return StockQuote{}, err
	}
	return p.parse(symbol, body)
}

func (s *Service) fetchFearGreed(ctx context.Context) (FearGreed, error) {
	body, err := s.getBody(ctx, fearGreedURL)
	if err != nil {
		return FearGreed{}, err
	}

	var data struct {
		Data []struct {
			Value               string `json:"value"`
			ValueClassification string `json:"value_classification"`
			Timestamp           string `json:"timestamp"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return FearGreed{}, err
	}
	if len(data.Data) == 0 {
		return FearGreed{}, fmt.Errorf("empty fear & greed response")
	}

	value, err := strconv.Atoi(data.Data[0].Value)
	if err != nil {
		return FearGreed{}, fmt.Errorf("malformed fear & greed value %q", data.Data[0].Value)
	}
	ts, _ := strconv.ParseInt(data.Data[0].Timestamp, 10, 64)
	return FearGreed{
		Value:          value,
		Classification: data.Data[0].ValueClassification,
		Timestamp:      ts,
	}, nil
}

// getBody performs one bounded GET. The client timeout keeps a hung
// provider from blocking the rest of the chain.
func (s *Service) getBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := s.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
