// Package fxrate resolves conversion rates into the reference currency from
// the open.er-api.com latest-rates endpoint.
package fxrate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// DefaultBaseURL is the public latest-rates endpoint, queried as BaseURL/{currency}
const DefaultBaseURL = "https://open.er-api.com/v6/latest"

// Config holds resolver settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Resolver implements port.RateResolver. Lookup failures fall back to a rate of 1.
type Resolver struct {
	baseURL string
	client  *http.Client
	cache   port.RateCache
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures the resolver
type Option func(*Resolver)

// WithCache stores resolved rates per day so each currency is fetched once a day
func WithCache(cache port.RateCache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithHTTPClient replaces the default client
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithClock overrides the day used as cache key
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a rate resolver
func NewResolver(cfg Config, logger *zap.Logger, opts ...Option) *Resolver {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	r := &Resolver{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type latestResponse struct {
	Result string                     `json:"result"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// RateToReference returns how many reference-currency units one unit of
// currency is worth, rounded to 6 decimals.
func (r *Resolver) RateToReference(ctx context.Context, currency string) decimal.Decimal {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == entity.ReferenceCurrency {
		return decimal.NewFromInt(1)
	}

	day := r.now().UTC().Format("2006-01-02")
	if r.cache != nil {
		rate, found, err := r.cache.Get(currency, day)
		if err != nil {
			r.logger.Warn("Rate cache read failed", zap.String("currency", currency), zap.Error(err))
		} else if found {
			return rate
		}
	}

	rate, err := r.fetch(ctx, currency)
	if err != nil {
		r.logger.Warn("Falling back to neutral conversion rate",
			zap.String("currency", currency),
			zap.Error(err))
		return decimal.NewFromInt(1)
	}

	if r.cache != nil {
		if err := r.cache.Put(currency, day, rate); err != nil {
			r.logger.Warn("Rate cache write failed", zap.String("currency", currency), zap.Error(err))
		}
	}

	r.logger.Debug("Resolved conversion rate",
		zap.String("currency", currency),
		zap.String("rate", rate.String()))
	return rate
}

func (r *Resolver) fetch(ctx context.Context, currency string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+currency, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("request rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rates endpoint returned %d", resp.StatusCode)
	}

	var body latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode rates: %w", err)
	}
	if body.Result != "success" {
		return decimal.Zero, fmt.Errorf("rates endpoint result %q", body.Result)
	}

	rate, ok := body.Rates[entity.ReferenceCurrency]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("no %s rate for %s", entity.ReferenceCurrency, currency)
	}
	return rate.Round(6), nil
}

var _ port.RateResolver = (*Resolver)(nil)
