package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mini-erp/internal/apperr"
	"mini-erp/internal/money"
	"mini-erp/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.exchangerate-api.com"
	defaultTimeout = 5 * time.Second
	defaultTTL     = time.Hour
	serviceName    = "exchangerate"
)

// RateCache stores rates under a BASE_QUOTE key. Get reports false on a miss.
type RateCache interface {
	GetRate(ctx context.Context, key string) (decimal.Decimal, bool, error)
	SetRate(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	TTL     time.Duration
	Retry   util.RetryPolicy
}

// Client fetches the latest conversion rates and caches them
type Client struct {
	baseURL string
	http    *http.Client
	cache   RateCache
	ttl     time.Duration
	retry   util.RetryPolicy
	logger  *zap.Logger
}

type latestRates struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// NewClient creates a client. A nil cache falls back to an in-process one.
func NewClient(cfg Config, cache RateCache) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = util.DefaultRetryPolicy()
	}
	if cache == nil {
		cache = NewMemoryCache()
	}

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
		ttl:     cfg.TTL,
		retry:   cfg.Retry,
		logger:  util.GetLogger(),
	}
}

// CacheKey is the cache entry name for a currency pair.
func CacheKey(base, quote string) string {
	return strings.ToUpper(base) + "_" + strings.ToUpper(quote)
}

// Rate returns how many units of quote one unit of base buys.
func (c *Client) Rate(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "ExchangeClient.Rate")
	defer span.End()

	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	key := CacheKey(base, quote)

	rate, ok, err := c.cache.GetRate(ctx, key)
	if err != nil {
		c.logger.Warn("Rate cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		util.RateCacheLookups.WithLabelValues("hit").Inc()
		return rate, nil
	}
	util.RateCacheLookups.WithLabelValues("miss").Inc()

	latest, err := c.fetchLatest(ctx, base)
	if err != nil {
		util.RecordError(span, err)
		return decimal.Zero, err
	}

	rate, found := latest.Rates[quote]
	if !found {
		return decimal.Zero, apperr.Validation("unsupported currency", quote)
	}

	if err := c.cache.SetRate(ctx, key, rate, c.ttl); err != nil {
		c.logger.Warn("Rate cache write failed", zap.String("key", key), zap.Error(err))
	}
	c.logger.Info("Exchange rate fetched",
		zap.String("pair", key),
		zap.String("rate", rate.String()),
		zap.String("date", latest.Date))
	return rate, nil
}

// Convert expresses amount, in base, as quote rounded to two decimals.
func (c *Client) Convert(ctx context.Context, amount decimal.Decimal, base, quote string) (decimal.Decimal, error) {
	rate, err := c.Rate(ctx, base, quote)
	if err != nil {
		return decimal.Zero, err
	}
	return money.Convert(amount, rate), nil
}

func (c *Client) fetchLatest(ctx context.Context, base string) (*latestRates, error) {
	start := time.Now()
	var latest latestRates
	attempts, err := c.retry.Do(ctx, func(ctx context.Context) error {
		return c.fetch(ctx, base, &latest)
	})
	util.UpstreamLatency.WithLabelValues(serviceName).Observe(time.Since(start).Seconds())

	if err != nil {
		util.UpstreamRequestsTotal.WithLabelValues(serviceName, "unavailable").Inc()
		c.logger.Error("Exchange rate lookup failed",
			zap.String("base", base),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return nil, apperr.UpstreamUnavailable("exchange rate service temporarily unavailable", err)
	}
	util.UpstreamRequestsTotal.WithLabelValues(serviceName, "success").Inc()
	return &latest, nil
}

func (c *Client) fetch(ctx context.Context, base string, out *latestRates) error {
	endpoint := fmt.Sprintf("%s/v4/latest/%s", c.baseURL, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return util.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("exchange: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("exchange: status %d", resp.StatusCode)
		if util.RetryableStatus(resp.StatusCode) {
			return err
		}
		return util.Permanent(err)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return util.Permanent(fmt.Errorf("exchange: decode response: %w", err))
	}
	return nil
}
