package postal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"mini-erp/internal/apperr"
	"mini-erp/internal/models"
	"mini-erp/internal/util"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://viacep.com.br/ws"
	defaultTimeout = 5 * time.Second
	serviceName    = "viacep"
)

var (
	postalCodePattern = regexp.MustCompile(`^\d{8}$`)

	errInvalidPostalCode = errors.New("invalid postal code")
)

// Config configures the ViaCEP client
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   util.RetryPolicy
}

// Client completes addresses from a Brazilian postal code (CEP)
type Client struct {
	baseURL string
	http    *http.Client
	retry   util.RetryPolicy
	logger  *zap.Logger
}

// Lookup is the address data the provider holds for a postal code
type Lookup struct {
	PostalCode string `json:"cep"`
	Street     string `json:"logradouro"`
	Complement string `json:"complemento"`
	District   string `json:"bairro"`
	City       string `json:"localidade"`
	State      string `json:"uf"`
	Error      flag   `json:"erro"`
}

// flag accepts both true and "true"; the provider has returned either.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true":
		*f = true
	default:
		*f = false
	}
	return nil
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = util.DefaultRetryPolicy()
	}

	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		retry:   cfg.Retry,
		logger:  util.GetLogger(),
	}
}

// Enrich fills the blank street, district, city and state of addr from its
// postal code. Fields the caller supplied are never overwritten. A blank
// postal code or an already complete address returns addr unchanged.
func (c *Client) Enrich(ctx context.Context, addr models.Address) (models.Address, error) {
	code := strings.ReplaceAll(strings.TrimSpace(addr.PostalCode), "-", "")
	if code == "" {
		return addr, nil
	}
	if !postalCodePattern.MatchString(code) {
		return addr, apperr.Validation("invalid postal code", addr.PostalCode)
	}
	addr.PostalCode = code

	if isComplete(addr) {
		c.logger.Debug("Address already complete, skipping postal lookup", zap.String("postal_code", code))
		return addr, nil
	}

	found, err := c.Lookup(ctx, code)
	if err != nil {
		return addr, err
	}

	if isBlank(addr.Street) {
		addr.Street = found.Street
	}
	if isBlank(addr.District) {
		addr.District = found.District
	}
	if isBlank(addr.City) {
		addr.City = found.City
	}
	if isBlank(addr.State) {
		addr.State = found.State
	}
	if isBlank(addr.Complement) && !isBlank(found.Complement) {
		addr.Complement = found.Complement
	}
	return addr, nil
}

// Lookup queries the provider, retrying server errors. An unknown postal code
// is a Validation error; exhausting the retries is UpstreamUnavailable.
func (c *Client) Lookup(ctx context.Context, code string) (*Lookup, error) {
	ctx, span := util.StartSpan(ctx, "PostalClient.Lookup")
	defer span.End()

	start := time.Now()
	var found Lookup
	attempts, err := c.retry.Do(ctx, func(ctx context.Context) error {
		return c.fetch(ctx, code, &found)
	})
	util.UpstreamLatency.WithLabelValues(serviceName).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		util.UpstreamRequestsTotal.WithLabelValues(serviceName, "success").Inc()
		c.logger.Info("Postal code resolved", zap.String("postal_code", code), zap.Int("attempts", attempts))
		return &found, nil
	case errors.Is(err, errInvalidPostalCode):
		util.UpstreamRequestsTotal.WithLabelValues(serviceName, "invalid").Inc()
		c.logger.Warn("Postal code rejected by provider", zap.String("postal_code", code))
		return nil, apperr.Validation("invalid postal code", code)
	default:
		util.UpstreamRequestsTotal.WithLabelValues(serviceName, "unavailable").Inc()
		util.RecordError(span, err)
		c.logger.Error("Postal lookup failed",
			zap.String("postal_code", code),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return nil, apperr.UpstreamUnavailable("address service temporarily unavailable", err)
	}
}

func (c *Client) fetch(ctx context.Context, code string, out *Lookup) error {
	endpoint := fmt.Sprintf("%s/%s/json/", c.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return util.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("postal: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		if util.RetryableStatus(resp.StatusCode) {
			return fmt.Errorf("postal: status %d", resp.StatusCode)
		}
		return util.Permanent(errInvalidPostalCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return util.Permanent(fmt.Errorf("postal: decode response: %w", err))
	}
	if out.Error {
		return util.Permanent(errInvalidPostalCode)
	}
	return nil
}

func isComplete(addr models.Address) bool {
	return !isBlank(addr.Street) && !isBlank(addr.District) && !isBlank(addr.City) && !isBlank(addr.State)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
