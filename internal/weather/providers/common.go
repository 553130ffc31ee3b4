package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-gateway/internal/weather"
)

const userAgent = "weather-gateway/1.0"

var (
	// ErrMissingAPIKey is returned before any network call when a key-gated
	// provider has no key configured.
	ErrMissingAPIKey = errors.New("api key not configured")

	ErrRateLimited    = errors.New("rate limited")
	ErrUpstreamStatus = errors.New("unexpected upstream status")
	ErrCircuitOpen    = errors.New("circuit breaker open")
	ErrInvalidPayload = errors.New("invalid upstream payload")
)

var validate = validator.New()

// NewHTTPClient returns the resty client shared by all providers. Retries
// stay disabled: a failed attempt moves the chain to the next provider.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)
}

// DefaultChain returns the providers in fallback order: the free provider
// first, key-gated providers after it.
func DefaultChain(client *resty.Client, openWeatherMapKey, weatherAPIKey string) []weather.Provider {
	return []weather.Provider{
		NewOpenMeteoProvider(client),
		NewOpenWeatherMapProvider(client, openWeatherMapKey),
		NewWeatherAPIProvider(client, weatherAPIKey),
	}
}

func newCircuitBreaker(name weather.ProviderName) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         string(name),
		MaxRequests:  5,
		Interval:     1 * time.Minute,
		Timeout:      2 * time.Minute,
		IsSuccessful: breakerSuccess,
	})
}

// breakerSuccess keeps caller cancellations from counting against the
// upstream: a client that went away says nothing about provider health.
func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// fetchJSON performs one GET through the circuit breaker, decodes the body
// into out and checks its `validate` tags.
func fetchJSON(
	ctx context.Context,
	client *resty.Client,
	cb *gobreaker.CircuitBreaker,
	endpoint string,
	params map[string]string,
	out any,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, err := client.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(endpoint)
		if err != nil {
			return nil, redactURL(err)
		}

		if resp.StatusCode() == http.StatusTooManyRequests {
			return nil, ErrRateLimited
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode())
		}
		return resp.Body(), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return err
	}

	body, ok := result.([]byte)
	if !ok {
		return fmt.Errorf("unexpected result type from circuit breaker")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// redactURL drops the query string from transport errors; it carries API keys.
func redactURL(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	target := ue.URL
	if u, perr := url.Parse(ue.URL); perr == nil {
		u.RawQuery = ""
		u.User = nil
		target = u.String()
	} else if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	return fmt.Errorf("%s %q: %w", ue.Op, target, ue.Err)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// floatAt reads vals[i], treating out-of-range and null as def.
func floatAt(vals []*float64, i int, def float64) float64 {
	if i < 0 || i >= len(vals) {
		return def
	}
	return valueOr(vals[i], def)
}

func intAt(vals []*int, i int) (int, bool) {
	if i < 0 || i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}

func metersPerSecondToKmh(v float64) float64 {
	return v * 3.6
}

func unixToRFC3339(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
