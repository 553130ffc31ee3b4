package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-gateway/internal/weather"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient() *resty.Client {
	return NewHTTPClient(2 * time.Second)
}

// upstream is a fake provider endpoint that records every query it receives.
type upstream struct {
	mu      sync.Mutex
	queries []url.Values
	srv     *httptest.Server
}

func newUpstream(t *testing.T, status int, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.queries = append(u.queries, r.URL.Query())
		u.mu.Unlock()

		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.queries)
}

func (u *upstream) lastQuery() url.Values {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.queries) == 0 {
		return nil
	}
	return u.queries[len(u.queries)-1]
}

func TestFetchJSON_StatusErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, ErrUpstreamStatus},
		{"unauthorized", http.StatusUnauthorized, ErrUpstreamStatus},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t, tt.status, `{"error":"nope"}`)
			cb := newCircuitBreaker(weather.ProviderOpenMeteo)

			var out openMeteoResponse
			err := fetchJSON(context.Background(), testClient(), cb, up.srv.URL, nil, &out)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFetchJSON_InvalidPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>gateway</html>`},
		{"missing current block", `{"hourly":{"time":[]}}`},
		{"missing required current field", `{"current":{"time":1700000000,"weather_code":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t, http.StatusOK, tt.body)
			cb := newCircuitBreaker(weather.ProviderOpenMeteo)

			var out openMeteoResponse
			err := fetchJSON(context.Background(), testClient(), cb, up.srv.URL, nil, &out)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestFetchJSON_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out openMeteoResponse
	err := fetchJSON(ctx, testClient(), newCircuitBreaker(weather.ProviderOpenMeteo), srv.URL, nil, &out)
	require.Error(t, err)
}

func TestFetchJSON_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	up := newUpstream(t, http.StatusBadGateway, `{}`)
	cb := newCircuitBreaker(weather.ProviderOpenMeteo)

	var out openMeteoResponse
	for i := 0; i < 6; i++ {
		err := fetchJSON(context.Background(), testClient(), cb, up.srv.URL, nil, &out)
		require.ErrorIs(t, err, ErrUpstreamStatus)
	}

	err := fetchJSON(context.Background(), testClient(), cb, up.srv.URL, nil, &out)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 6, up.calls(), "open circuit must not reach the upstream")
}

type statusPayload struct {
	Status string `json:"status" validate:"required"`
}

func TestFetchJSON_CallerCancellationKeepsCircuitClosed(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	cb := newCircuitBreaker(weather.ProviderOpenMeteo)
	var out statusPayload

	// In flight when the caller gives up.
	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)
		err := fetchJSON(ctx, testClient(), cb, srv.URL, nil, &out)
		require.ErrorIs(t, err, context.Canceled)
		cancel()
	}

	// Already gone before the call.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 6; i++ {
		err := fetchJSON(ctx, testClient(), cb, srv.URL, nil, &out)
		require.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State())

	close(release)
	require.NoError(t, fetchJSON(context.Background(), testClient(), cb, srv.URL, nil, &out))
	assert.Equal(t, "ok", out.Status)
}

func TestFetch_TransportErrorsDoNotLeakAPIKeys(t *testing.T) {
	const secret = "SECRET-API-KEY"

	// A closed server gives a fast connection-refused error.
	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	owm := NewOpenWeatherMapProvider(testClient(), secret)
	owm.baseURL = deadURL + "/onecall"
	wapi := NewWeatherAPIProvider(testClient(), secret)
	wapi.baseURL = deadURL + "/forecast.json"

	tests := []struct {
		name     string
		provider weather.Provider
		path     string
	}{
		{"openweathermap", owm, "/onecall"},
		{"weatherapi", wapi, "/forecast.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.provider.Fetch(context.Background(), 40.71, -74.01)
			require.Error(t, err)

			assert.NotContains(t, err.Error(), secret)
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestRedactURL(t *testing.T) {
	inner := errors.New("connection refused")
	err := redactURL(&url.Error{
		Op:  "Get",
		URL: "https://api.example.com/v1/forecast.json?key=abc123&q=1,2",
		Err: inner,
	})

	assert.Equal(t, `Get "https://api.example.com/v1/forecast.json": connection refused`, err.Error())
	assert.ErrorIs(t, err, inner)

	plain := errors.New("boom")
	assert.Same(t, plain, redactURL(plain))
}

func TestDefaultChain_Order(t *testing.T) {
	chain := DefaultChain(testClient(), "owm", "wapi")

	require.Len(t, chain, 3)
	assert.Equal(t, weather.ProviderOpenMeteo, chain[0].Name())
	assert.Equal(t, weather.ProviderOpenWeatherMap, chain[1].Name())
	assert.Equal(t, weather.ProviderWeatherAPI, chain[2].Name())
}

func TestHelpers(t *testing.T) {
	v := 3.5
	assert.Equal(t, 3.5, valueOr(&v, 1))
	assert.Equal(t, 1.0, valueOr(nil, 1))

	vals := []*float64{&v, nil}
	assert.Equal(t, 3.5, floatAt(vals, 0, 0))
	assert.Equal(t, 7.0, floatAt(vals, 1, 7))
	assert.Equal(t, 7.0, floatAt(vals, 5, 7))

	code := 61
	got, ok := intAt([]*int{&code, nil}, 0)
	assert.True(t, ok)
	assert.Equal(t, 61, got)
	_, ok = intAt([]*int{&code, nil}, 1)
	assert.False(t, ok)

	assert.Equal(t, "40.7128", formatCoord(40.7128))
	assert.Equal(t, "-74", formatCoord(-74))
	assert.InDelta(t, 18.0, metersPerSecondToKmh(5), 1e-9)
	assert.Equal(t, "2023-11-14T22:13:20Z", unixToRFC3339(1700000000))
}
