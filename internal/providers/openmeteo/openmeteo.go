// Package openmeteo talks to the Open-Meteo forecast API. Both forecast
// and history go through the same /forecast endpoint; history just pins
// the date window.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"agromet-cloud/internal/providers"
	weather "agromet-cloud/internal/weather/domain"
)

const (
	// Code is the provider code this adapter registers under.
	Code = "open_meteo"

	defaultBaseURL      = "https://api.open-meteo.com/v1"
	defaultForecastDays = 7
	dateLayout          = "2006-01-02"
)

var (
	errRateLimited = errors.New("open_meteo: rate limited")
	errServerError = errors.New("open_meteo: server error")
	errCircuitOpen = errors.New("open_meteo: circuit open")
)

// Backoff controls retry pacing for transient failures.
type Backoff struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Client is the Open-Meteo adapter. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	backoff Backoff
	circuit *gobreaker.CircuitBreaker
	logger  *log.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL, mainly for tests and
// self-hosted instances.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithBackoff overrides the retry pacing.
func WithBackoff(b Backoff) Option {
	return func(c *Client) {
		if b.MaxRetries >= 0 && b.InitialInterval > 0 {
			c.backoff = b
		}
	}
}

// NewClient constructs an Open-Meteo client.
func NewClient(httpClient *http.Client, logger *log.Logger, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("open_meteo: nil http client")
	}
	if logger == nil {
		return nil, errors.New("open_meteo: nil logger")
	}

	c := &Client{
		baseURL: defaultBaseURL,
		http:    httpClient,
		backoff: Backoff{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        Code,
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Forecast fetches one granularity section of forecast data. With From
// set and To zero, the window extends the default horizon forward.
func (c *Client) Forecast(ctx context.Context, q providers.Query) (providers.RawSection, error) {
	if q.To.IsZero() && !q.From.IsZero() {
		q.To = q.From.AddDate(0, 0, defaultForecastDays)
	}
	return c.fetch(ctx, q, false)
}

// History fetches one granularity section of archived data. Both dates
// are required.
func (c *Client) History(ctx context.Context, q providers.Query) (providers.RawSection, error) {
	if q.From.IsZero() || q.To.IsZero() {
		return nil, errors.New("open_meteo: history requires both dates")
	}
	return c.fetch(ctx, q, true)
}

func (c *Client) fetch(ctx context.Context, q providers.Query, datesRequired bool) (providers.RawSection, error) {
	switch q.Granularity {
	case weather.GranularityMinutely15, weather.GranularityHourly, weather.GranularityDaily:
	default:
		return nil, fmt.Errorf("open_meteo: unsupported granularity %q", q.Granularity)
	}

	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%.6f", q.Lat))
	values.Set("longitude", fmt.Sprintf("%.6f", q.Lon))
	values.Set(string(q.Granularity), strings.Join(q.Params, ","))
	values.Set("timezone", "UTC")
	if !q.From.IsZero() {
		values.Set("start_date", q.From.UTC().Format(dateLayout))
	}
	if !q.To.IsZero() {
		values.Set("end_date", q.To.UTC().Format(dateLayout))
	}
	if q.Secret != "" {
		values.Set("apikey", q.Secret)
	}

	endpoint := c.baseURL + "/forecast?" + values.Encode()

	body, err := c.do(ctx, endpoint, q.OnExchange)
	if err != nil {
		return nil, err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("open_meteo: invalid JSON: %w", err)
	}
	raw, ok := payload[string(q.Granularity)]
	if !ok {
		return nil, nil
	}
	var section providers.RawSection
	if err := json.Unmarshal(raw, &section); err != nil {
		return nil, fmt.Errorf("open_meteo: decode %s section: %w", q.Granularity, err)
	}
	return section, nil
}

// do runs the request with exponential backoff and a circuit breaker.
// onExchange fires once per HTTP response received, even for attempts
// that end up retried, so accounting matches what the provider billed.
func (c *Client) do(ctx context.Context, endpoint string, onExchange func()) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := c.circuit.Execute(func() (any, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if reqErr != nil {
				return nil, reqErr
			}
			resp, doErr := c.http.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			defer resp.Body.Close()

			if onExchange != nil {
				onExchange()
			}

			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return nil, readErr
			}
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				return nil, errServerError
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				return nil, fmt.Errorf("open_meteo: status %d: %s", resp.StatusCode, truncate(body, 200))
			}
			return body, nil
		})
		if err == nil {
			return result.([]byte), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= c.backoff.MaxRetries {
			return nil, lastErr
		}

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}
		c.logger.Printf("open_meteo: attempt %d failed (%v), retrying in %s", attempt+1, err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
