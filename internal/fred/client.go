package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public FRED API root.
const DefaultBaseURL = "https://api.stlouisfed.org/fred"

// Retry and backoff constants for transport-level failures (network errors,
// 429 and 5xx). Per-series retries are the sync engine's concern.
const (
	maxRetries     = 3
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "fredsync/0.1"
)

// requestBurst lets a few requests through back-to-back before pacing
// kicks in.
const requestBurst = 4

// RequestObserver receives one call per HTTP exchange. The metrics package
// provides the real implementation; nil disables observation.
type RequestObserver interface {
	ObserveRequest(endpoint string, status int)
}

// Client is an HTTP client for the FRED API. It appends the API key and
// file_type=json to every request, paces requests with a token bucket,
// retries transient failures with exponential backoff, and classifies
// errors into sentinels.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter // nil = unpaced
	observer   RequestObserver
	logger     *slog.Logger

	// sleepFunc is called to wait between retries. Defaults to timeSleep.
	// Tests override this to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a FRED API client. baseURL is typically DefaultBaseURL.
func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// SetRequestsPerMinute paces requests to at most n per minute. FRED's
// documented limit is 120. n <= 0 removes pacing.
func (c *Client) SetRequestsPerMinute(n int) {
	if n <= 0 {
		c.limiter = nil
		return
	}

	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), requestBurst)

	c.logger.Debug("request pacing enabled",
		slog.Int("requests_per_minute", n),
		slog.Int("burst", requestBurst),
	)
}

// SetObserver installs a RequestObserver.
func (c *Client) SetObserver(o RequestObserver) {
	c.observer = o
}

// getJSON performs a GET against endpoint with params and decodes the JSON
// body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	resp, err := c.do(ctx, endpoint, params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fred: decoding %s response: %w", endpoint, err)
	}

	return nil
}

// do executes a GET request against the FRED API with retry. The caller is
// responsible for closing the response body on success.
func (c *Client) do(ctx context.Context, endpoint string, params url.Values) (*http.Response, error) {
	reqURL := c.buildURL(endpoint, params)

	var attempt int
	for {
		if err := c.wait(ctx); err != nil {
			return nil, fmt.Errorf("fred: request canceled: %w", err)
		}

		resp, err := c.doOnce(ctx, reqURL)
		if err != nil {
			// Context cancellation is not retryable.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("fred: request canceled: %w", ctx.Err())
			}

			c.observe(endpoint, 0)

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("endpoint", endpoint),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("fred: request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("fred: GET %s failed after %d retries: %w", endpoint, maxRetries, err)
		}

		c.observe(endpoint, resp.StatusCode)

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			c.logger.Debug("request succeeded",
				slog.String("endpoint", endpoint),
				slog.Int("status", resp.StatusCode),
			)

			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("endpoint", endpoint),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if err := c.sleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("fred: request canceled: %w", err)
			}

			attempt++

			continue
		}

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    errorMessage(errBody),
			Err:        classifyStatus(resp.StatusCode),
		}
	}
}

// buildURL joins the base URL, endpoint and query. The API key is added
// here and nowhere else so it never reaches a log line.
func (c *Client) buildURL(endpoint string, params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}

	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")

	return c.baseURL + endpoint + "?" + q.Encode()
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	return c.httpClient.Do(req)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	return c.limiter.Wait(ctx)
}

func (c *Client) observe(endpoint string, status int) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, status)
	}
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
