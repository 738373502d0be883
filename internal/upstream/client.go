// Package upstream talks to the remote directory backend that owns the provider catalogue.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"

	"github.com/octobees/provider-directory/internal/entity"
)

// ErrUnavailable marks transport failures and 5xx answers from the backend.
var ErrUnavailable = errors.New("upstream unavailable")

const providersPath = "/api/directory/providers"

// RetryConfig controls how transient failures are retried.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig keeps catalogue refreshes well under a request timeout.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// ProviderLister fetches the full provider catalogue.
type ProviderLister interface {
	ListProviders(ctx context.Context, requestID string) ([]entity.Provider, error)
}

// Client fetches providers from the upstream REST API.
type Client struct {
	client  *http.Client
	baseURL string
	retry   RetryConfig
}

// NewClient builds an upstream client, auto-configuring an ID token client when
// no HTTP client is supplied.
func NewClient(client *http.Client, baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("upstream base URL must not be empty")
	}
	if client == nil {
		idc, err := idtoken.NewClient(context.Background(), baseURL)
		if err != nil {
			client = &http.Client{Timeout: 10 * time.Second}
		} else {
			client = idc
		}
	}
	return &Client{client: client, baseURL: baseURL, retry: DefaultRetryConfig()}, nil
}

// WithRetry overrides the retry policy.
func (c *Client) WithRetry(cfg RetryConfig) *Client {
	c.retry = cfg
	return c
}

// ListProviders returns the upstream catalogue. Failures that may succeed on a
// later attempt are retried with exponential backoff and wrap ErrUnavailable.
func (c *Client) ListProviders(ctx context.Context, requestID string) ([]entity.Provider, error) {
	var providers []entity.Provider
	err := c.do(ctx, func() error {
		var err error
		providers, err = c.fetchProviders(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return providers, nil
}

func (c *Client) fetchProviders(ctx context.Context, requestID string) ([]entity.Provider, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+providersPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, extractError(resp.Body))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("upstream error: status %d: %s", resp.StatusCode, extractError(resp.Body))
	}

	var envelope struct {
		Data    []entity.Provider `json:"data"`
		Message string            `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && err != io.EOF {
		return nil, fmt.Errorf("could not decode upstream response: %w", err)
	}
	if envelope.Data == nil {
		return []entity.Provider{}, nil
	}
	return envelope.Data, nil
}

func (c *Client) do(ctx context.Context, fn func() error) error {
	attempts := max(c.retry.MaxAttempts, 1)
	delay := c.retry.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.Is(err, ErrUnavailable) || attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: retry aborted after %d attempts: %v", ErrUnavailable, attempt, lastErr)
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * c.retry.BackoffFactor)
		if c.retry.MaxDelay > 0 && delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
	}
	return lastErr
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return "upstream returned an error"
	}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}

var _ ProviderLister = (*Client)(nil)
