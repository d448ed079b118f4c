// Package analytics emits click events to the external analytics sink.
// Delivery is fire-and-forget: errors are returned for logging but must never
// reach the HTTP response, and nothing is retried synchronously. When the
// base URL is empty, all methods are no-ops so local setups can run without a
// sink.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonesrussell/link-router/internal/domain"
)

// ErrCircuitOpen is returned when the circuit breaker is blocking requests.
var ErrCircuitOpen = errors.New("analytics circuit breaker open")

const (
	defaultTimeout    = 2 * time.Second
	breakerThreshold  = 5
	breakerHalfOpen   = 30 * time.Second
	breakerCloseAfter = 2
)

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

type circuitBreaker struct {
	mu                  sync.Mutex
	state               circuitState
	consecutiveFailures int
	lastFailure         time.Time
	successesSinceOpen  int
}

// Client posts click events to the sink's ingest endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *circuitBreaker
}

// NewClient creates an analytics client. If baseURL is empty, Emit is a no-op.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
		breaker:    &circuitBreaker{},
	}
}

// IsEnabled returns true if the client is configured with a URL.
func (c *Client) IsEnabled() bool {
	return c.baseURL != ""
}

// CircuitOpen returns true if the circuit breaker is open.
func (c *Client) CircuitOpen() bool {
	c.breaker.mu.Lock()
	defer c.breaker.mu.Unlock()

	return c.breaker.state == circuitOpen
}

// Emit sends a single click event. A non-nil error is for logging only.
func (c *Client) Emit(ctx context.Context, event domain.ClickEvent) error {
	if !c.IsEnabled() {
		return nil
	}

	if !c.breakerAllow() {
		return ErrCircuitOpen
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return c.doPost(ctx, "/v1/events/clicks", body)
}

// doPost performs an HTTP POST and records circuit breaker results.
func (c *Client) doPost(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		c.breakerRecordFailure()
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breakerRecordFailure()
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		c.breakerRecordFailure()
		return fmt.Errorf("analytics sink error: status %d", resp.StatusCode)
	}

	c.breakerRecordSuccess()
	return nil
}

func (c *Client) breakerAllow() bool {
	c.breaker.mu.Lock()
	defer c.breaker.mu.Unlock()

	switch c.breaker.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Since(c.breaker.lastFailure) > breakerHalfOpen {
			c.breaker.state = circuitHalfOpen
			c.breaker.successesSinceOpen = 0
			return true
		}
		return false
	case circuitHalfOpen:
		return true
	}

	return true
}

func (c *Client) breakerRecordFailure() {
	c.breaker.mu.Lock()
	defer c.breaker.mu.Unlock()

	c.breaker.consecutiveFailures++
	c.breaker.lastFailure = time.Now()
	c.breaker.successesSinceOpen = 0

	if c.breaker.consecutiveFailures >= breakerThreshold {
		c.breaker.state = circuitOpen
	}
}

func (c *Client) breakerRecordSuccess() {
	c.breaker.mu.Lock()
	defer c.breaker.mu.Unlock()

	if c.breaker.state == circuitHalfOpen {
		c.breaker.successesSinceOpen++

		if c.breaker.successesSinceOpen >= breakerCloseAfter {
			c.breaker.state = circuitClosed
			c.breaker.consecutiveFailures = 0
		}
	} else {
		c.breaker.consecutiveFailures = 0
	}
}
