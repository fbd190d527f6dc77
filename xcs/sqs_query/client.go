// Package sqsquery is a client for the Osmosis Sidecar Query Server router
// with endpoint failover.
package sqsquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "sqs").Logger()
}

// ErrNoEndpoints is returned by NewClient when no usable URL was given.
var ErrNoEndpoints = errors.New("no valid SQS endpoints")

// FailoverConfig controls retries and endpoint switching.
type FailoverConfig struct {
	// MaxRetries is the number of retries on the active endpoint before failing over.
	MaxRetries int
	// RetryDelay doubles after every retry.
	RetryDelay time.Duration
	// HealthCheckInterval is how often a demoted primary is probed.
	HealthCheckInterval time.Duration
	Timeout             time.Duration
}

func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		Timeout:             10 * time.Second,
	}
}

// Client queries SQS. The first URL is the primary; the rest are backups used
// while the primary is unhealthy.
type Client struct {
	httpClient *http.Client
	endpoints  []string
	config     FailoverConfig

	mu     sync.RWMutex
	active int

	stopCh    chan struct{}
	stoppedCh chan struct{}
	closeOnce sync.Once
}

func NewClient(urls []string, config FailoverConfig) (*Client, error) {
	endpoints := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, err := url.ParseRequestURI(u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Invalid SQS URL, skipping")
			continue
		}
		endpoints = append(endpoints, u)
	}
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	c := &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		endpoints:  endpoints,
		config:     config,
	}
	if len(endpoints) > 1 && config.HealthCheckInterval > 0 {
		c.stopCh = make(chan struct{})
		c.stoppedCh = make(chan struct{})
		go c.watchPrimary()
	}

	log.Info().
		Str("primary", endpoints[0]).
		Int("backups", len(endpoints)-1).
		Msg("SQS client initialized")
	return c, nil
}

// watchPrimary moves back to the primary endpoint once it answers again.
func (c *Client) watchPrimary() {
	defer close(c.stoppedCh)
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if c.activeIndex() == 0 {
				continue
			}
			if c.healthy(context.Background(), c.endpoints[0]) {
				c.mu.Lock()
				c.active = 0
				c.mu.Unlock()
				log.Info().Str("url", c.endpoints[0]).Msg("Restored primary endpoint")
			}
		}
	}
}

func (c *Client) healthy(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/healthcheck", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", endpoint).Msg("Health check failed")
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) activeIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// failover switches to the next healthy endpoint after the active one.
func (c *Client) failover(ctx context.Context) bool {
	current := c.activeIndex()
	for step := 1; step < len(c.endpoints); step++ {
		next := (current + step) % len(c.endpoints)
		if c.healthy(ctx, c.endpoints[next]) {
			c.mu.Lock()
			c.active = next
			c.mu.Unlock()
			log.Info().Str("url", c.endpoints[next]).Msg("Failover to endpoint")
			return true
		}
	}
	log.Warn().Str("url", c.endpoints[current]).Msg("All endpoints unhealthy, staying on current")
	return false
}

// Close stops the primary health watcher.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.stopCh != nil {
			close(c.stopCh)
			<-c.stoppedCh
		}
	})
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	delay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		body, err := c.getOnce(ctx, c.endpoints[c.activeIndex()]+path)
		if err == nil {
			return body, nil
		}
		lastErr = err
		var status *StatusError
		if errors.As(err, &status) && status.Code == http.StatusBadRequest {
			// The request itself is wrong; another endpoint will say the same.
			return nil, err
		}
	}

	if len(c.endpoints) > 1 && c.failover(ctx) {
		body, err := c.getOnce(ctx, c.endpoints[c.activeIndex()]+path)
		if err != nil {
			return nil, fmt.Errorf("failover request failed: %w (original: %w)", err, lastErr)
		}
		return body, nil
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

// StatusError is a non 200 answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func (c *Client) getOnce(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// QuoteExactIn prices selling tokenIn for tokenOutDenom.
func (c *Client) QuoteExactIn(ctx context.Context, tokenIn Coin, tokenOutDenom string, singleRoute bool) (QuoteResponse, error) {
	path := fmt.Sprintf(
		"/router/quote?tokenIn=%s&tokenOutDenom=%s&singleRoute=%t&humanDenoms=false&applyExponents=false&appendBaseFee=true",
		url.QueryEscape(tokenIn.Amount+tokenIn.Denom), url.QueryEscape(tokenOutDenom), singleRoute,
	)
	return c.quote(ctx, path)
}

// QuoteExactOut prices buying tokenOut with tokenInDenom.
func (c *Client) QuoteExactOut(ctx context.Context, tokenOut Coin, tokenInDenom string, singleRoute bool) (QuoteResponse, error) {
	path := fmt.Sprintf(
		"/router/quote?tokenOut=%s&tokenInDenom=%s&singleRoute=%t&humanDenoms=false&applyExponents=false&appendBaseFee=true",
		url.QueryEscape(tokenOut.Amount+tokenOut.Denom), url.QueryEscape(tokenInDenom), singleRoute,
	)
	return c.quote(ctx, path)
}

func (c *Client) quote(ctx context.Context, path string) (QuoteResponse, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return QuoteResponse{}, err
	}
	var resp QuoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return QuoteResponse{}, fmt.Errorf("failed to parse route response: %w", err)
	}
	return resp, nil
}
