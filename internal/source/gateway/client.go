// Package gateway fetches blocks and state updates from the sequencer's
// feeder gateway over HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/microbecode/madara/internal/source"
)

type (
	// Metrics records metrics for gateway requests.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}
)

// Config tunes the gateway client.
type Config struct {
	// BaseURL is the feeder gateway root, e.g.
	// https://alpha-mainnet.starknet.io/feeder_gateway.
	BaseURL string
	// RequestsPerSecond caps the outgoing request rate across retries.
	RequestsPerSecond int
	// Retries is the number of re-attempts after a transient failure.
	Retries uint64
	// Timeout bounds a single HTTP request.
	Timeout time.Duration
}

const (
	defaultRequestsPerSecond = 5
	defaultRetries           = 3
	defaultTimeout           = 30 * time.Second
)

// Client is a rate-limited, retrying feeder gateway client.
type Client struct {
	baseURL string
	http    *http.Client
	limiter ratelimit.Limiter
	retries uint64
	metrics Metrics
	logger  *zap.Logger
}

// NewClient constructs a gateway client.
func NewClient(cfg Config, metrics Metrics, logger *zap.Logger) (*Client, error) {
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid gateway base url %q", cfg.BaseURL)
	}
	if metrics == nil {
		return nil, errors.New("gateway metrics is required")
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cfg.Retries == 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.New(cfg.RequestsPerSecond),
		retries: cfg.Retries,
		metrics: metrics,
		logger:  logger.Named("gateway"),
	}, nil
}

// StateUpdateWithBlock fetches the block at height together with its state
// update. Returns source.ErrBlockNotYetAvailable when the sequencer has not
// produced the height yet.
func (c *Client) StateUpdateWithBlock(ctx context.Context, height uint64) (*StateUpdateWithBlock, error) {
	endpoint := fmt.Sprintf("%s/get_state_update?blockNumber=%d&includeBlock=true", c.baseURL, height)
	var out StateUpdateWithBlock
	if err := c.get(ctx, "get_state_update", endpoint, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Head returns the height of the sequencer's latest block.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	var out Block
	err := c.get(ctx, "get_block", c.baseURL+"/get_block?blockNumber=latest", &out)
	return out.BlockNumber, err
}

func (c *Client) get(ctx context.Context, operation, endpoint string, out any) (err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe(operation, err, started)
	}()

	attempt := func() error {
		c.limiter.Take()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			var gwErr gatewayError
			if json.Unmarshal(body, &gwErr) == nil && gwErr.blockNotFound() {
				return backoff.Permanent(source.ErrBlockNotYetAvailable)
			}
			return fmt.Errorf("%s: gateway returned %s: %s", operation, resp.Status, bytes.TrimSpace(body))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("%s: decode response: %w", operation, err))
		}
		return nil
	}

	err = backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx))
	if err != nil && !errors.Is(err, source.ErrBlockNotYetAvailable) && !errors.Is(err, context.Canceled) {
		c.logger.Warn("gateway request failed", zap.String("operation", operation), zap.Error(err))
	}
	return err
}

// gatewayError is the JSON error envelope of non-200 responses.
type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e gatewayError) blockNotFound() bool {
	return strings.HasSuffix(e.Code, "BLOCK_NOT_FOUND")
}
