// Package httpclient provides the HTTP client used to reach semantic review
// providers, with exponential backoff on transient failures.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Config contains configuration options for the HTTP client.
type Config struct {
	RetryMax       int // retries after the first attempt; negative disables retries
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	Timeout        time.Duration
	DisableTimeout bool
	Logger         *zap.Logger
}

// Client is an HTTP client with retry and backoff support.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     *zap.Logger
}

// NewClient creates a new HTTP client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 && !cfg.DisableTimeout {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryWaitMin == 0 {
		cfg.RetryWaitMin = 500 * time.Millisecond
	}
	if cfg.RetryWaitMax == 0 {
		cfg.RetryWaitMax = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{}
	if !cfg.DisableTimeout {
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
	}
}

// StatusError is returned when the server keeps answering with a retryable
// status after all retries.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.StatusCode, e.Body)
}

func retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// Do executes an HTTP request, retrying transport errors, 5xx and 429
// responses. Other responses, including 4xx, are returned to the caller as is.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response

	operation := func() error {
		// The body is consumed by each attempt.
		if req.GetBody != nil {
			newBody, bodyErr := req.GetBody()
			if bodyErr != nil {
				return backoff.Permanent(fmt.Errorf("failed to regenerate request body: %w", bodyErr))
			}
			req.Body = newBody
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		if retryable(r.StatusCode) {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			_ = r.Body.Close()
			return &StatusError{StatusCode: r.StatusCode, Body: string(body)}
		}

		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryWaitMin
	b.MaxInterval = c.config.RetryWaitMax
	b.MaxElapsedTime = 0

	retries := c.config.RetryMax
	if retries < 0 {
		retries = 0
	}

	ctx := req.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying request",
			zap.String("url", req.URL.Redacted()),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	return resp, nil
}
