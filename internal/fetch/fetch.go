// Package fetch implements the HTTP Fetcher: a single pooled client gated by
// a fixed concurrency cap, with a bounded retry budget and monotonic
// backoff, shared by every upstream-calling component in the pipeline.
package fetch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wbparser/catalog-crawler/internal/catalog"
	"github.com/wbparser/catalog-crawler/internal/config"
	"github.com/wbparser/catalog-crawler/internal/metrics"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

// Client is the shared HTTP fetcher. One Client is created per process and
// handed to every component that talks to the upstream.
type Client struct {
	http *http.Client
	gate *semaphore.Weighted
	cfg  config.Fetch
	log  *logger.Logger
}

// New builds a Client from fetch configuration. TLS verification follows
// cfg.InsecureSkipVerify, which defaults to false (verify).
func New(cfg config.Fetch, log *logger.Logger) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
	}
	return &Client{
		http: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		gate: semaphore.NewWeighted(int64(cfg.RequestLimit)),
		cfg:  cfg,
		log:  log,
	}
}

// Get fetches url, retrying up to cfg.AttemptsCounter times with a
// monotonically increasing backoff between attempts. It blocks on the
// process-wide concurrency gate for the duration of the call, including
// retries, so REQUEST_LIMIT bounds in-flight requests, not just attempts.
//
// Returns *catalog.UpstreamUnavailable if the retry budget is exhausted; its
// Cause is the last attempt's error (for example a
// *catalog.ResponseStatusCodeError on a non-2xx response).
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.fetch(ctx, url, nil)
}

// GetJSON fetches url and decodes the body into target, retrying the whole
// attempt (transport, status and JSON decoding) up to cfg.AttemptsCounter
// times. A response that decodes to malformed JSON counts as a bad attempt
// exactly like a bad status code, so a transient truncated body is retried
// rather than silently mistaken for an empty or invalid page.
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	_, err := c.fetch(ctx, url, target)
	return err
}

func (c *Client) fetch(ctx context.Context, url string, target interface{}) ([]byte, error) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.gate.Release(1)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.AttemptsCounter; attempt++ {
		body, err := c.attemptOnce(ctx, url, target)
		if err == nil {
			metrics.FetchAttemptsTotal.WithLabelValues("success").Inc()
			return body, nil
		}
		lastErr = err

		outcome := "retry"
		if attempt == c.cfg.AttemptsCounter {
			outcome = "exhausted"
		}
		metrics.FetchAttemptsTotal.WithLabelValues(outcome).Inc()
		c.log.Warn("fetch attempt failed", "url", url, "attempt", attempt, "err", err)

		if attempt == c.cfg.AttemptsCounter {
			break
		}

		delay := time.Duration(attempt) * time.Second
		metrics.FetchRetryDelaySeconds.Observe(delay.Seconds())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, &catalog.UpstreamUnavailable{URL: url, Attempts: c.cfg.AttemptsCounter, Cause: lastErr}
}

// attemptOnce performs one fetch attempt. When target is non-nil, a JSON
// decode failure is treated the same as a transport or status failure: it
// is returned to fetch's retry loop instead of being handled by the caller.
func (c *Client) attemptOnce(ctx context.Context, url string, target interface{}) ([]byte, error) {
	body, err := c.doOnce(ctx, url)
	if err != nil {
		return nil, err
	}
	if target != nil {
		if err := json.Unmarshal(body, target); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	return body, nil
}

func (c *Client) doOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &catalog.ResponseStatusCodeError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, &catalog.EmptyResponseError{URL: url}
	}
	return body, nil
}
