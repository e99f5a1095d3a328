package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaypath/edge/internal/infrastructure/logger"
)

// Client is an outbound HTTP client with retries, backoff and one
// circuit breaker per upstream host, so a misbehaving ad platform
// cannot open the breaker for the others.
type Client struct {
	client *http.Client

	maxFailures int
	cbInterval  time.Duration

	mu       sync.Mutex
	breakers map[string]*upstreamBreaker
}

func NewClient(timeout time.Duration, maxFailures int, cbInterval time.Duration) *Client {
	return &Client{
		client:      &http.Client{Timeout: timeout},
		maxFailures: maxFailures,
		cbInterval:  cbInterval,
		breakers:    make(map[string]*upstreamBreaker),
	}
}

func (c *Client) Get(ctx context.Context, baseURL string, queryParams map[string]string, headers map[string]string) (*http.Response, error) {
	return c.attemptRequestWithRetry(ctx, baseURL, func() (*http.Request, error) {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, err
		}

		q := u.Query()
		for k, v := range queryParams {
			q.Add(k, v)
		}
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}

		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

func (c *Client) Post(ctx context.Context, rawURL string, body any, headers map[string]string) (*http.Response, error) {
	return c.attemptRequestWithRetry(ctx, rawURL, func() (*http.Request, error) {
		var bodyReader io.Reader
		if body != nil {
			jsonData, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			bodyReader = bytes.NewBuffer(jsonData)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bodyReader)
		if err != nil {
			return nil, err
		}

		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
}

// breakerFor returns the circuit breaker for the URL's host.
func (c *Client) breakerFor(rawURL string) *upstreamBreaker {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[host]
	if !ok {
		cb = newUpstreamBreaker(host, c.maxFailures, c.cbInterval)
		c.breakers[host] = cb
	}
	return cb
}

func (c *Client) attemptRequestWithRetry(ctx context.Context, rawURL string, reqFactory func() (*http.Request, error)) (*http.Response, error) {
	cb := c.breakerFor(rawURL)
	if err := cb.Allow(); err != nil {
		logger.Warn("outbound request blocked by circuit breaker",
			zap.String("upstream", cb.upstream))
		return nil, err
	}

	const maxRetries = 3
	const baseDelay = 100 * time.Millisecond
	const maxJitterMs = 100

	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	var response *http.Response

	for i := 0; i <= maxRetries; i++ {
		req, err := reqFactory()
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}

		response, err = c.client.Do(req)
		lastErr = err

		if err == nil && response.StatusCode < 500 {
			cb.RecordSuccess()
			return response, nil
		}

		if i == maxRetries {
			break
		}

		backoff := baseDelay * time.Duration(math.Pow(2, float64(i)))
		jitter := time.Duration(r.Intn(maxJitterMs)) * time.Millisecond
		sleepDuration := backoff + jitter

		if response != nil {
			response.Body.Close()
		}

		logger.Warn("outbound request failed, retrying",
			zap.String("upstream", cb.upstream),
			zap.Int("attempt", i+1),
			zap.Duration("backoff", sleepDuration),
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepDuration):
		}
	}

	cb.RecordFailure()

	if lastErr != nil {
		return nil, fmt.Errorf("all retries failed, last network error: %w", lastErr)
	}

	return nil, fmt.Errorf("all retries failed, last status: %s", response.Status)
}
