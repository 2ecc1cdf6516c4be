package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const maxResponse = 8 << 20

// apiClient posts JSON with a rate limit and retries 429 and 5xx.
type apiClient struct {
	http     *http.Client
	limiter  *rate.Limiter
	backoffs []time.Duration
}

func newAPIClient(timeout time.Duration, rps float64) *apiClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &apiClient{
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, 1),
		backoffs: []time.Duration{500 * time.Millisecond, 1 * time.Second, 2 * time.Second},
	}
}

// postJSON sends body to url and decodes a 200 response into out.
// auth sets credentials on each attempt.
func (c *apiClient) postJSON(ctx context.Context, url string, auth func(*http.Request), body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(c.backoffs); attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if auth != nil {
			auth(req)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if err := c.sleep(ctx, attempt, 0); err != nil {
				return err
			}
			continue
		}

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
		resp.Body.Close()

		switch {
		case readErr != nil:
			lastErr = fmt.Errorf("read response: %w", readErr)
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("HTTP error: %d", resp.StatusCode)
			if err := c.sleep(ctx, attempt, retryAfter(resp.Header.Get("Retry-After"))); err != nil {
				return err
			}
			continue
		default:
			return fmt.Errorf("HTTP error: %d", resp.StatusCode)
		}

		if err := c.sleep(ctx, attempt, 0); err != nil {
			return err
		}
	}
	return fmt.Errorf("request failed after %d retries: %w", len(c.backoffs), lastErr)
}

func retryAfter(v string) time.Duration {
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return min(time.Duration(seconds)*time.Second, 30*time.Second)
	}
	return 0
}

func (c *apiClient) sleep(ctx context.Context, attempt int, override time.Duration) error {
	if attempt >= len(c.backoffs) {
		return nil
	}
	delay := c.backoffs[attempt]
	if override > 0 {
		delay = override
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
