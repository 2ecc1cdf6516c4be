package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// maxBody bounds how much of a listing response is read.
const maxBody = 4 << 20

// httpGetter performs rate-limited GETs with retry on 429 and 5xx.
type httpGetter struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	backoffs  []time.Duration
}

func newHTTPGetter(timeout time.Duration, every time.Duration, userAgent string) *httpGetter {
	if userAgent == "" {
		userAgent = "viralengine/0.1"
	}
	return &httpGetter{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Every(every), 1),
		userAgent: userAgent,
		backoffs:  []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// get fetches url and returns the body of a 200 response.
// Retries up to len(backoffs) times on HTTP 429 or 5xx, honoring Retry-After.
func (g *httpGetter) get(ctx context.Context, url string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	maxRetries := len(g.backoffs)
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", g.userAgent)

		resp, err := g.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if err := g.sleep(ctx, attempt, 0); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			if err := g.sleep(ctx, attempt, 0); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("HTTP error: %d", resp.StatusCode)
			var retryAfter time.Duration
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
					retryAfter = min(time.Duration(seconds)*time.Second, 30*time.Second)
				}
			}
			if err := g.sleep(ctx, attempt, retryAfter); err != nil {
				return nil, err
			}
			continue
		}

		// Non-retryable (400, 401, 403, 404).
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

// sleep waits out the backoff for attempt unless it was the last one.
func (g *httpGetter) sleep(ctx context.Context, attempt int, override time.Duration) error {
	if attempt >= len(g.backoffs) {
		return nil
	}
	delay := g.backoffs[attempt]
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
