package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/abelbrown/viralengine/internal/metrics"
)

var _ Provider = (*GuardedProvider)(nil)

// GuardedProvider adds a circuit breaker and latency metrics to a
// provider. An open breaker makes the provider unavailable so the
// manager falls through to the next one.
type GuardedProvider struct {
	next    Provider
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

// Guard wraps p.
func Guard(p Provider, m *metrics.Metrics) *GuardedProvider {
	return &GuardedProvider{
		next:    p,
		metrics: metrics.OrNop(m),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    p.Name(),
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (g *GuardedProvider) Name() string { return g.next.Name() }

func (g *GuardedProvider) Available() bool {
	return g.next.Available() && g.cb.State() != gobreaker.StateOpen
}

// State exposes the breaker state for status output.
func (g *GuardedProvider) State() gobreaker.State { return g.cb.State() }

func (g *GuardedProvider) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	v, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, req)
	})
	g.metrics.ObserveCall(g.next.Name(), start, err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Response{}, fmt.Errorf("%s: %w", g.next.Name(), err)
		}
		return Response{}, err
	}
	return v.(Response), nil
}
