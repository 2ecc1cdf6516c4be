package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// newBreaker trips after three consecutive failures, or a 50% failure rate
// over at least ten calls, and probes again after a minute.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
		},
		IsSuccessful: func(err error) bool {
			// cancellations and missing credentials say nothing about provider health
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrUnavailable)
		},
	})
}

func breakerErr(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %v", name, ErrUnavailable, err)
	}
	return err
}

// GuardedVolume fails fast with ErrUnavailable while the provider's
// breaker is open.
type GuardedVolume struct {
	next VolumeProvider
	cb   *gobreaker.CircuitBreaker
}

// GuardVolume wraps next in a circuit breaker.
func GuardVolume(next VolumeProvider) *GuardedVolume {
	return &GuardedVolume{next: next, cb: newBreaker(next.Name())}
}

func (g *GuardedVolume) Name() string { return g.next.Name() }

// State exposes the breaker state for status output.
func (g *GuardedVolume) State() gobreaker.State { return g.cb.State() }

func (g *GuardedVolume) KeywordData(ctx context.Context, keyword string) (*KeywordData, error) {
	v, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.KeywordData(ctx, keyword)
	})
	if err != nil {
		return nil, breakerErr(g.next.Name(), err)
	}
	return v.(*KeywordData), nil
}

// GuardedRank is the RankProvider counterpart of GuardedVolume.
type GuardedRank struct {
	next RankProvider
	cb   *gobreaker.CircuitBreaker
}

// GuardRank wraps next in a circuit breaker.
func GuardRank(next RankProvider) *GuardedRank {
	return &GuardedRank{next: next, cb: newBreaker(next.Name())}
}

func (g *GuardedRank) Name() string { return g.next.Name() }

// State exposes the breaker state for status output.
func (g *GuardedRank) State() gobreaker.State { return g.cb.State() }

func (g *GuardedRank) Query(ctx context.Context, siteURL string, dr DateRange, dimensions []string) ([]RankRow, error) {
	v, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Query(ctx, siteURL, dr, dimensions)
	})
	if err != nil {
		return nil, breakerErr(g.next.Name(), err)
	}
	return v.([]RankRow), nil
}
