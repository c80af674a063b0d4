// Package faults simulates an unreliable backend: randomized latency on
// every call and independent random failure of writes.
package faults

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/metrics"
)

// Policy describes how often and how slowly the backend misbehaves.
type Policy struct {
	// FailureRate is the failure probability of writes without an entry in Rates.
	FailureRate float64
	// Rates overrides FailureRate per operation.
	Rates      map[string]float64
	LatencyMin time.Duration
	LatencyMax time.Duration
}

// Rate returns the failure probability of op.
func (p Policy) Rate(op string) float64 {
	if r, ok := p.Rates[op]; ok {
		return r
	}
	return p.FailureRate
}

// Injector applies a Policy. A nil *Injector never delays and never fails.
type Injector struct {
	mu     sync.Mutex
	policy Policy
	rng    *rand.Rand
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates an Injector drawing randomness from src.
func New(p Policy, src rand.Source) *Injector {
	return &Injector{policy: p, rng: rand.New(src), sleep: sleepCtx}
}

// Never returns an Injector that neither delays nor fails.
func Never() *Injector {
	return New(Policy{}, rand.NewPCG(1, 1))
}

// Always returns an Injector that fails every write without delay.
func Always() *Injector {
	return New(Policy{FailureRate: 1}, rand.NewPCG(1, 1))
}

// SetPolicy swaps the active policy.
func (i *Injector) SetPolicy(p Policy) {
	if i == nil {
		return
	}
	i.mu.Lock()
	i.policy = p
	i.mu.Unlock()
}

// Policy returns the active policy.
func (i *Injector) Policy() Policy {
	if i == nil {
		return Policy{}
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.policy
}

// Delay blocks for a random latency in [LatencyMin, LatencyMax] or until ctx is done.
func (i *Injector) Delay(ctx context.Context) error {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	lo, hi := i.policy.LatencyMin, i.policy.LatencyMax
	d := lo
	if hi > lo {
		d += time.Duration(i.rng.Int64N(int64(hi - lo)))
	}
	i.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	return i.sleep(ctx, d)
}

// Fail returns an error wrapping apperr.ErrTransient with op's failure probability.
func (i *Injector) Fail(op string) error {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	rate := i.policy.Rate(op)
	hit := rate > 0 && i.rng.Float64() < rate
	i.mu.Unlock()
	if !hit {
		return nil
	}
	metrics.FaultsInjected.WithLabelValues(op).Inc()
	return fmt.Errorf("%s: simulated failure: %w", op, apperr.ErrTransient)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
