// Package backoff holds the retry policies shared by ingestion and publishing.
// Waiting goes through a Sleeper so loops can be driven without real delays.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cb "github.com/cenkalti/backoff/v4"
)

type Policy = cb.BackOff

const (
	KindConstant    = "constant"
	KindExponential = "exponential"
)

func Constant(d time.Duration) Policy {
	return cb.NewConstantBackOff(d)
}

// Exponential starts at initial and grows up to max. It never gives up on
// its own; bound it with Retry's attempts.
func Exponential(initial, max time.Duration) Policy {
	b := cb.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// New builds a policy by name around a base delay.
func New(kind string, base time.Duration) (Policy, error) {
	switch kind {
	case KindConstant, "":
		return Constant(base), nil
	case KindExponential:
		return Exponential(base, 10*base), nil
	}
	return nil, fmt.Errorf("backoff: unknown kind %q", kind)
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RecordingSleeper returns immediately and remembers every requested delay.
type RecordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (r *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.slept = append(r.slept, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *RecordingSleeper) Slept() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.slept))
	copy(out, r.slept)
	return out
}

func Permanent(err error) error {
	return cb.Permanent(err)
}

// Retry runs op until it succeeds, returns a Permanent error, the policy
// stops, attempts (when positive) are used up, or ctx is done. The last
// op error is returned.
func Retry(ctx context.Context, policy Policy, attempts int, sleeper Sleeper, op func(context.Context) error) error {
	policy.Reset()
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		var perm *cb.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		if attempts > 0 && attempt >= attempts {
			return err
		}
		d := policy.NextBackOff()
		if d == cb.Stop {
			return err
		}
		if serr := sleeper.Sleep(ctx, d); serr != nil {
			return err
		}
	}
}
