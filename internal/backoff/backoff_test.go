package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryStopsAfterAttempts(t *testing.T) {
	s := &RecordingSleeper{}
	calls := 0
	err := Retry(context.Background(), Constant(time.Second), 3, s, func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	if err == nil || calls != 3 {
		t.Fatalf("calls = %d err = %v, want 3 calls and an error", calls, err)
	}
	if got := s.Slept(); len(got) != 2 || got[0] != time.Second {
		t.Fatalf("slept = %v, want two 1s waits", got)
	}
}

func TestRetrySucceedsAndHonorsPermanent(t *testing.T) {
	s := &RecordingSleeper{}
	calls := 0
	err := Retry(context.Background(), Constant(time.Millisecond), 5, s, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("calls = %d err = %v", calls, err)
	}

	sentinel := errors.New("bad input")
	calls = 0
	err = Retry(context.Background(), Constant(time.Millisecond), 5, s, func(context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) || calls != 1 {
		t.Fatalf("permanent error should stop immediately: calls=%d err=%v", calls, err)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_ = Retry(ctx, Constant(time.Millisecond), 0, &RecordingSleeper{}, func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 after cancellation", calls)
	}
}

func TestNewPolicies(t *testing.T) {
	p, err := New(KindExponential, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("New exponential: %v", err)
	}
	first := p.NextBackOff()
	if first <= 0 || first > time.Second {
		t.Fatalf("unexpected first exponential delay %s", first)
	}
	c, _ := New(KindConstant, time.Minute)
	if c.NextBackOff() != time.Minute || c.NextBackOff() != time.Minute {
		t.Fatalf("constant policy should repeat its delay")
	}
	if _, err := New("linear", time.Second); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestRealSleeperCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := (RealSleeper{}).Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("Sleep did not return promptly")
	}
}
