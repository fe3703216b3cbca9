package resilience

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func retryOn(target error) ErrorClassifier {
	return func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, target), RecordFailure: true}
	}
}

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	var logs bytes.Buffer
	exec := NewExecutor(Config{
		Retry:   fastRetry(3),
		Breaker: BreakerPolicy{Disabled: true},
		Logger:  slog.New(slog.NewJSONHandler(&logs, nil)),
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "openai.embed", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, retryOn(errTemp))
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if got := strings.Count(logs.String(), `"msg":"retry_attempt"`); got != 2 {
		t.Fatalf("expected 2 retry log lines, got %d: %s", got, logs.String())
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{Retry: fastRetry(3), Breaker: BreakerPolicy{Disabled: true}})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		Retry: fastRetry(1),
		Breaker: BreakerPolicy{
			MinRequests:      2,
			FailureRatio:     0.5,
			OpenTimeout:      50 * time.Millisecond,
			HalfOpenMaxCalls: 1,
		},
	})

	errTemp := errors.New("temporary")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "openai.chat", func(context.Context) error {
			return errTemp
		}, nil)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "openai.chat", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}

	// Breakers are per operation.
	if err := exec.Execute(context.Background(), "openai.embed", func(context.Context) error { return nil }, nil); err != nil {
		t.Fatalf("unrelated operation must not be blocked: %v", err)
	}
}

func TestExecuteBoundsEachAttempt(t *testing.T) {
	exec := NewExecutor(Config{
		Retry:          fastRetry(2),
		AttemptTimeout: 5 * time.Millisecond,
		Breaker:        BreakerPolicy{Disabled: true},
	})

	attempts := 0
	err := exec.Execute(context.Background(), "ollama.chat", func(ctx context.Context) error {
		attempts++
		<-ctx.Done()
		return ctx.Err()
	}, ClassifyHTTPError)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected timed out attempt to be retried, got %d attempts", attempts)
	}
}

func TestExecuteStopsWhenCallerGivesUp(t *testing.T) {
	exec := NewExecutor(Config{
		Retry:   RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: time.Second, Multiplier: 1},
		Breaker: BreakerPolicy{Disabled: true},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	errTemp := errors.New("temporary")
	attempts := 0
	started := time.Now()
	err := exec.Execute(ctx, "qdrant.search", func(context.Context) error {
		attempts++
		return errTemp
	}, retryOn(errTemp))
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected last upstream error, got %v", err)
	}
	if attempts != 1 || time.Since(started) > 500*time.Millisecond {
		t.Fatalf("expected backoff to end with the context, attempts=%d", attempts)
	}
}

func TestRetryPolicyDelayIsCapped(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := p.delay(i + 1); got != w {
			t.Fatalf("delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestForUpstream(t *testing.T) {
	cfg := ForUpstream(3*time.Second, nil)
	if cfg.AttemptTimeout != 3*time.Second || cfg.Retry.MaxAttempts != 2 || cfg.Breaker.Disabled {
		t.Fatalf("unexpected upstream config %+v", cfg)
	}
}
