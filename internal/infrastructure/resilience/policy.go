package resilience

import (
	"log/slog"
	"time"
)

// RetryPolicy is a capped exponential backoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BreakerPolicy configures the circuit breaker kept per operation name.
type BreakerPolicy struct {
	Disabled         bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
	// AttemptTimeout bounds a single call; zero leaves it to the caller's context.
	AttemptTimeout time.Duration
	Logger         *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

// ForUpstream is the policy for an embedding, chat or vector store call made
// while a customer waits: every attempt is bounded by the upstream timeout and
// only one retry is allowed.
func ForUpstream(attemptTimeout time.Duration, logger *slog.Logger) Config {
	cfg := DefaultConfig()
	cfg.AttemptTimeout = attemptTimeout
	cfg.Retry.MaxAttempts = 2
	cfg.Logger = logger
	return cfg
}

// delay returns the wait before the attempt following attempt n (1-based).
func (p RetryPolicy) delay(n int) time.Duration {
	wait := p.InitialBackoff
	for i := 1; i < n && wait < p.MaxBackoff; i++ {
		wait = time.Duration(float64(wait) * p.Multiplier)
	}
	if wait > p.MaxBackoff {
		wait = p.MaxBackoff
	}
	return wait
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	r := &out.Retry
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.Retry.MaxAttempts
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = def.Retry.InitialBackoff
	}
	if r.MaxBackoff < r.InitialBackoff {
		r.MaxBackoff = max(def.Retry.MaxBackoff, r.InitialBackoff)
	}
	if r.Multiplier < 1.0 {
		r.Multiplier = def.Retry.Multiplier
	}

	b := &out.Breaker
	if b.MinRequests == 0 {
		b.MinRequests = def.Breaker.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.Breaker.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = def.Breaker.OpenTimeout
	}
	if b.HalfOpenMaxCalls == 0 {
		b.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}

	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}
