// Package retry implements the single resilience policy shared by every
// outbound call: bounded attempts, exponential backoff with jitter, and
// retryable-versus-terminal error classification.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default policy values.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 1 * time.Second
	DefaultMaxDelay    = 16 * time.Second
)

// Policy holds the attempt budget and backoff parameters.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns the policy used for all service calls unless
// configuration overrides it.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Retrier executes functions under a Policy. Safe for concurrent use.
type Retrier struct {
	policy Policy
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithSeed fixes the jitter source, making the delay sequence
// deterministic. Used by tests.
func WithSeed(seed int64) Option {
	return func(r *Retrier) {
		r.rng = rand.New(rand.NewSource(seed))
	}
}

// WithLogger sets the logger for per-attempt warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retrier) {
		r.logger = logger
	}
}

// WithSleep replaces the delay function. Used by tests to observe delays
// without waiting.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retrier) {
		r.sleep = sleep
	}
}

// New creates a Retrier. Zero policy fields fall back to defaults.
func New(p Policy, opts ...Option) *Retrier {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}

	r := &Retrier{
		policy: p,
		logger: zap.NewNop(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs fn until it succeeds, fails terminally, or the attempt budget is
// exhausted. Terminal errors and context cancellation return immediately
// without consuming further attempts.
func (r *Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) {
			return lastErr
		}
		if attempt == r.policy.MaxAttempts-1 {
			break
		}

		delay := r.delay(attempt)
		r.logger.Warn("retrying after transient failure",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", op, r.policy.MaxAttempts, lastErr)
}

// delay computes base × 2^attempt × uniform(0.5, 1.5), capped at MaxDelay.
func (r *Retrier) delay(attempt int) time.Duration {
	r.mu.Lock()
	jitter := 0.5 + r.rng.Float64()
	r.mu.Unlock()

	backoff := float64(r.policy.BaseDelay) * float64(uint64(1)<<uint(attempt)) * jitter
	if backoff > float64(r.policy.MaxDelay) {
		return r.policy.MaxDelay
	}
	return time.Duration(backoff)
}

// sleepCtx waits for d or until the context is done.
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
