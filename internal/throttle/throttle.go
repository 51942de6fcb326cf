// Package throttle wraps outbound fetches with a per-adapter minimum
// inter-request gap and a bounded backoff retry on transient failures.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"go.uber.org/zap"
)

// Throttle enforces a minimum wall-clock gap between calls on one adapter
// instance. Calls on the same instance serialize; independent adapters are
// not serialized against each other. The mutex keeps the gap a hard rate
// ceiling even under concurrent callers.
type Throttle struct {
	mu     sync.Mutex
	minGap time.Duration
	last   time.Time
}

// NewThrottle creates a throttle with the given minimum gap.
func NewThrottle(minGap time.Duration) *Throttle {
	return &Throttle{
		minGap: minGap,
		last:   time.Time{},
	}
}

// Wait blocks until the minimum gap since the previous call has elapsed,
// then records the call. Returns early if the context is cancelled.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if remaining := t.minGap - time.Since(t.last); remaining > 0 {
			if err := sleepCtx(ctx, remaining); err != nil {
				return err
			}
		}
	}

	t.last = time.Now()

	return nil
}

// Backoff schedules for the two source classes. The slow class covers
// browser-scraped sources where a retry storm is costlier.
var (
	DefaultBackoff = []time.Duration{3 * time.Second, 10 * time.Second, 30 * time.Second}
	SlowBackoff    = []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}
)

// FetchFunc is the call shape the policy wraps.
type FetchFunc func(ctx context.Context, symbol string) ([]types.Bar, error)

// maxFetchAttempts is the total call ceiling per fetch, transient retries
// included. The backoff schedules carry one more entry than ever gets slept.
const maxFetchAttempts = 3

// Policy applies the throttle and retry schedule to one adapter. Transient
// failures are retried up to three total attempts with the scheduled sleep
// between them; permanent failures are returned immediately since retrying
// an invalid symbol or malformed request can only yield the same answer.
type Policy struct {
	throttle *Throttle
	backoff  []time.Duration
	logger   *logger.Logger
}

// NewPolicy creates a policy with the given per-call gap and backoff schedule.
func NewPolicy(minGap time.Duration, backoff []time.Duration, log *logger.Logger) *Policy {
	if backoff == nil {
		backoff = DefaultBackoff
	}

	return &Policy{
		throttle: NewThrottle(minGap),
		backoff:  backoff,
		logger:   log,
	}
}

// Do invokes fetch under the throttle, retrying transient failures per the
// schedule. After the schedule is exhausted the last transient error is
// returned.
func (p *Policy) Do(ctx context.Context, source string, symbol string, fetch FetchFunc) ([]types.Bar, error) {
	var lastErr error

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if err := p.throttle.Wait(ctx); err != nil {
			return nil, err
		}

		bars, err := fetch(ctx, symbol)
		if err == nil {
			return bars, nil
		}

		if !errors.IsTransient(err) {
			return nil, err
		}

		lastErr = err

		if attempt < maxFetchAttempts {
			wait := p.backoff[len(p.backoff)-1]
			if attempt-1 < len(p.backoff) {
				wait = p.backoff[attempt-1]
			}
			p.logger.Warn("transient fetch failure, retrying",
				zap.String("source", source),
				zap.String("symbol", symbol),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))

			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		}
	}

	return nil, lastErr
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return errors.Wrap(errors.ErrCodeCancelled, "wait cancelled", ctx.Err())
	case <-timer.C:
		return nil
	}
}
