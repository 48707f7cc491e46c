// Package usage limits how many interviews each user may start per day.
//
// A [Limiter] is the host-side authorization hook of an interview session:
// [Limiter.Authorizer] adapts it to the session's Authorize callback. Counts
// are in memory and reset at local midnight. The quota can be changed at
// runtime with [Limiter.SetLimit], e.g. from a config reload.
//
// All methods are safe for concurrent use.
package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// Config holds tuning knobs for a [Limiter].
type Config struct {
	// MaxPerDay is the number of interviews a user may start per day. Zero
	// or negative means unlimited.
	MaxPerDay int

	// Now returns the current time. Default: time.Now.
	Now func() time.Time
}

// Limiter counts interview starts per user and day.
type Limiter struct {
	now func() time.Time

	mu     sync.Mutex
	max    int
	day    string
	counts map[string]int
}

// New creates a [Limiter].
func New(cfg Config) *Limiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		now:    cfg.Now,
		max:    cfg.MaxPerDay,
		counts: make(map[string]int),
	}
}

// Allow records an interview start for userID and reports whether it was
// within the quota. A refused start is not counted.
func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	if l.max > 0 && l.counts[userID] >= l.max {
		slog.Info("usage: daily interview limit reached",
			"user_id", userID,
			"limit", l.max)
		return false
	}
	l.counts[userID]++
	return true
}

// Used returns how many interviews userID started today.
func (l *Limiter) Used(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	return l.counts[userID]
}

// Remaining returns how many more interviews userID may start today, or -1
// when unlimited.
func (l *Limiter) Remaining(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()
	if l.max <= 0 {
		return -1
	}
	return max(l.max-l.counts[userID], 0)
}

// SetLimit changes the daily quota. Counts already recorded today are kept.
func (l *Limiter) SetLimit(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n != l.max {
		slog.Info("usage: daily interview limit changed", "old", l.max, "new", n)
	}
	l.max = n
}

// Authorizer returns a session authorization hook charging starts to userID.
func (l *Limiter) Authorizer(userID string) func(context.Context, types.InterviewContext) (bool, error) {
	return func(ctx context.Context, _ types.InterviewContext) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return l.Allow(userID), nil
	}
}

// rollover clears the counts when the local day changed. Caller holds l.mu.
func (l *Limiter) rollover() {
	day := l.now().Format(time.DateOnly)
	if day == l.day {
		return
	}
	l.day = day
	clear(l.counts)
}
