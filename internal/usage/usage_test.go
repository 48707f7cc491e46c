package usage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cruso003/JobGenie-sub001/internal/usage"
	"github.com/cruso003/JobGenie-sub001/pkg/types"
)

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func TestLimiter_EnforcesDailyQuota(t *testing.T) {
	t.Parallel()
	l := usage.New(usage.Config{MaxPerDay: 2})

	if !l.Allow("alice") || !l.Allow("alice") {
		t.Fatal("first two starts should be allowed")
	}
	if l.Allow("alice") {
		t.Error("third start should be refused")
	}
	if got := l.Used("alice"); got != 2 {
		t.Errorf("Used = %d, want 2 (refusals are not counted)", got)
	}
	if got := l.Remaining("alice"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
	if !l.Allow("bob") {
		t.Error("quota is per user")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	t.Parallel()
	l := usage.New(usage.Config{})
	for range 50 {
		if !l.Allow("alice") {
			t.Fatal("unlimited limiter refused a start")
		}
	}
	if got := l.Remaining("alice"); got != -1 {
		t.Errorf("Remaining = %d, want -1", got)
	}
}

func TestLimiter_ResetsAtMidnight(t *testing.T) {
	t.Parallel()
	c := &clock{t: time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)}
	l := usage.New(usage.Config{MaxPerDay: 1, Now: c.Now})

	if !l.Allow("alice") {
		t.Fatal("first start should be allowed")
	}
	if l.Allow("alice") {
		t.Fatal("second start on the same day should be refused")
	}

	c.Set(time.Date(2026, 3, 2, 0, 1, 0, 0, time.Local))
	if got := l.Used("alice"); got != 0 {
		t.Errorf("Used after midnight = %d, want 0", got)
	}
	if !l.Allow("alice") {
		t.Error("start after midnight should be allowed")
	}
}

func TestLimiter_SetLimit(t *testing.T) {
	t.Parallel()
	l := usage.New(usage.Config{MaxPerDay: 1})
	l.Allow("alice")
	if l.Allow("alice") {
		t.Fatal("limit 1 should refuse a second start")
	}

	l.SetLimit(3)
	if !l.Allow("alice") {
		t.Error("raised limit should allow another start")
	}
	if got := l.Remaining("alice"); got != 1 {
		t.Errorf("Remaining = %d, want 1", got)
	}
}

func TestLimiter_Authorizer(t *testing.T) {
	t.Parallel()
	l := usage.New(usage.Config{MaxPerDay: 1})
	auth := l.Authorizer("alice")
	ic := types.InterviewContext{Type: "technical", Role: "SRE"}

	ok, err := auth(context.Background(), ic)
	if err != nil || !ok {
		t.Fatalf("first call: ok=%v err=%v, want true nil", ok, err)
	}
	ok, err = auth(context.Background(), ic)
	if err != nil || ok {
		t.Fatalf("second call: ok=%v err=%v, want false nil", ok, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := auth(ctx, ic); err == nil {
		t.Error("cancelled context should return an error")
	}
}

func TestLimiter_ConcurrentAllow(t *testing.T) {
	t.Parallel()
	l := usage.New(usage.Config{MaxPerDay: 10})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("alice") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("allowed = %d, want 10", allowed)
	}
}
