package api

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultLimiterIdle is how long a user's bucket survives without requests.
	DefaultLimiterIdle = 10 * time.Minute
	// DefaultMaxLimiters caps tracked users; the least recently seen is evicted.
	DefaultMaxLimiters = 10000
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user. A nil *RateLimiter allows
// everything.
type RateLimiter struct {
	mu        sync.Mutex
	limits    map[int64]*limiterEntry
	every     rate.Limit
	burst     int
	idle      time.Duration
	max       int
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter returns nil when perSecond is zero, disabling limits.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limits: make(map[int64]*limiterEntry),
		every:  rate.Limit(perSecond),
		burst:  burst,
		idle:   DefaultLimiterIdle,
		max:    DefaultMaxLimiters,
		now:    time.Now,
	}
}

func (rl *RateLimiter) Allow(userID int64) bool {
	if rl == nil {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	return rl.getLimiter(userID, now).AllowN(now, 1)
}

func (rl *RateLimiter) getLimiter(userID int64, now time.Time) *rate.Limiter {
	if e, ok := rl.limits[userID]; ok {
		e.lastSeen = now
		return e.limiter
	}

	if len(rl.limits) >= rl.max || now.Sub(rl.lastSweep) >= rl.idle {
		rl.sweep(now)
	}
	if len(rl.limits) >= rl.max {
		rl.evictOldest()
	}

	e := &limiterEntry{limiter: rate.NewLimiter(rl.every, rl.burst), lastSeen: now}
	rl.limits[userID] = e
	return e.limiter
}

// sweep drops buckets idle for longer than rl.idle. A bucket idle that long
// has refilled, so forgetting it loses nothing.
func (rl *RateLimiter) sweep(now time.Time) {
	for id, e := range rl.limits {
		if now.Sub(e.lastSeen) > rl.idle {
			delete(rl.limits, id)
		}
	}
	rl.lastSweep = now
}

func (rl *RateLimiter) evictOldest() {
	var (
		oldestID int64
		oldest   time.Time
		found    bool
	)
	for id, e := range rl.limits {
		if !found || e.lastSeen.Before(oldest) {
			oldestID, oldest, found = id, e.lastSeen, true
		}
	}
	if found {
		delete(rl.limits, oldestID)
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}
