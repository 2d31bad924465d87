package service

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

// RateLimiterRegistry hands out one token bucket per key (client IP for
// login attempts).
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nanos
}

// NewRateLimiterRegistry creates a registry allowing perSecond events per key
// with the given burst. A non-positive perSecond disables limiting.
func NewRateLimiterRegistry(perSecond float64, burst int) *RateLimiterRegistry {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiterRegistry{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow consumes one event for key. It fails with ErrRateLimited when the
// bucket is empty.
func (r *RateLimiterRegistry) Allow(key string) error {
	if r == nil || r.limit <= 0 {
		return nil
	}
	e := r.getOrCreate(key)
	now := r.now()
	e.lastUsed.Store(now.UnixNano())
	if !e.limiter.AllowN(now, 1) {
		return domain.ErrRateLimited
	}
	return nil
}

func (r *RateLimiterRegistry) getOrCreate(key string) *limiterEntry {
	r.mu.RLock()
	e, exists := r.limiters[key]
	r.mu.RUnlock()

	if exists {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if e, exists := r.limiters[key]; exists {
		return e
	}

	e = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
	r.limiters[key] = e
	return e
}

// Sweep drops limiters unused for longer than idle and returns how many
// were removed. A dropped limiter restarts with a full bucket.
func (r *RateLimiterRegistry) Sweep(idle time.Duration) int {
	if r == nil {
		return 0
	}
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for k, e := range r.limiters {
		if e.lastUsed.Load() < cutoff.UnixNano() {
			delete(r.limiters, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (r *RateLimiterRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}

// Delete removes the limiter for key. Login calls it after a successful
// attempt so the next mistake starts from a full bucket.
func (r *RateLimiterRegistry) Delete(key string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.limiters, key)
}
