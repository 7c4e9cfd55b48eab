package ratelimiter

import (
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MapLimiter applies a token bucket per string key and periodically evicts idle entries.
type MapLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*entry
	hits    uint64
	idleTTL time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a key-based limiter; returns nil if args are invalid.
func New(rps float64, burst int, idleTTL time.Duration) *MapLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MapLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*entry),
		idleTTL: idleTTL,
	}
}

// NewWindow allows max requests per window for each key: the bucket holds
// max tokens and refills at max/window. Idle keys are kept for one window.
func NewWindow(max int, window time.Duration) *MapLimiter {
	if max <= 0 || window <= 0 {
		return nil
	}
	return New(float64(max)/window.Seconds(), max, window)
}

// Allow reports whether one token can be consumed for the key at now.
func (l *MapLimiter) Allow(key string, now time.Time) bool {
	allowed, _ := l.Reserve(key, now)
	return allowed
}

// Reserve consumes one token for the key at now. When no token is
// available it reports false and how long until one will be.
func (l *MapLimiter) Reserve(key string, now time.Time) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &entry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
		}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)
	var retryAfter time.Duration
	if !allowed {
		missing := 1 - e.limiter.TokensAt(now)
		retryAfter = time.Duration(math.Ceil(missing / float64(l.limit) * float64(time.Second)))
	}

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}

	return allowed, retryAfter
}

// Limit returns the bucket size, i.e. requests allowed per window.
func (l *MapLimiter) Limit() int {
	if l == nil {
		return 0
	}
	return l.burst
}

// Len returns the number of tracked keys.
func (l *MapLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}
