package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipRateLimiter keeps one token bucket per remote address. Idle entries are
// dropped lazily so the map does not grow without bound.
type ipRateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byKey   map[string]*rateLimitEntry
	idleTTL time.Duration
}

type rateLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(rps) + 1
	}

	return &ipRateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byKey:   make(map[string]*rateLimitEntry),
		idleTTL: 10 * time.Minute,
	}
}

func (l *ipRateLimiter) allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.byKey[key]
	if !ok {
		entry = &rateLimitEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = entry
	}
	entry.lastSeen = now

	for k, e := range l.byKey {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.byKey, k)
		}
	}

	return entry.limiter.Allow()
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
