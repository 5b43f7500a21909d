package http

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"breakwater/internal/handler/http/respond"
)

// clientBucket pairs a token bucket with its last use, so idle clients
// can be evicted.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter enforces a per-client request rate on the ops
// server with one token bucket per client IP. Buckets refill at the
// configured rate and allow short bursts; a client that drains its
// bucket gets 429 until tokens return.
type ClientRateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
}

// NewClientRateLimiter creates a limiter allowing perSecond sustained
// requests with the given burst per client.
func NewClientRateLimiter(perSecond, burst int) *ClientRateLimiter {
	return &ClientRateLimiter{
		clients:   make(map[string]*clientBucket),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		idleAfter: 10 * time.Minute,
		lastSweep: time.Now(),
	}
}

// Limit applies the rate limit to incoming requests by client IP.
// Requests over the limit are rejected with 429 Too Many Requests.
func (l *ClientRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(extractIP(r)) {
			respond.SafeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow takes one token from the client's bucket, creating the bucket
// on first sight and sweeping idle buckets as a side effect.
func (l *ClientRateLimiter) allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	b, ok := l.clients[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = b
	}
	b.lastSeen = now

	return b.limiter.Allow()
}

// sweepLocked drops buckets idle longer than idleAfter. It runs at
// most once per idleAfter interval to keep the hot path cheap.
func (l *ClientRateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleAfter {
		return
	}
	l.lastSweep = now

	for ip, b := range l.clients {
		if now.Sub(b.lastSeen) >= l.idleAfter {
			delete(l.clients, ip)
		}
	}
}
