package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/campusbot/campusbot/internal/log"
)

const (
	// DefaultRateLimit is the steady-state request rate per client IP,
	// in requests per second.
	DefaultRateLimit = 10

	// DefaultRateBurst is the initial token allowance per client IP.
	DefaultRateBurst = 30

	// Stale per-IP buckets are swept opportunistically during allow calls.
	sweepInterval  = 5 * time.Minute
	staleThreshold = 10 * time.Minute
)

// ipLimiter tracks a token bucket per client IP. Webhooks and the chat
// endpoint share one limiter, so a chatty SMS sender cannot starve callers.
type ipLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	buckets   map[string]*ipBucket
	lastSweep time.Time
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		limit:     rate.Limit(perSecond),
		burst:     burst,
		buckets:   make(map[string]*ipBucket),
		lastSweep: time.Now(),
	}
}

// allow reports whether a request from ip may proceed, consuming a token.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.sweep(now)

	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// sweep drops buckets idle past staleThreshold. Caller holds mu.
func (l *ipLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) <= sweepInterval {
		return
	}
	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > staleThreshold {
			delete(l.buckets, ip)
		}
	}
	l.lastSweep = now
}

// rateLimitMiddleware answers 429 once a client IP exhausts its bucket.
func rateLimitMiddleware(l *ipLimiter, trustProxy bool, logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !l.allow(ip) {
				logger.Warn("rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the address to key rate limiting on.
//
// Proxy headers are only honored when trustProxy is set, and only when they
// parse as an IP; otherwise a client could spoof its way into a fresh
// bucket per request. X-Real-IP wins over X-Forwarded-For (first hop).
// Without a trusted proxy, RemoteAddr is the only safe source.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
				return ip.String()
			}
		}
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			raw := xff
			if first, _, ok := strings.Cut(xff, ","); ok {
				raw = first
			}
			if ip := net.ParseIP(strings.TrimSpace(raw)); ip != nil {
				return ip.String()
			}
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
