// Package ratelimiter throttles requests per client IP.
package ratelimiter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type CleanupOpts struct {
	TTL      time.Duration
	Interval time.Duration
}

type ipAddr string

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP and forgets IPs
// that have been idle for longer than TTL.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[ipAddr]*visitor
	rate     rate.Limit
	burst    int
	now      func() time.Time
	CleanupOpts
}

// NewIPRateLimiter allows requests per window for each IP. The cleanup loop
// runs until ctx is done.
func NewIPRateLimiter(ctx context.Context, requests int, window time.Duration, cleanupOpts CleanupOpts) *IPRateLimiter {
	rl := &IPRateLimiter{
		visitors:    make(map[ipAddr]*visitor),
		rate:        rate.Every(window / time.Duration(requests)),
		burst:       requests,
		now:         time.Now,
		CleanupOpts: cleanupOpts,
	}

	if rl.Interval > 0 {
		go rl.cleanup(ctx)
	}

	return rl
}

func (rl *IPRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *IPRateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.TTL {
			delete(rl.visitors, ip)
		}
	}
}

// Len returns the number of tracked IPs.
func (rl *IPRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// GetClientIP uses the last X-Forwarded-For hop when present, the remote
// address otherwise.
func GetClientIP(r *http.Request) ipAddr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return ipAddr(strings.TrimSpace(ips[len(ips)-1]))
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		//nolint:gosec
		slog.Warn("invalid argument for net.SplitHostPort()",
			slog.String("remote_addr", r.RemoteAddr))
		return ipAddr(r.RemoteAddr)
	}

	return ipAddr(host)
}

func (rl *IPRateLimiter) Allow(ip ipAddr) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}

	v.lastSeen = rl.now()
	return v.limiter.Allow()
}

func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := GetClientIP(r)

		if !rl.Allow(ip) {
			slog.WarnContext(r.Context(), "rate limit exceeded",
				"ip", ip,
				"path", r.URL.Path,
				"method", r.Method)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			//nolint:errcheck
			json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests. Try again later."})
			return
		}

		next.ServeHTTP(w, r)
	})
}
