package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spado/songcontest/internal/ui"
)

// RateLimiter is a sliding window counter keyed by client IP.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int           // Max requests per window
	window   time.Duration // Sliding window length
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}

	// Drop idle keys so the map does not grow without bound
	go rl.cleanupLoop()

	return rl
}

// Allow reports whether key may make another request and records it if so.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Forget requests that left the window
	now := time.Now()
	recent := prune(rl.requests[key], now.Add(-rl.window))

	// Check if limit exceeded
	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}

	// Count this request
	rl.requests[key] = append(recent, now)
	return true
}

// prune keeps the times after cutoff, reusing the slice
func prune(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// cleanupLoop periodically removes keys with no recent requests
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.cleanup()
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.window)
	for key, times := range rl.requests {
		recent := prune(times, cutoff)

		// Remove key if all requests are old
		if len(recent) == 0 {
			delete(rl.requests, key)
			continue
		}
		rl.requests[key] = recent
	}
}

// RateLimit wraps a handler with its own limiter of limit requests per
// window per client IP.
func RateLimit(limit int, window time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	limiter := NewRateLimiter(limit, window)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			// Real IP as resolved by ClientIP (trusted proxies only)
			ip := getClientIP(r)

			// Check rate limit
			if !limiter.Allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				ui.Error(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}
			next(w, r)
		}
	}
}

// RateLimitAuth guards credential and code endpoints: 5 requests per 15
// minutes per IP.
func RateLimitAuth() func(http.HandlerFunc) http.HandlerFunc {
	return RateLimit(5, 15*time.Minute)
}
