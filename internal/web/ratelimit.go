// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bread Contributors

package web

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the per-client limiter on the credential
// endpoints.
type RateLimiterConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig allows one attempt per second per client with a
// burst of five.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            rate.Limit(1),
		Burst:           5,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client IP. Idle buckets are
// dropped by a background goroutine; call Stop to end it.
type RateLimiter struct {
	config   RateLimiterConfig
	rejected *prometheus.CounterVec

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewRateLimiter starts a limiter. rejected may be nil.
func NewRateLimiter(config RateLimiterConfig, rejected *prometheus.CounterVec) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	rl := &RateLimiter{
		config:   config,
		rejected: rejected,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the cleanup goroutine and waits for it to exit. Safe to call
// more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
	<-rl.done
}

// Middleware rejects requests from clients that exhausted their bucket with
// 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		if !rl.limiterFor(client).Allow() {
			if rl.rejected != nil {
				rl.rejected.WithLabelValues(r.URL.Path).Inc()
			}
			slog.WarnContext(r.Context(), "rate limit exceeded", "client", client, "path", r.URL.Path)
			rl.writeRejection(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Count returns the number of tracked clients.
func (rl *RateLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiterFor(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[client]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.limiters[client] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	defer close(rl.done)

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops buckets idle for more than twice the cleanup interval.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, client)
		}
	}
}

func (rl *RateLimiter) writeRejection(w http.ResponseWriter) {
	retryAfter := 1
	if rl.config.Rate > 0 {
		retryAfter = max(1, int(math.Ceil(1.0/float64(rl.config.Rate))))
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSONError(w, http.StatusTooManyRequests, codeRateLimited, "Too many requests, try again later.")
}

// clientIP is the remote host of the connection. Forwarding headers are not
// trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
