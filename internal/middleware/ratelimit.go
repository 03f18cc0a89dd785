// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type limiterEntry struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// RateLimiter allows at most limit requests per key within a sliding window.
// It guards the login, registration and upload endpoints.
type RateLimiter struct {
	mu      sync.RWMutex
	clients map[string]*limiterEntry
	limit   int
	window  time.Duration
	now     func() time.Time
	stopCh  chan struct{}
}

// NewRateLimiter creates a rate limiter and starts its background sweeper.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*limiterEntry),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-rl.stopCh:
				return
			}
		}
	}()

	return rl
}

// Stop terminates the background sweeper.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) entry(key string) *limiterEntry {
	rl.mu.RLock()
	e, ok := rl.clients[key]
	rl.mu.RUnlock()
	if ok {
		return e
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if e, ok = rl.clients[key]; !ok {
		e = &limiterEntry{}
		rl.clients[key] = e
	}
	return e
}

// allow records a request for key. When the key is over its limit it
// returns false and how long until the oldest request leaves the window.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	e := rl.entry(key)
	now := rl.now()
	cutoff := now.Add(-rl.window)

	e.mu.Lock()
	defer e.mu.Unlock()

	valid := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	e.timestamps = valid

	if len(e.timestamps) >= rl.limit {
		return false, e.timestamps[0].Sub(cutoff)
	}
	e.timestamps = append(e.timestamps, now)
	return true, 0
}

func (rl *RateLimiter) cleanup() {
	cutoff := rl.now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, e := range rl.clients {
		e.mu.Lock()
		stale := len(e.timestamps) == 0 || !e.timestamps[len(e.timestamps)-1].After(cutoff)
		e.mu.Unlock()
		if stale {
			delete(rl.clients, key)
		}
	}
}

// Middleware rate-limits by client IP and answers 429 with Retry-After.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retry := rl.allow(clientIP(r))
		if !ok {
			secs := int(retry.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, http.StatusTooManyRequests, "Too many requests. Try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the leftmost X-Forwarded-For address, then X-Real-IP,
// then the connection's remote host.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
