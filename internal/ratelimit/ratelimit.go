package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces per-minute and per-hour budgets per client key.
// Each budget is a token bucket that refills evenly over its window.
type RateLimiter struct {
	requestsPerMinute int
	requestsPerHour   int
	enabled           bool
	now               func() time.Time

	clients map[string]*client
	mu      sync.Mutex
}

// client holds the buckets of one key. hour is nil when the hourly budget is off.
type client struct {
	minute *rate.Limiter
	hour   *rate.Limiter
}

// NewRateLimiter creates a new rate limiter with the given limits.
// A zero hourly limit disables the hour budget.
func NewRateLimiter(requestsPerMinute, requestsPerHour int, enabled bool) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		enabled:           enabled,
		now:               time.Now,
		clients:           make(map[string]*client),
	}
}

// SetClock replaces the time source
func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.now = now
}

// perWindow allows n requests per window, refilled one at a time
func perWindow(n int, window time.Duration) *rate.Limiter {
	if n <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(n)), n)
}

func (rl *RateLimiter) newClient() *client {
	return &client{
		minute: perWindow(rl.requestsPerMinute, time.Minute),
		hour:   perWindow(rl.requestsPerHour, time.Hour),
	}
}

// Allow checks if a request from key is allowed and takes a token from each
// budget when it is. A rejected request consumes nothing.
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c := rl.clients[key]
	if c == nil {
		c = rl.newClient()
		rl.clients[key] = c
	}

	if !hasToken(c.minute, now) || !hasToken(c.hour, now) {
		return false
	}
	if c.minute != nil {
		c.minute.AllowN(now, 1)
	}
	if c.hour != nil {
		c.hour.AllowN(now, 1)
	}
	return true
}

func hasToken(l *rate.Limiter, now time.Time) bool {
	return l == nil || l.TokensAt(now) >= 1
}

func full(l *rate.Limiter, now time.Time) bool {
	return l == nil || l.TokensAt(now) >= float64(l.Burst())
}

// Prune drops clients whose budgets have fully refilled
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, c := range rl.clients {
		if full(c.minute, now) && full(c.hour, now) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// GetStats returns current rate limiter statistics for key
func (rl *RateLimiter) GetStats(key string) Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	stats := Stats{
		Enabled:             true,
		Clients:             len(rl.clients),
		LimitPerMinute:      rl.requestsPerMinute,
		LimitPerHour:        rl.requestsPerHour,
		RemainingThisMinute: max(0, rl.requestsPerMinute),
		RemainingThisHour:   max(0, rl.requestsPerHour),
	}
	if c := rl.clients[key]; c != nil {
		now := rl.now()
		if c.minute != nil {
			stats.RemainingThisMinute = int(c.minute.TokensAt(now))
		}
		if c.hour != nil {
			stats.RemainingThisHour = int(c.hour.TokensAt(now))
		}
	}
	return stats
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled             bool `json:"enabled"`
	Clients             int  `json:"clients"`
	LimitPerMinute      int  `json:"limit_per_minute"`
	LimitPerHour        int  `json:"limit_per_hour"`
	RemainingThisMinute int  `json:"remaining_this_minute"`
	RemainingThisHour   int  `json:"remaining_this_hour"`
}
