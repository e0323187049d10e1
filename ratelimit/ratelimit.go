package ratelimit

import (
	"sync"
	"time"

	"github.com/mezonai/starledger/errors"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	MaxRequests     int           // Maximum number of requests allowed
	WindowSize      time.Duration // Time window for rate limiting
	CleanupInterval time.Duration // How often to clean up expired entries
}

// DefaultConfig returns a default configuration
func DefaultConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		MaxRequests:     10,
		WindowSize:      time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimiter implements sliding window rate limiting
type RateLimiter struct {
	config   *RateLimiterConfig
	requests map[string][]time.Time // key -> request timestamps inside the window
	mu       sync.Mutex
	now      func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	return newRateLimiter(config, time.Now)
}

func newRateLimiter(config *RateLimiterConfig, now func() time.Time) *RateLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	rl := &RateLimiter{
		config:      config,
		requests:    make(map[string][]time.Time),
		now:         now,
		stopCleanup: make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go rl.cleanupExpiredEntries()
	}
	return rl
}

// Allow records a request for key and reports whether it fits in the window.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	cutoff := now.Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := prune(rl.requests[key], cutoff)
	if len(valid) >= rl.config.MaxRequests {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// Count returns the number of requests of key inside the current window
func (rl *RateLimiter) Count(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(prune(rl.requests[key], rl.now().Add(-rl.config.WindowSize)))
}

// Reset removes all entries for a given key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}

func prune(requests []time.Time, cutoff time.Time) []time.Time {
	valid := requests[:0:0]
	for _, ts := range requests {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	return valid
}

// cleanupExpiredEntries periodically removes expired entries to prevent memory leaks
func (rl *RateLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	cutoff := rl.now().Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, requests := range rl.requests {
		valid := prune(requests, cutoff)
		if len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// ValidationLimiter guards the validation workflow per client IP and per wallet
// address so one caller cannot churn challenges.
type ValidationLimiter struct {
	ipLimiter     *RateLimiter
	walletLimiter *RateLimiter
}

func NewValidationLimiter(ipConfig, walletConfig *RateLimiterConfig) *ValidationLimiter {
	return &ValidationLimiter{
		ipLimiter:     NewRateLimiter(ipConfig),
		walletLimiter: NewRateLimiter(walletConfig),
	}
}

// Check returns a rate_limited error when either limit is exhausted. An empty
// wallet only counts against the IP.
func (vl *ValidationLimiter) Check(ip, wallet string) error {
	if vl == nil {
		return nil
	}
	if !vl.ipLimiter.Allow(ip) {
		return errors.Wrap(errors.ErrCodeRateLimited, nil, "%s: ip %s", errors.ErrMsgRateLimited, ip)
	}
	if wallet != "" && !vl.walletLimiter.Allow(wallet) {
		return errors.Wrap(errors.ErrCodeRateLimited, nil, "%s: wallet %s", errors.ErrMsgRateLimited, wallet)
	}
	return nil
}

func (vl *ValidationLimiter) Stop() {
	if vl == nil {
		return
	}
	vl.ipLimiter.Stop()
	vl.walletLimiter.Stop()
}
