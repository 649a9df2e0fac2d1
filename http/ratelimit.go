package http

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter manages per-host request rate limiting using a token bucket.
// Status polling from several trackers against one backend shares the bucket,
// so a burst of trackers cannot flood the server.
type RateLimiter struct {
	limiters     map[string]*rate.Limiter
	backoffState map[string]*BackoffState
	mu           sync.RWMutex
	config       RateLimiterConfig
}

// BackoffState tracks rate limit backoff for a host.
type BackoffState struct {
	// CurrentBackoff is the current backoff duration
	CurrentBackoff time.Duration
	// LastError is when the last rate limit error occurred
	LastError time.Time
	// ConsecutiveErrors is the count of consecutive rate limit errors
	ConsecutiveErrors int
	// OriginalRPS is the configured rate to restore after cooldown
	OriginalRPS float64
	// ReducedRPS is the current reduced rate (0 means using original)
	ReducedRPS float64
}

const (
	// InitialRateLimitBackoff is the first backoff after a 429/503.
	InitialRateLimitBackoff = 1 * time.Second
	// MaxRateLimitBackoff caps the backoff.
	MaxRateLimitBackoff = 60 * time.Second
	// RateLimitBackoffMultiplier grows the backoff on consecutive errors.
	RateLimitBackoffMultiplier = 2.0
	// BackoffCooldownPeriod is how long after last error before resetting backoff
	BackoffCooldownPeriod = 5 * time.Minute
	// MinRPSMultiplier is the minimum rate reduction (0.25 = 25% of original)
	MinRPSMultiplier = 0.25
)

// RateLimiterConfig defines rate limiting behavior.
type RateLimiterConfig struct {
	// RequestsPerSecond applies to every host without a custom rate.
	// Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the bucket size. Default: 1
	Burst int
	// CustomRates maps host names to RPS values
	CustomRates map[string]float64
	// EnableDynamicBackoff enables automatic rate reduction on errors
	EnableDynamicBackoff bool
}

// DefaultRateLimiterConfig returns defaults generous enough for a handful of
// concurrent 1s pollers.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond:    10,
		Burst:                5,
		CustomRates:          make(map[string]float64),
		EnableDynamicBackoff: true,
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.CustomRates == nil {
		cfg.CustomRates = make(map[string]float64)
	}

	return &RateLimiter{
		limiters:     make(map[string]*rate.Limiter),
		backoffState: make(map[string]*BackoffState),
		config:       cfg,
	}
}

// Wait blocks until the rate limit allows a request for the given URL.
// Returns an error if the context is canceled first.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}

	limiter := rl.getLimiter(hostOf(urlStr))
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// getLimiter returns the limiter for a host, creating one if necessary.
func (rl *RateLimiter) getLimiter(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rps := rl.getRPS(host)
	if rps <= 0 {
		return nil
	}

	if limiter, ok := rl.limiters[host]; ok {
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rps), rl.config.Burst)
	rl.limiters[host] = limiter
	return limiter
}

// getRPS returns the requests per second for a host. Must be called with mutex held.
func (rl *RateLimiter) getRPS(host string) float64 {
	if rps, ok := rl.config.CustomRates[host]; ok {
		return rps
	}
	return rl.config.RequestsPerSecond
}

// SetCustomRate sets a custom rate limit for a specific host.
func (rl *RateLimiter) SetCustomRate(host string, rps float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.config.CustomRates[host] = rps
	delete(rl.limiters, host)
}

// RecordRateLimitError records a 429/503 for a host and updates backoff state.
// Returns the recommended backoff duration before the next request.
func (rl *RateLimiter) RecordRateLimitError(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		if retryAfter > 0 {
			return retryAfter
		}
		return InitialRateLimitBackoff
	}

	host := hostOf(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, exists := rl.backoffState[host]
	if !exists {
		state = &BackoffState{
			CurrentBackoff: InitialRateLimitBackoff,
			OriginalRPS:    rl.getRPS(host),
		}
		rl.backoffState[host] = state
	}

	state.LastError = time.Now()
	state.ConsecutiveErrors++

	// 1s → 2s → 4s → ... → max
	if state.ConsecutiveErrors > 1 {
		state.CurrentBackoff = time.Duration(float64(state.CurrentBackoff) * RateLimitBackoffMultiplier)
		if state.CurrentBackoff > MaxRateLimitBackoff {
			state.CurrentBackoff = MaxRateLimitBackoff
		}
	}

	if retryAfter > state.CurrentBackoff {
		state.CurrentBackoff = retryAfter
	}

	rl.reduceRate(host, state)
	return state.CurrentBackoff
}

// reduceRate lowers the token rate for a host. Must be called with mutex held.
func (rl *RateLimiter) reduceRate(host string, state *BackoffState) {
	if state.OriginalRPS <= 0 {
		return
	}

	// 1 error: 75%, 2 errors: 50%, 3+ errors: 25%
	factor := 0.75
	switch {
	case state.ConsecutiveErrors >= 3:
		factor = MinRPSMultiplier
	case state.ConsecutiveErrors == 2:
		factor = 0.5
	}

	state.ReducedRPS = state.OriginalRPS * factor
	if limiter, ok := rl.limiters[host]; ok {
		limiter.SetLimit(rate.Limit(state.ReducedRPS))
	}
}

// RecordSuccess records a successful request, relaxing backoff state.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		return
	}

	host := hostOf(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, exists := rl.backoffState[host]
	if !exists {
		return
	}

	if time.Since(state.LastError) > BackoffCooldownPeriod {
		if limiter, ok := rl.limiters[host]; ok && state.ReducedRPS > 0 {
			limiter.SetLimit(rate.Limit(state.OriginalRPS))
		}
		delete(rl.backoffState, host)
		return
	}

	if state.ConsecutiveErrors > 0 {
		state.ConsecutiveErrors--

		// Recover to 50% of original, full recovery after cooldown
		if state.ReducedRPS > 0 && state.ConsecutiveErrors == 0 {
			newRPS := state.OriginalRPS * 0.5
			if newRPS > state.ReducedRPS {
				state.ReducedRPS = newRPS
				if limiter, ok := rl.limiters[host]; ok {
					limiter.SetLimit(rate.Limit(newRPS))
				}
			}
		}
	}
}

// GetBackoffState returns a copy of the backoff state for a URL's host, or nil.
func (rl *RateLimiter) GetBackoffState(urlStr string) *BackoffState {
	if rl == nil {
		return nil
	}

	host := hostOf(urlStr)

	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if state, ok := rl.backoffState[host]; ok {
		cp := *state
		return &cp
	}
	return nil
}

// IsBackedOff returns true if the host is currently in a backoff period.
func (rl *RateLimiter) IsBackedOff(urlStr string) bool {
	state := rl.GetBackoffState(urlStr)
	if state == nil {
		return false
	}
	return time.Since(state.LastError) < state.CurrentBackoff
}

// WaitForBackoff waits for the current backoff period to expire.
// Returns immediately if not in backoff state.
func (rl *RateLimiter) WaitForBackoff(ctx context.Context, urlStr string) error {
	state := rl.GetBackoffState(urlStr)
	if state == nil {
		return nil
	}

	remaining := state.CurrentBackoff - time.Since(state.LastError)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
