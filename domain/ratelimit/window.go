// Package ratelimit provides pure rate limiting and cache-expiry
// algorithms used to guard outbound partner API calls.
// All functions are deterministic - same input always produces same output.
package ratelimit

import "time"

// WindowState represents the current state of a call budget window (value type).
type WindowState struct {
	Count     int       // Calls made in the current window
	WindowEnd time.Time // When the current window ends
}

// CheckResult represents the outcome of a budget check (value type).
type CheckResult struct {
	Allowed   bool
	Remaining int       // Calls remaining in the window
	ResetAt   time.Time // When the budget resets
	Reason    string    // If not allowed, why
}

// Config holds the call budget configuration (value type).
type Config struct {
	Limit  int           // Calls per window
	Window time.Duration // Window duration
}

// Reasons for denial
const (
	ReasonBudgetExhausted = "partner_call_budget_exhausted"
)

// Check performs a call budget check against a fixed window.
// This is a PURE function - the caller persists the returned state.
func Check(state WindowState, cfg Config, now time.Time) (CheckResult, WindowState) {
	windowStart := now.Truncate(cfg.Window)
	windowEnd := windowStart.Add(cfg.Window)

	if now.After(state.WindowEnd) || state.WindowEnd.IsZero() {
		state = WindowState{WindowEnd: windowEnd}
	}

	if state.Count < cfg.Limit {
		state.Count++
		return CheckResult{
			Allowed:   true,
			Remaining: cfg.Limit - state.Count,
			ResetAt:   state.WindowEnd,
		}, state
	}

	return CheckResult{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   state.WindowEnd,
		Reason:    ReasonBudgetExhausted,
	}, state
}

// RetryAfter returns how long to wait before the budget resets.
// This is a PURE function.
func RetryAfter(result CheckResult, now time.Time) time.Duration {
	if result.Allowed {
		return 0
	}
	delay := result.ResetAt.Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}

// Entry describes a cached partner response for expiry decisions (value type).
type Entry struct {
	StoredAt time.Time
	TTL      time.Duration
}

// Expired reports whether a cache entry has outlived its TTL.
// A zero TTL means the entry never expires on its own.
// This is a PURE function.
func Expired(e Entry, now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.StoredAt) >= e.TTL
}
