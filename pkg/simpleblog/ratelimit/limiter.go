// Package ratelimit tracks per-identity request quotas over fixed time
// windows, one counter per (tier, identity) pair.
package ratelimit

import (
	"sync"
	"time"
)

// Tier names a request-rate policy class.
type Tier string

const (
	TierPublicRead  Tier = "public-read"
	TierAdminWrite  Tier = "admin-write"
	TierAdminDelete Tier = "admin-delete"
	TierHealth      Tier = "health"
)

// Policy is a fixed-window quota.
type Policy struct {
	Window time.Duration
	Max    int
}

// DefaultPolicies returns the standard tier table.
func DefaultPolicies() map[Tier]Policy {
	return map[Tier]Policy{
		TierPublicRead:  {Window: 15 * time.Minute, Max: 100},
		TierAdminWrite:  {Window: 60 * time.Minute, Max: 50},
		TierAdminDelete: {Window: 60 * time.Minute, Max: 20},
		TierHealth:      {Window: 15 * time.Minute, Max: 1000},
	}
}

// Result reports the outcome of an Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter is the shared-counter contract. The fixed-window implementation
// below is process-local; a horizontally scaled deployment can substitute an
// externally backed implementation without changing call sites.
type Limiter interface {
	Allow(tier Tier, identity string) Result
}

type window struct {
	start time.Time
	count int
}

// FixedWindow is a process-local fixed-window counter limiter.
type FixedWindow struct {
	mu       sync.Mutex
	policies map[Tier]Policy
	windows  map[string]*window
	now      func() time.Time
}

// FixedWindowOption configures a FixedWindow limiter.
type FixedWindowOption func(*FixedWindow)

// WithClock injects the time source. Used by tests.
func WithClock(now func() time.Time) FixedWindowOption {
	return func(l *FixedWindow) {
		l.now = now
	}
}

// WithPolicies overrides the default tier table.
func WithPolicies(policies map[Tier]Policy) FixedWindowOption {
	return func(l *FixedWindow) {
		l.policies = policies
	}
}

// NewFixedWindow creates a limiter with the default tier policies.
func NewFixedWindow(opts ...FixedWindowOption) *FixedWindow {
	l := &FixedWindow{
		policies: DefaultPolicies(),
		windows:  make(map[string]*window),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records one request for (tier, identity) and reports whether it fits
// the tier's window quota. Counters update atomically per key, so concurrent
// bursts are never undercounted.
func (l *FixedWindow) Allow(tier Tier, identity string) Result {
	policy, ok := l.policies[tier]
	if !ok {
		// Unknown tiers are not limited.
		return Result{Allowed: true, Limit: 0, Remaining: 0}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := string(tier) + "|" + identity
	w, exists := l.windows[key]
	if !exists || now.Sub(w.start) >= policy.Window {
		w = &window{start: now}
		l.windows[key] = w
	}

	w.count++

	resetAt := w.start.Add(policy.Window)
	if w.count > policy.Max {
		return Result{
			Allowed:    false,
			Limit:      policy.Max,
			Remaining:  0,
			RetryAfter: policy.Window - now.Sub(w.start),
			ResetAt:    resetAt,
		}
	}

	return Result{
		Allowed:   true,
		Limit:     policy.Max,
		Remaining: policy.Max - w.count,
		ResetAt:   resetAt,
	}
}

// Policy returns the configured policy for a tier.
func (l *FixedWindow) Policy(tier Tier) (Policy, bool) {
	p, ok := l.policies[tier]
	return p, ok
}
