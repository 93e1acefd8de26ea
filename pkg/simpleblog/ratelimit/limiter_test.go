package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(at *time.Time) func() time.Time {
	return func() time.Time { return *at }
}

func TestAllowWithinQuota(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewFixedWindow(WithClock(fixedClock(&now)))

	for i := 0; i < 100; i++ {
		result := l.Allow(TierPublicRead, "1.2.3.4")
		require.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 100, result.Limit)
		assert.Equal(t, 100-(i+1), result.Remaining)
	}
}

func TestRejectsOverQuota(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l := NewFixedWindow(WithClock(fixedClock(&now)))

	for i := 0; i < 100; i++ {
		require.True(t, l.Allow(TierPublicRead, "1.2.3.4").Allowed)
	}

	// 101st in the same window is rejected with the remaining window as
	// retry-after.
	now = start.Add(5 * time.Minute)
	result := l.Allow(TierPublicRead, "1.2.3.4")
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, 10*time.Minute, result.RetryAfter)
	assert.Equal(t, start.Add(15*time.Minute), result.ResetAt)
}

func TestWindowResets(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start
	l := NewFixedWindow(WithClock(fixedClock(&now)))

	for i := 0; i < 101; i++ {
		l.Allow(TierPublicRead, "1.2.3.4")
	}
	require.False(t, l.Allow(TierPublicRead, "1.2.3.4").Allowed)

	// The counter resets once the window elapses.
	now = start.Add(15 * time.Minute)
	result := l.Allow(TierPublicRead, "1.2.3.4")
	assert.True(t, result.Allowed)
	assert.Equal(t, 99, result.Remaining)
}

func TestIdentitiesAreIsolated(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewFixedWindow(WithClock(fixedClock(&now)))

	for i := 0; i < 101; i++ {
		l.Allow(TierPublicRead, "1.2.3.4")
	}
	require.False(t, l.Allow(TierPublicRead, "1.2.3.4").Allowed)

	// A different identity still has its full quota.
	assert.True(t, l.Allow(TierPublicRead, "5.6.7.8").Allowed)
}

func TestTiersAreIsolated(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewFixedWindow(WithClock(fixedClock(&now)))

	for i := 0; i < 51; i++ {
		l.Allow(TierAdminWrite, "admin-key")
	}
	require.False(t, l.Allow(TierAdminWrite, "admin-key").Allowed)

	// The same identity on another tier keeps its own counter.
	assert.True(t, l.Allow(TierAdminDelete, "admin-key").Allowed)
}

func TestDefaultPolicies(t *testing.T) {
	tests := []struct {
		tier   Tier
		window time.Duration
		max    int
	}{
		{TierPublicRead, 15 * time.Minute, 100},
		{TierAdminWrite, 60 * time.Minute, 50},
		{TierAdminDelete, 60 * time.Minute, 20},
		{TierHealth, 15 * time.Minute, 1000},
	}

	policies := DefaultPolicies()
	for _, tt := range tests {
		policy, ok := policies[tt.tier]
		require.True(t, ok, string(tt.tier))
		assert.Equal(t, tt.window, policy.Window)
		assert.Equal(t, tt.max, policy.Max)
	}
}

func TestUnknownTierIsUnlimited(t *testing.T) {
	l := NewFixedWindow()
	for i := 0; i < 1000; i++ {
		require.True(t, l.Allow(Tier("unknown"), "x").Allowed)
	}
}

func TestConcurrentCountsAreExact(t *testing.T) {
	l := NewFixedWindow(WithPolicies(map[Tier]Policy{
		TierPublicRead: {Window: time.Hour, Max: 500},
	}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if l.Allow(TierPublicRead, "shared").Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// 1000 attempts against a quota of 500: exactly 500 accepted.
	assert.Equal(t, 500, allowed)
}

func TestRemainingNeverNegative(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewFixedWindow(WithClock(fixedClock(&now)))

	for i := 0; i < 150; i++ {
		result := l.Allow(TierPublicRead, "burst")
		assert.GreaterOrEqual(t, result.Remaining, 0)
	}
}
