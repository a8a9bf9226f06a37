package counterport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitCountsUpToUserLimit(t *testing.T) {
	m := NewMemoryCounters()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		decision, err := m.Admit(ctx, "user:a", 3, 100, time.Hour, false)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, i, decision.Count)
	}

	decision, err := m.Admit(ctx, "user:a", 3, 100, time.Hour, false)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "user", decision.ExhaustedScope)
	assert.Equal(t, 3, decision.Count)
}

func TestAdmitSeparateUsersHaveSeparateCounters(t *testing.T) {
	m := NewMemoryCounters()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := m.Admit(ctx, "user:a", 3, 100, time.Hour, false)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	decision, err := m.Admit(ctx, "user:b", 3, 100, time.Hour, false)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, decision.Count)
}

func TestAdmitGlobalLimitDeniesFreshUser(t *testing.T) {
	m := NewMemoryCounters()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		decision, err := m.Admit(ctx, "user:a", 5, 2, time.Hour, false)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	decision, err := m.Admit(ctx, "user:b", 5, 2, time.Hour, false)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "global", decision.ExhaustedScope)
	// headroom data still describes user:b's own counter
	assert.Equal(t, 0, decision.Count)
}

func TestAdmitBypassSkipsDenialButCounts(t *testing.T) {
	m := NewMemoryCounters()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		decision, err := m.Admit(ctx, "user:vip", 3, 100, time.Hour, true)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, i, decision.Count)
	}
}

func TestAdmitWindowRollsOverAtFixedOrigin(t *testing.T) {
	m := NewMemoryCounters()
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }
	ctx := context.Background()

	first, err := m.Admit(ctx, "user:a", 1, 100, 24*time.Hour, false)
	require.NoError(t, err)
	require.True(t, first.Allowed)
	assert.Equal(t, current.Add(24*time.Hour), first.ResetAt)

	// Reset instant stays anchored to the first admission.
	current = current.Add(12 * time.Hour)
	denied, err := m.Admit(ctx, "user:a", 1, 100, 24*time.Hour, false)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Equal(t, first.ResetAt, denied.ResetAt)

	current = first.ResetAt.Add(time.Minute)
	fresh, err := m.Admit(ctx, "user:a", 1, 100, 24*time.Hour, false)
	require.NoError(t, err)
	assert.True(t, fresh.Allowed)
	assert.Equal(t, 1, fresh.Count)
}

func TestAdmitConcurrentNeverOvershoots(t *testing.T) {
	m := NewMemoryCounters()
	ctx := context.Background()

	const attempts = 50
	const limit = 3
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := m.Admit(ctx, "user:a", limit, 100, time.Hour, false)
			require.NoError(t, err)
			if decision.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, admitted)
}
