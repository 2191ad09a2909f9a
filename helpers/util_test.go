package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "Margherita Pizza Small", CollapseSpace("  Margherita\n\t Pizza   Small "))
	assert.Equal(t, "", CollapseSpace(" \n "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "küçük", Truncate("küçük", 10))
	assert.Equal(t, "Marg...", Truncate("Margherita", 7))
	assert.Equal(t, "Ma", Truncate("Margherita", 2))
}

func TestWaitUntil(t *testing.T) {
	calls := 0
	ok := WaitUntil(context.Background(), time.Second, time.Millisecond, func() bool {
		calls++
		return calls == 3
	})
	assert.True(t, ok)
	assert.Equal(t, 3, calls)

	start := time.Now()
	ok = WaitUntil(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func() bool { return false })
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	calls = 0
	ok = WaitUntil(context.Background(), 0, 0, func() bool { calls++; return false })
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestWaitUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok := WaitUntil(ctx, time.Minute, time.Second, func() bool { return false })
	assert.False(t, ok)
	assert.Error(t, Sleep(ctx, time.Minute))
}
