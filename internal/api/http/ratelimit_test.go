package httpapi

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiterRollingWindow(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow(userID), "hit %d", i)
	}
	assert.False(t, rl.allow(userID))

	// Another user has their own budget.
	assert.True(t, rl.allow(uuid.New()))

	// The oldest hits age out of the window.
	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow(userID))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0, time.Minute)
	userID := uuid.New()
	for i := 0; i < 100; i++ {
		assert.True(t, rl.allow(userID))
	}
}

func TestRateLimiterGC(t *testing.T) {
	rl := newRateLimiter(5, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		rl.allow(uuid.New())
	}
	assert.Len(t, rl.hits, 10)

	now = now.Add(2 * time.Minute)
	rl.allow(uuid.New())
	assert.Len(t, rl.hits, 1)
}
