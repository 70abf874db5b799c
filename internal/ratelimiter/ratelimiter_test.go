package ratelimiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter := New(0, 0)
	assert.False(t, limiter.Enabled())

	for i := 0; i < 1000; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"))
	}

	var nilLimiter *RateLimiter
	assert.True(t, nilLimiter.Allow("10.0.0.1"))
}

func TestBurstThenReject(t *testing.T) {
	limiter := New(1, 3)
	fixed := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"), "attempt %d within burst", i)
	}
	assert.False(t, limiter.Allow("10.0.0.1"))
}

func TestKeysAreIndependent(t *testing.T) {
	limiter := New(1, 1)
	fixed := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return fixed }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestTokensRefill(t *testing.T) {
	limiter := New(1, 1)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("host"))
	assert.False(t, limiter.Allow("host"))

	now = now.Add(2 * time.Second)
	assert.True(t, limiter.Allow("host"))
}

func TestIdleBucketsEvicted(t *testing.T) {
	limiter := New(5, 5)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	limiter.Allow("b")
	assert.Equal(t, 2, limiter.Len())

	now = now.Add(time.Hour)
	limiter.Allow("c")
	assert.Equal(t, 1, limiter.Len())
}

func TestConcurrentAllow(t *testing.T) {
	limiter := New(1000, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				limiter.Allow("shared")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, limiter.Len())
}
