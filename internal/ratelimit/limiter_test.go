package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestLimiter(opts ...Option) (*Limiter, *fakeClock, *MemoryStore) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore()
	return NewLimiter(store, append([]Option{WithClock(clock)}, opts...)...), clock, store
}

func TestFixedWindow(t *testing.T) {
	l, clock, _ := newTestLimiter()
	cfg := Config{MaxRequests: 1, Window: time.Minute, Identifier: "user-1", Endpoint: EndpointGenerateScript}

	first := l.Check(cfg)
	assert.True(t, first.Allowed)
	assert.Equal(t, 0, first.Remaining)

	second := l.Check(cfg)
	assert.False(t, second.Allowed)
	assert.Greater(t, second.RetryAfter, 0)
	assert.Equal(t, 60, second.RetryAfter)

	clock.now = clock.now.Add(time.Minute)
	third := l.Check(cfg)
	assert.True(t, third.Allowed)
	assert.Equal(t, clock.now.Add(time.Minute), third.ResetTime)
}

func TestRemainingCountsDown(t *testing.T) {
	l, clock, _ := newTestLimiter()
	cfg := Config{MaxRequests: 3, Window: time.Minute, Identifier: "u", Endpoint: "e"}

	assert.Equal(t, 2, l.Check(cfg).Remaining)
	assert.Equal(t, 1, l.Check(cfg).Remaining)
	assert.Equal(t, 0, l.Check(cfg).Remaining)

	clock.now = clock.now.Add(1500 * time.Millisecond)
	rejected := l.Check(cfg)
	assert.False(t, rejected.Allowed)
	// ceil(58.5)
	assert.Equal(t, 59, rejected.RetryAfter)
}

func TestCheckNChargesByCost(t *testing.T) {
	l, clock, _ := newTestLimiter()
	cfg := Config{MaxRequests: 30, Window: time.Minute, Identifier: "user-1", Endpoint: EndpointGenerateStoryboard}

	first := l.CheckN(cfg, 20)
	require.True(t, first.Allowed)
	assert.Equal(t, 10, first.Remaining)

	// 超出剩余额度时整体拒绝，不扣减
	over := l.CheckN(cfg, 11)
	assert.False(t, over.Allowed)
	assert.Equal(t, 10, over.Remaining)
	assert.Equal(t, 60, over.RetryAfter)

	fits := l.CheckN(cfg, 10)
	require.True(t, fits.Allowed)
	assert.Equal(t, 0, fits.Remaining)
	assert.False(t, l.Check(cfg).Allowed)

	clock.now = clock.now.Add(time.Minute)
	assert.True(t, l.CheckN(cfg, 30).Allowed)
}

func TestCheckNLargerThanLimit(t *testing.T) {
	l, _, store := newTestLimiter()
	cfg := Config{MaxRequests: 5, Window: time.Minute, Identifier: "u", Endpoint: "e"}

	r := l.CheckN(cfg, 6)
	assert.False(t, r.Allowed)
	assert.Equal(t, 5, r.Remaining)
	assert.Equal(t, 0, store.Len())

	// 非正成本按 1 计
	assert.Equal(t, 4, l.CheckN(cfg, 0).Remaining)
}

func TestKeysAreIndependent(t *testing.T) {
	l, _, _ := newTestLimiter()
	a := Config{MaxRequests: 1, Window: time.Minute, Identifier: "u1", Endpoint: EndpointGenerateScript}
	b := Config{MaxRequests: 1, Window: time.Minute, Identifier: "u1", Endpoint: EndpointGenerateStoryboard}
	c := Config{MaxRequests: 1, Window: time.Minute, Identifier: "u2", Endpoint: EndpointGenerateScript}

	assert.True(t, l.Check(a).Allowed)
	assert.True(t, l.Check(b).Allowed)
	assert.True(t, l.Check(c).Allowed)
	assert.False(t, l.Check(a).Allowed)
}

func TestSweepAboveHighWater(t *testing.T) {
	l, clock, store := newTestLimiter(WithHighWater(5))

	for i := 0; i < 6; i++ {
		l.Check(Config{MaxRequests: 1, Window: time.Second, Identifier: fmt.Sprintf("u%d", i), Endpoint: "e"})
	}
	require.Equal(t, 6, store.Len())

	clock.now = clock.now.Add(2 * time.Second)
	l.Check(Config{MaxRequests: 1, Window: time.Minute, Identifier: "fresh", Endpoint: "e"})
	assert.Equal(t, 1, store.Len())
}

func TestNoSweepBelowHighWater(t *testing.T) {
	l, clock, store := newTestLimiter(WithHighWater(10))
	l.Check(Config{MaxRequests: 1, Window: time.Second, Identifier: "old", Endpoint: "e"})
	clock.now = clock.now.Add(time.Hour)
	l.Check(Config{MaxRequests: 1, Window: time.Second, Identifier: "new", Endpoint: "e"})
	assert.Equal(t, 2, store.Len())
}

func TestHeaders(t *testing.T) {
	reset := time.Unix(1_700_000_060, 0)

	h := Headers(Result{Allowed: true, Limit: 10, Remaining: 9, ResetTime: reset})
	assert.Equal(t, "9", h["X-RateLimit-Remaining"])
	assert.Equal(t, "1700000060", h["X-RateLimit-Reset"])
	_, hasRetry := h["Retry-After"]
	assert.False(t, hasRetry)

	h = Headers(Result{Allowed: false, Limit: 10, ResetTime: reset, RetryAfter: 12})
	assert.Equal(t, "12", h["Retry-After"])
	assert.Equal(t, "0", h["X-RateLimit-Remaining"])
}

func TestConcurrentChecksNeverOvershoot(t *testing.T) {
	l := NewLimiter(nil)
	cfg := Config{MaxRequests: 50, Window: time.Minute, Identifier: "burst", Endpoint: "e"}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check(cfg).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()
	assert.Equal(t, Limit{MaxRequests: 10, Window: time.Minute}, limits[EndpointGenerateScript])
	assert.Equal(t, Limit{MaxRequests: 30, Window: time.Minute}, limits[EndpointGenerateStoryboard])
	assert.Equal(t, Limit{MaxRequests: 20, Window: time.Minute}, limits[EndpointGenerateShareLink])
	assert.Equal(t, Limit{MaxRequests: 5, Window: time.Minute}, limits[EndpointExportVideo])
}
