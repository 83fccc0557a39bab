package ratelimit

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, cfg Config) (*memoryLimiter, *fakeClock) {
	t.Helper()
	l := NewMemoryLimiter(cfg).(*memoryLimiter)
	t.Cleanup(l.Stop)
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	l.now = clock.now
	return l, clock
}

func TestMemoryLimiter_Burst(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Enabled: true, Requests: 3, Window: time.Minute})

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	// keys are independent
	assert.True(t, l.Allow("b"))
}

func TestMemoryLimiter_Refill(t *testing.T) {
	l, clock := newTestLimiter(t, Config{Enabled: true, Requests: 10, Window: 10 * time.Second})

	for i := 0; i < 10; i++ {
		require.True(t, l.Allow("a"), "request %d", i+1)
	}
	assert.False(t, l.Allow("a"))

	clock.advance(3 * time.Second)
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("a") {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)
}

func TestMemoryLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Enabled: false, Requests: 1, Window: time.Minute})
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("a"))
	}
}

func TestMemoryLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Enabled: true, Requests: 1, Window: time.Minute})

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	l.Reset("a")
	assert.True(t, l.Allow("a"))
}

func TestMemoryLimiter_RemoveStale(t *testing.T) {
	l, clock := newTestLimiter(t, Config{Enabled: true, Requests: 5, Window: time.Second})

	l.Allow("idle")
	clock.advance(time.Second)
	l.Allow("active")
	clock.advance(1500 * time.Millisecond)

	l.removeStale(2 * time.Second)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.entries, "idle")
	assert.Contains(t, l.entries, "active")
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Enabled: true, Requests: 50, Window: time.Hour})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestStop_Idempotent(t *testing.T) {
	l := NewMemoryLimiter(DefaultConfig()).(*memoryLimiter)
	assert.NotPanics(t, func() {
		l.Stop()
		l.Stop()
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{"remote addr", "192.168.1.1:12345", nil, "192.168.1.1"},
		{"remote addr without port", "192.168.1.1", nil, "192.168.1.1"},
		{"forwarded single", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.195"}, "203.0.113.195"},
		{"forwarded chain", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}, "203.0.113.195"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": " 203.0.113.7 "}, "203.0.113.7"},
		{"forwarded wins", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "203.0.113.195", "X-Real-IP": "70.41.3.18"}, "203.0.113.195"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, GetClientIP(req))
		})
	}
}
