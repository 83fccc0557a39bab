package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// memoryLimiter keeps one token bucket per key.
type memoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  Config
	limit   rate.Limit
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ Stoppable = (*memoryLimiter)(nil)

// NewMemoryLimiter creates an in-process limiter. Keys idle for two windows
// are forgotten by a background sweep until Stop is called.
func NewMemoryLimiter(cfg Config) Limiter {
	l := &memoryLimiter{
		entries: make(map[string]*entry),
		config:  cfg,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if cfg.Requests > 0 && cfg.Window > 0 {
		l.limit = rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds())
		go l.sweep(cfg.Window * 2)
	}
	return l
}

func (l *memoryLimiter) Allow(key string) bool {
	if !l.config.Enabled || l.limit == 0 {
		return true
	}

	l.mu.Lock()
	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.config.Requests)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (l *memoryLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

func (l *memoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *memoryLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.removeStale(every)
		case <-l.stopCh:
			return
		}
	}
}

// removeStale drops keys not seen for idle.
func (l *memoryLimiter) removeStale(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) > idle {
			delete(l.entries, key)
		}
	}
}
