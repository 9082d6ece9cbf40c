// Package ratelimit paces calls to the external registries, one token bucket
// per host.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter hands out tokens per key using golang.org/x/time/rate
type Limiter struct {
	mu       sync.Mutex
	config   Config
	limiters map[string]*rate.Limiter
}

// NewLocalLimiter creates a keyed limiter. A disabled config yields a limiter
// that never blocks.
func NewLocalLimiter(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{
		config:   config,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// WaitForKey blocks until a request for key may proceed or ctx is done
func (l *Limiter) WaitForKey(ctx context.Context, key string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}
	return l.forKey(key).Wait(ctx)
}

// TryAcquireForKey takes a token for key without blocking
func (l *Limiter) TryAcquireForKey(key string) bool {
	if l == nil || !l.config.Enabled {
		return true
	}
	return l.forKey(key).Allow()
}

func (l *Limiter) forKey(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstSize)
		l.limiters[key] = lim
	}
	return lim
}
