// Package ratelimit paces browser actions, one token bucket per tab.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines the pacing configuration.
type Config struct {
	StepsPerSecond float64 // Zero or negative disables pacing
	Burst          int     // Steps allowed back to back before pacing kicks in
}

// DefaultConfig leaves steps unpaced.
var DefaultConfig = Config{
	StepsPerSecond: 0,
	Burst:          1,
}

// Pacer hands out a limiter per key (a tab) so that slowing one tab down
// for a demo does not delay the bookkeeping of another.
type Pacer struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	config   Config
}

// NewPacer creates a pacer with the given configuration.
func NewPacer(config Config) *Pacer {
	if config.Burst < 1 {
		config.Burst = 1
	}
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}
}

// Enabled reports whether steps are actually slowed down.
func (p *Pacer) Enabled() bool {
	return p.config.StepsPerSecond > 0
}

// GetLimiter returns the limiter for key, creating one if necessary.
func (p *Pacer) GetLimiter(key string) *rate.Limiter {
	p.mu.RLock()
	l, ok := p.limiters[key]
	p.mu.RUnlock()
	if ok {
		return l
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok = p.limiters[key]; ok {
		return l
	}
	limit := rate.Inf
	if p.Enabled() {
		limit = rate.Limit(p.config.StepsPerSecond)
	}
	l = rate.NewLimiter(limit, p.config.Burst)
	p.limiters[key] = l
	return l
}

// Wait blocks until the next step for key may run or ctx is done.
func (p *Pacer) Wait(ctx context.Context, key string) error {
	if !p.Enabled() {
		return ctx.Err()
	}
	return p.GetLimiter(key).Wait(ctx)
}

// Forget drops the limiter for key, typically when its tab closes.
func (p *Pacer) Forget(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.limiters, key)
}

// Len returns the number of tracked keys.
func (p *Pacer) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.limiters)
}
