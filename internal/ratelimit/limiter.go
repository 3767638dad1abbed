// Package ratelimit throttles MCP tool calls with per-tool token buckets.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is matched by every error returned from Tools.Check.
var ErrLimited = errors.New("rate limit exceeded")

// Rule is a refill rate in calls per second and a burst size. The burst is
// also the number of calls available up front.
type Rule struct {
	Rate  float64
	Burst int
}

// PerMinute builds a Rule from a calls-per-minute figure.
func PerMinute(n float64, burst int) Rule {
	return Rule{Rate: n / 60, Burst: burst}
}

// Limiter is a single token bucket. Safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	rule   Rule
	tokens float64
	last   time.Time
	clock  func() time.Time
}

// NewLimiter returns a full bucket for rule.
func NewLimiter(rule Rule) *Limiter {
	return &Limiter{
		rule:   rule,
		tokens: float64(rule.Burst),
		clock:  time.Now,
	}
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if !l.last.IsZero() {
		if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
			l.tokens = min(l.tokens+l.rule.Rate*elapsed, float64(l.rule.Burst))
		}
	}
	l.last = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Tools maps tool names to their buckets. Tools without an entry are not
// limited.
type Tools map[string]*Limiter

// DefaultTools returns the limits used by the MCP server. Runs launch the
// engine, so they get the tightest bucket.
func DefaultTools() Tools {
	return Tools{
		"octorun_render":  NewLimiter(PerMinute(120, 20)),
		"octorun_parse":   NewLimiter(PerMinute(60, 10)),
		"octorun_history": NewLimiter(PerMinute(60, 10)),
		"octorun_run":     NewLimiter(PerMinute(6, 1)),
	}
}

// Check returns an error wrapping ErrLimited when tool has no tokens left.
func (t Tools) Check(tool string) error {
	l, ok := t[tool]
	if !ok {
		return nil
	}
	if !l.Allow() {
		return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, tool)
	}
	return nil
}
