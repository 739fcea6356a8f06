// Package risk provides the shared risk context read by the orchestrator
// and position-sizing logic, and written by external oracle/sentiment/
// narrative monitors. It is explicitly constructed and injected, never a
// package-level singleton.
package risk

import (
	"sync"
	"time"

	"evolab/internal/domain"
)

// Context is the mutable shared risk state. Readers always observe a fully
// consistent snapshot; writers serialize through an internal mutex.
// The zero value of every field is replaced by its safe default on
// construction, so a snapshot never carries an unset value.
type Context struct {
	mu                  sync.RWMutex
	level               domain.RiskLevel
	sentimentMultiplier float64
	tailRisk            bool
	lastOracleUpdate    time.Time
	lastSentimentUpdate time.Time
}

// NewContext creates a risk context holding safe defaults
// (NORMAL, 1.0, no tail risk).
func NewContext() *Context {
	return &Context{
		level:               domain.RiskLevelNormal,
		sentimentMultiplier: 1.0,
	}
}

// SetRiskLevel sets the global risk level. Unknown levels are coerced to
// NORMAL so an upstream fault can never leave the field invalid.
func (c *Context) SetRiskLevel(level domain.RiskLevel) {
	if level != domain.RiskLevelNormal && level != domain.RiskLevelHigh {
		level = domain.RiskLevelNormal
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = level
	c.lastOracleUpdate = time.Now()
}

// SetSentimentMultiplier sets the sentiment multiplier, clamped to
// [0.5, 1.5].
func (c *Context) SetSentimentMultiplier(m float64) {
	if m < domain.SentimentMultiplierMin {
		m = domain.SentimentMultiplierMin
	}
	if m > domain.SentimentMultiplierMax {
		m = domain.SentimentMultiplierMax
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentimentMultiplier = m
	c.lastSentimentUpdate = time.Now()
}

// SetTailRisk sets the whale/tail-risk flag.
func (c *Context) SetTailRisk(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tailRisk = active
}

// Reset restores every field to its safe default. Called when an upstream
// monitor fails and its last value can no longer be trusted.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.level = domain.RiskLevelNormal
	c.sentimentMultiplier = 1.0
	c.tailRisk = false
}

// Snapshot returns a consistent copy of the current risk state.
func (c *Context) Snapshot() domain.RiskSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.RiskSnapshot{
		Level:               c.level,
		SentimentMultiplier: c.sentimentMultiplier,
		TailRisk:            c.tailRisk,
	}
}
