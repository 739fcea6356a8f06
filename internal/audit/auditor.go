// Package audit rejects structurally broken candidates before expensive
// validation. The syntax audit parses the candidate's JSON definition; the
// logic audit builds the strategy and dry-invokes its decision entry point
// against a representative market context.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"evolab/internal/domain"
	"evolab/internal/strategy"
)

// Audit errors
var (
	// ErrSyntaxInvalid means the definition could not be parsed into an
	// executable form.
	ErrSyntaxInvalid = errors.New("syntax invalid")

	// ErrLogicIncomplete means the parsed form is missing a required
	// entry point or parameter.
	ErrLogicIncomplete = errors.New("logic incomplete")

	// ErrRuntimeFault means an entry point raised during dry invocation.
	ErrRuntimeFault = errors.New("runtime fault")
)

// Result carries the audit verdict plus a diagnostic for the trace sink.
type Result struct {
	OK         bool
	Diagnostic string
}

// Auditor validates candidate definitions. It holds a representative
// market context used for dry invocations; the same probe input is used
// for every candidate so repeated audits of one candidate are idempotent.
type Auditor struct {
	probe *domain.MarketContext
}

// NewAuditor creates an Auditor with the given probe context. The probe
// should carry enough bars for any supported indicator warmup; nil falls
// back to a built-in synthetic probe.
func NewAuditor(probe *domain.MarketContext) *Auditor {
	if probe == nil {
		probe = defaultProbe()
	}
	return &Auditor{probe: probe}
}

// AuditSyntax parses the definition into a strategy config. Fails with
// ErrSyntaxInvalid if the document is not well-formed.
func (a *Auditor) AuditSyntax(definition string) (domain.StrategyConfig, error) {
	var cfg domain.StrategyConfig

	dec := json.NewDecoder(strings.NewReader(definition))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return domain.StrategyConfig{}, fmt.Errorf("%w: %v", ErrSyntaxInvalid, err)
	}
	if cfg.StrategyType == "" {
		return domain.StrategyConfig{}, fmt.Errorf("%w: missing strategy_type", ErrSyntaxInvalid)
	}
	return cfg, nil
}

// AuditLogic verifies the parsed form exposes the required entry points
// and that the decision entry point is invocable without raising. Fails
// with ErrLogicIncomplete (missing entry point or parameter) or
// ErrRuntimeFault (entry point raised during dry invocation).
func (a *Auditor) AuditLogic(cfg domain.StrategyConfig) error {
	s, err := strategy.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogicIncomplete, err)
	}

	decision, err := a.dryInvoke(s)
	if err != nil {
		return err
	}
	if !decision.Valid() {
		return fmt.Errorf("%w: entry point returned invalid decision %+v", ErrRuntimeFault, decision)
	}
	return nil
}

// Audit runs both checks in sequence; the logic audit is skipped when the
// syntax audit fails. Returns the parsed config on success so callers
// never parse twice. No side effects.
func (a *Auditor) Audit(candidate *domain.Candidate) (domain.StrategyConfig, Result, error) {
	cfg, err := a.AuditSyntax(candidate.Definition)
	if err != nil {
		return domain.StrategyConfig{}, Result{Diagnostic: err.Error()}, err
	}

	if err := a.AuditLogic(cfg); err != nil {
		return cfg, Result{Diagnostic: err.Error()}, err
	}

	return cfg, Result{OK: true, Diagnostic: "audit passed"}, nil
}

// dryInvoke calls the strategy's decision entry point with the probe
// input, converting a panic into ErrRuntimeFault.
func (a *Auditor) dryInvoke(s strategy.Strategy) (decision *domain.Decision, err error) {
	defer func() {
		if r := recover(); r != nil {
			decision = nil
			err = fmt.Errorf("%w: entry point panicked: %v", ErrRuntimeFault, r)
		}
	}()

	decision, err = s.Decide(context.Background(), a.probe, domain.RiskSnapshot{
		Level:               domain.RiskLevelNormal,
		SentimentMultiplier: 1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeFault, err)
	}
	return decision, nil
}

// defaultProbe builds a 64-bar synthetic series with mild movement, long
// enough for the supported indicator warmups.
func defaultProbe() *domain.MarketContext {
	bars := make([]domain.Bar, 64)
	price := 100.0
	for i := range bars {
		if i%2 == 0 {
			price *= 1.004
		} else {
			price *= 0.997
		}
		bars[i] = domain.Bar{
			TimestampMs: int64(i) * 15 * 60 * 1000,
			Open:        price,
			High:        price * 1.002,
			Low:         price * 0.998,
			Close:       price,
			Volume:      100,
		}
	}
	return &domain.MarketContext{Symbol: "PROBE", Bars: bars}
}
