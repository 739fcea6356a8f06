// Package orchestrator drives the evolution state machine.
// A suggestion moves through blacklist check → audit → backtest → stress
// test, short-circuiting on the first rejection, and on all-pass becomes
// the active version in a single atomic swap.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"evolab/internal/audit"
	"evolab/internal/backtest"
	"evolab/internal/domain"
	"evolab/internal/guardrail"
	"evolab/internal/idhash"
	"evolab/internal/memory"
	"evolab/internal/observability"
	"evolab/internal/risk"
	"evolab/internal/strategy"
	"evolab/internal/stress"
	"evolab/internal/upstream"
)

// State names one position in the per-candidate state machine.
type State string

const (
	StateSuggested         State = "SUGGESTED"
	StateBlacklistChecked  State = "BLACKLIST_CHECKED"
	StateAudited           State = "AUDITED"
	StateBacktested        State = "BACKTESTED"
	StateStressTested      State = "STRESS_TESTED"
	StateDeployed          State = "DEPLOYED"
	StateRejectedBlacklist State = "REJECTED_BLACKLIST"
	StateRejectedAudit     State = "REJECTED_AUDIT"
	StateRejectedBacktest  State = "REJECTED_BACKTEST"
	StateRejectedStress    State = "REJECTED_STRESS"
)

// Pre-pipeline rejection errors. These abort propose() before any
// validator runs; the suggestion may be retried later.
var (
	// ErrEvolutionInFlight means another candidate is mid-pipeline. At
	// most one evolution runs at a time; concurrent proposals are
	// rejected, never interleaved.
	ErrEvolutionInFlight = errors.New("evolution already in flight")

	// ErrStabilityLockActive means the post-deployment stability lock has
	// not yet expired.
	ErrStabilityLockActive = errors.New("stability lock active")

	// ErrKillSwitchActive means deployment is unsafe until the kill
	// switch is manually cleared.
	ErrKillSwitchActive = errors.New("kill switch active")
)

// Result is the terminal verdict of one propose() run.
type Result struct {
	State       State
	VersionID   string
	Fingerprint string
	Diagnostics string
	Backtest    *domain.BacktestResult
	Stress      *stress.Report
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Guard      *guardrail.Monitor
	Memory     *memory.Service
	Auditor    *audit.Auditor
	Backtester *backtest.Validator
	Stresser   *stress.Validator
	Registry   *strategy.Registry
	Risk       *risk.Context
	Bars       upstream.BarSource
	Equity     upstream.EquitySource

	// Symbol and BarLimit shape the history request for the backtest.
	Symbol   string
	BarLimit int

	Log zerolog.Logger
}

// Orchestrator owns the single-flight evolution pipeline.
type Orchestrator struct {
	guard      *guardrail.Monitor
	mem        *memory.Service
	auditor    *audit.Auditor
	backtester *backtest.Validator
	stresser   *stress.Validator
	registry   *strategy.Registry
	risk       *risk.Context
	bars       upstream.BarSource
	equity     upstream.EquitySource

	symbol   string
	barLimit int

	log      zerolog.Logger
	inFlight atomic.Bool
	now      func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.BarLimit <= 0 {
		opts.BarLimit = 500
	}
	return &Orchestrator{
		guard:      opts.Guard,
		mem:        opts.Memory,
		auditor:    opts.Auditor,
		backtester: opts.Backtester,
		stresser:   opts.Stresser,
		registry:   opts.Registry,
		risk:       opts.Risk,
		bars:       opts.Bars,
		equity:     opts.Equity,
		symbol:     opts.Symbol,
		barLimit:   opts.BarLimit,
		log:        opts.Log.With().Str("component", "orchestrator").Logger(),
		now:        time.Now,
	}
}

// Propose runs one suggestion through the full pipeline. Guard predicates
// are evaluated fresh at entry and again immediately before the deploy
// swap; they are never cached across the run. Returns a terminal Result
// for per-candidate verdicts, or a sentinel error when the pipeline could
// not start or the deployment could not be made safe.
func (o *Orchestrator) Propose(ctx context.Context, sug *domain.Suggestion) (*Result, error) {
	if sug == nil || sug.ProposedChanges == "" {
		return nil, fmt.Errorf("empty suggestion")
	}

	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrEvolutionInFlight
	}
	defer o.inFlight.Store(false)

	if err := o.checkGuards(); err != nil {
		observability.Trace(o.log, string(StateSuggested), "rejected", err.Error())
		return nil, err
	}

	observability.RecordProposed()

	candidate := o.buildCandidate(sug)
	log := o.log.With().
		Str("version_id", candidate.VersionID).
		Str("fingerprint", candidate.Fingerprint).
		Logger()
	observability.Trace(log, string(StateSuggested), "accepted", sug.Reason)

	// Blacklist check precedes all validation.
	blacklisted, err := o.mem.IsBlacklisted(ctx, candidate.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("blacklist check: %w", err)
	}
	if blacklisted {
		return o.reject(log, candidate, StateRejectedBlacklist, "fingerprint previously lost money live"), nil
	}
	observability.Trace(log, string(StateBlacklistChecked), "passed", "")

	// Audit.
	cfg, auditRes, err := o.runAudit(candidate)
	if err != nil {
		return o.reject(log, candidate, StateRejectedAudit, auditRes.Diagnostic), nil
	}
	observability.Trace(log, string(StateAudited), "passed", auditRes.Diagnostic)

	strat, err := strategy.FromConfig(cfg)
	if err != nil {
		// The audit dry-built the same config; reaching here means the
		// definition mutated between stages, which cannot happen for an
		// immutable candidate.
		return nil, fmt.Errorf("rebuild audited strategy: %w", err)
	}

	// Backtest against real history.
	bars, err := o.bars.RecentBars(ctx, o.symbol, o.barLimit)
	if err != nil {
		observability.RecordUpstreamFailure("bars")
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	riskSnap := o.risk.Snapshot()
	btResult, err := o.runBacktest(ctx, strat, bars, riskSnap)
	if err != nil && !errors.Is(err, backtest.ErrInsufficientData) {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if !o.backtester.PassesGate(btResult) {
		res := o.reject(log, candidate, StateRejectedBacktest, backtestDiagnostic(btResult))
		res.Backtest = btResult
		return res, nil
	}
	observability.Trace(log, string(StateBacktested), "passed", backtestDiagnostic(btResult))

	// Adversarial stress test.
	market := &domain.MarketContext{Symbol: o.symbol, Bars: bars}
	stressRep, err := o.runStress(ctx, strat, market)
	if err != nil {
		return nil, fmt.Errorf("stress test: %w", err)
	}
	if !stressRep.Approved {
		res := o.reject(log, candidate, StateRejectedStress, fmt.Sprintf("violations: %v", stressRep.Violations))
		res.Backtest = btResult
		res.Stress = stressRep
		return res, nil
	}
	observability.Trace(log, string(StateStressTested), "passed", "")

	// Guards are re-checked fresh at the deploy boundary; validators can
	// run long enough for the world to change underneath them.
	if err := o.checkGuards(); err != nil {
		observability.Trace(log, string(StateStressTested), "rejected", err.Error())
		return nil, err
	}

	if err := o.deploy(ctx, candidate, strat); err != nil {
		return nil, err
	}

	observability.RecordDeployed()
	observability.Trace(log, string(StateDeployed), "deployed", sug.Reason)
	return &Result{
		State:       StateDeployed,
		VersionID:   candidate.VersionID,
		Fingerprint: candidate.Fingerprint,
		Backtest:    btResult,
		Stress:      stressRep,
	}, nil
}

// HandleLiveFault reverts the active version after a live invocation
// fault. This is the only path that changes the active version outside
// the normal evolution cadence.
func (o *Orchestrator) HandleLiveFault(faultErr error) (*strategy.Version, error) {
	restored, err := o.registry.Rollback()
	if err != nil {
		return nil, fmt.Errorf("rollback after live fault: %w", err)
	}

	observability.RecordRollback()
	o.log.Error().
		Err(faultErr).
		Str("restored_version", restored.VersionID).
		Msg("live fault, active version rolled back")
	observability.Trace(o.log, "ROLLBACK", "restored", restored.VersionID)
	return restored, nil
}

// EvaluatePending closes any evaluation windows that have elapsed, using
// current live equity for the PnL verdict.
func (o *Orchestrator) EvaluatePending(ctx context.Context) (int, error) {
	equity, err := o.equity.CurrentEquity(ctx)
	if err != nil {
		observability.RecordUpstreamFailure("equity")
		return 0, fmt.Errorf("fetch equity: %w", err)
	}

	closed, err := o.mem.EvaluateDue(ctx, equity)
	if closed > 0 {
		observability.RecordEvaluationsClosed(closed)
	}
	return closed, err
}

// checkGuards evaluates the two safety predicates fresh.
func (o *Orchestrator) checkGuards() error {
	if o.guard.KillSwitchActive() {
		return ErrKillSwitchActive
	}
	if !o.guard.EvolutionAllowed() {
		return ErrStabilityLockActive
	}
	return nil
}

// buildCandidate mints the immutable candidate for this run. The
// fingerprint prefers canonical parameters; an unparseable definition
// falls back to hashing the raw bytes so blacklist identity stays
// defined for candidates the audit will reject.
func (o *Orchestrator) buildCandidate(sug *domain.Suggestion) *domain.Candidate {
	fingerprint := ""
	var cfg domain.StrategyConfig
	if err := json.Unmarshal([]byte(sug.ProposedChanges), &cfg); err == nil && cfg.StrategyType != "" {
		fingerprint = idhash.ComputeFingerprint(cfg)
	} else {
		fingerprint = idhash.ComputeRawFingerprint(sug.ProposedChanges)
	}

	return &domain.Candidate{
		VersionID:   uuid.NewString(),
		Definition:  sug.ProposedChanges,
		Fingerprint: fingerprint,
		CreatedAtMs: o.now().UnixMilli(),
		Regime:      sug.Regime,
		Reason:      sug.Reason,
	}
}

func (o *Orchestrator) runAudit(candidate *domain.Candidate) (domain.StrategyConfig, audit.Result, error) {
	start := o.now()
	cfg, res, err := o.auditor.Audit(candidate)
	observability.RecordValidatorDuration("audit", o.now().Sub(start).Seconds())
	return cfg, res, err
}

func (o *Orchestrator) runBacktest(ctx context.Context, strat strategy.Strategy, bars []domain.Bar, riskSnap domain.RiskSnapshot) (*domain.BacktestResult, error) {
	start := o.now()
	res, err := o.backtester.Run(ctx, strat, o.symbol, bars, riskSnap)
	observability.RecordValidatorDuration("backtest", o.now().Sub(start).Seconds())
	return res, err
}

func (o *Orchestrator) runStress(ctx context.Context, strat strategy.Strategy, market *domain.MarketContext) (*stress.Report, error) {
	start := o.now()
	rep, err := o.stresser.Run(ctx, strat, market)
	observability.RecordValidatorDuration("stress", o.now().Sub(start).Seconds())
	return rep, err
}

// deploy performs the atomic activation: registry swap, stability lock
// start, ledger entry. The swap is pointer-atomic so the live trading
// tick never observes a partial version.
func (o *Orchestrator) deploy(ctx context.Context, candidate *domain.Candidate, strat strategy.Strategy) error {
	equity, err := o.equity.CurrentEquity(ctx)
	if err != nil {
		observability.RecordUpstreamFailure("equity")
		return fmt.Errorf("fetch equity at deployment: %w", err)
	}

	now := o.now()
	version := &strategy.Version{
		VersionID:    candidate.VersionID,
		Fingerprint:  candidate.Fingerprint,
		Definition:   candidate.Definition,
		Strategy:     strat,
		DeployedAtMs: now.UnixMilli(),
		Reason:       candidate.Reason,
	}
	if err := o.registry.Deploy(version); err != nil {
		return fmt.Errorf("deploy version: %w", err)
	}

	o.guard.RecordDeployment(now)

	if err := o.mem.RecordEvolution(ctx, candidate.VersionID, candidate.Fingerprint, candidate.Reason, equity); err != nil {
		// The version is live but unledgered; surface loudly, the
		// evaluator cannot close a window it never saw.
		o.log.Error().Err(err).Str("version_id", candidate.VersionID).Msg("deployed version missing from ledger")
		return fmt.Errorf("record evolution: %w", err)
	}
	return nil
}

func (o *Orchestrator) reject(log zerolog.Logger, candidate *domain.Candidate, state State, diagnostic string) *Result {
	observability.RecordRejected(string(state))
	observability.Trace(log, string(state), "rejected", diagnostic)
	return &Result{
		State:       state,
		VersionID:   candidate.VersionID,
		Fingerprint: candidate.Fingerprint,
		Diagnostics: diagnostic,
	}
}

func backtestDiagnostic(res *domain.BacktestResult) string {
	if res == nil {
		return "no result"
	}
	if res.Insufficient {
		return "insufficient historical data"
	}
	return fmt.Sprintf("sharpe=%.3f max_drawdown=%.4f trades=%d", res.SharpeRatio, res.MaxDrawdown, res.TradeCount)
}
