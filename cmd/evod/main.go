// Command evod runs the strategy evolution daemon: equity sampling into
// the guardrail monitor, periodic suggestion intake, the evolution
// pipeline, evaluation-window closing, and the metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"evolab/internal/audit"
	"evolab/internal/backtest"
	"evolab/internal/config"
	"evolab/internal/domain"
	"evolab/internal/guardrail"
	"evolab/internal/memory"
	"evolab/internal/observability"
	"evolab/internal/orchestrator"
	"evolab/internal/risk"
	"evolab/internal/storage"
	chstore "evolab/internal/storage/clickhouse"
	storagemem "evolab/internal/storage/memory"
	"evolab/internal/storage/migrations"
	pgstore "evolab/internal/storage/postgres"
	"evolab/internal/strategy"
	"evolab/internal/stress"
	"evolab/internal/upstream"
	"evolab/internal/upstream/stub"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults used when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	// Evolution ledger backend.
	var evoStore storage.EvolutionStore
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to postgres")
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("apply postgres migrations")
		}
		evoStore = pgstore.NewEvolutionStore(pool)
	default:
		evoStore = storagemem.NewEvolutionStore()
	}

	// Bar cache backend.
	var barStore storage.BarStore = storagemem.NewBarStore()
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to clickhouse")
		}
		defer conn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			log.Fatal().Err(err).Msg("apply clickhouse migrations")
		}
		barStore = chstore.NewBarStore(conn)
	}

	// Upstream collaborators behind circuit breakers and the bar cache.
	suggestions := upstream.NewGuardedSuggestionSource(stub.NewSuggestionSource(), log)
	bars := upstream.NewCachingBarSource(
		upstream.NewGuardedBarSource(stub.NewBarSource(cfg.BarInterval.Std()), log),
		barStore, log,
	)
	equity := stub.NewEquitySource(cfg.Backtest.InitialCapital)

	riskCtx := risk.NewContext()
	guard := guardrail.NewMonitor(guardrail.Config{
		KillSwitchThreshold: cfg.Guardrail.KillSwitchThreshold,
		KillSwitchWindow:    cfg.Guardrail.KillSwitchWindow.Std(),
		StabilityLock:       cfg.Guardrail.StabilityLock.Std(),
	}, log)
	mem := memory.NewService(evoStore, memory.Config{
		EvaluationWindow: cfg.Memory.EvaluationWindow.Std(),
		BlacklistTTL:     cfg.Memory.BlacklistTTL.Std(),
	}, log)
	registry := strategy.NewRegistry()

	orch := orchestrator.New(orchestrator.Options{
		Guard:   guard,
		Memory:  mem,
		Auditor: audit.NewAuditor(nil),
		Backtester: backtest.NewValidator(backtest.Config{
			MinSharpe:      cfg.Backtest.MinSharpe,
			MaxDrawdown:    cfg.Backtest.MaxDrawdown,
			MinBars:        cfg.Backtest.MinBars,
			InitialCapital: cfg.Backtest.InitialCapital,
			FeePct:         cfg.Backtest.FeePct,
		}, log),
		Stresser: stress.NewValidator(stress.Config{
			ShockPct:    cfg.Stress.ShockPct,
			MaxDrawdown: cfg.Stress.MaxDrawdown,
		}, log),
		Registry: registry,
		Risk:     riskCtx,
		Bars:     bars,
		Equity:   equity,
		Symbol:   cfg.Symbol,
		BarLimit: cfg.BarLimit,
		Log:      log,
	})

	deployBaseline(registry, log)

	// Metrics endpoint.
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: observability.Handler()}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint up")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	var wg sync.WaitGroup

	// Equity sampling loop: feeds the kill switch on every tick.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.EquitySampleInterval.Std())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				eq, err := equity.CurrentEquity(ctx)
				if err != nil {
					observability.RecordUpstreamFailure("equity")
					log.Warn().Err(err).Msg("equity sample failed")
					continue
				}
				guard.RecordEquity(time.Now(), eq)
				observability.SetEquity(eq)
				observability.SetKillSwitch(guard.KillSwitchActive())
			}
		}
	}()

	// Suggestion loop: periodic intake from the reasoning collaborator.
	suggestionCh := make(chan *domain.Suggestion, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.SuggestionInterval.Std())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				recent, err := bars.RecentBars(ctx, cfg.Symbol, cfg.BarLimit)
				if err != nil {
					observability.RecordUpstreamFailure("bars")
					log.Warn().Err(err).Msg("no history this cycle")
					continue
				}
				market := &domain.MarketContext{Symbol: cfg.Symbol, Bars: recent}
				sug, err := suggestions.NextSuggestion(ctx, market, riskCtx.Snapshot())
				if err != nil {
					observability.RecordUpstreamFailure("suggestions")
					log.Warn().Err(err).Msg("no suggestion this cycle")
					continue
				}
				select {
				case suggestionCh <- sug:
				default:
					log.Debug().Msg("suggestion dropped, previous one still queued")
				}
			}
		}
	}()

	// Evolution check loop: drives the pipeline and closes evaluation
	// windows.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.EvolutionCheckInterval.Std())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case sug := <-suggestionCh:
					runProposal(ctx, orch, sug, log)
				default:
				}

				if _, err := orch.EvaluatePending(ctx); err != nil {
					log.Warn().Err(err).Msg("evaluation pass failed")
				}
				if _, err := mem.PurgeExpired(ctx); err != nil {
					log.Warn().Err(err).Msg("blacklist purge failed")
				}
				if stats, err := mem.Statistics(ctx); err == nil {
					observability.SetBlacklistSize(stats.Blacklisted)
				}
			}
		}
	}()

	<-ctx.Done()

	// Loops drain their current unit of work before exit.
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	log.Info().Msg("daemon stopped")
}

// runProposal pushes one suggestion through the pipeline. Pre-pipeline
// rejections are routine and logged at info.
func runProposal(ctx context.Context, orch *orchestrator.Orchestrator, sug *domain.Suggestion, log zerolog.Logger) {
	res, err := orch.Propose(ctx, sug)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrStabilityLockActive),
			errors.Is(err, orchestrator.ErrKillSwitchActive),
			errors.Is(err, orchestrator.ErrEvolutionInFlight):
			log.Info().Err(err).Msg("proposal deferred")
		default:
			log.Error().Err(err).Msg("proposal failed")
		}
		return
	}
	log.Info().
		Str("state", string(res.State)).
		Str("version_id", res.VersionID).
		Msg("proposal finished")
}

// deployBaseline activates a conservative starting strategy so the live
// tick has a version to call before the first evolution completes.
func deployBaseline(registry *strategy.Registry, log zerolog.Logger) {
	fast, slow := 10, 30
	stop := 0.02
	cfg := domain.StrategyConfig{
		StrategyType: domain.StrategyTypeSMACross,
		FastPeriod:   &fast,
		SlowPeriod:   &slow,
		StopLossPct:  &stop,
	}
	strat, err := strategy.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build baseline strategy")
	}
	err = registry.Deploy(&strategy.Version{
		VersionID:    "baseline",
		Fingerprint:  "baseline",
		Strategy:     strat,
		DeployedAtMs: time.Now().UnixMilli(),
		Reason:       "initial conservative baseline",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("deploy baseline strategy")
	}
	log.Info().Str("strategy", strat.ID()).Msg("baseline strategy active")
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
