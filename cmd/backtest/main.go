// Command backtest audits, backtests, and stress-tests one candidate
// definition against historical bars, printing the gate decision without
// touching any live state.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"evolab/internal/audit"
	"evolab/internal/backtest"
	"evolab/internal/config"
	"evolab/internal/domain"
	"evolab/internal/idhash"
	"evolab/internal/risk"
	"evolab/internal/strategy"
	"evolab/internal/stress"
	"evolab/internal/upstream/stub"
)

// verdict is the CLI's printable outcome.
type verdict struct {
	Fingerprint string                 `json:"fingerprint"`
	AuditPassed bool                   `json:"audit_passed"`
	AuditError  string                 `json:"audit_error,omitempty"`
	Backtest    *domain.BacktestResult `json:"backtest,omitempty"`
	GatePassed  bool                   `json:"gate_passed"`
	Stress      *stress.Report         `json:"stress,omitempty"`
	Deployable  bool                   `json:"deployable"`
}

func main() {
	definitionPath := flag.String("definition", "", "Path to candidate definition JSON (required)")
	configPath := flag.String("config", "", "Path to YAML config (defaults used when empty)")
	barsPath := flag.String("bars", "", "Path to bars CSV (timestamp_ms,open,high,low,close,volume); synthetic bars used when empty")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if *definitionPath == "" {
		log.Fatal().Msg("--definition is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	definition, err := os.ReadFile(*definitionPath)
	if err != nil {
		log.Fatal().Err(err).Msg("read definition")
	}

	bars, err := loadBars(*barsPath, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load bars")
	}

	ctx := context.Background()
	v := run(ctx, cfg, string(definition), bars, log)

	if *outputJSON {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("encode verdict")
		}
		fmt.Println(string(out))
	} else {
		printVerdict(v)
	}

	if !v.Deployable {
		os.Exit(1)
	}
}

// run executes the three validation stages in pipeline order.
func run(ctx context.Context, cfg config.Config, definition string, bars []domain.Bar, log zerolog.Logger) *verdict {
	v := &verdict{}

	auditor := audit.NewAuditor(nil)
	candidate := &domain.Candidate{Definition: definition}
	parsed, _, err := auditor.Audit(candidate)
	if err != nil {
		v.Fingerprint = idhash.ComputeRawFingerprint(definition)
		v.AuditError = err.Error()
		return v
	}
	v.AuditPassed = true
	v.Fingerprint = idhash.ComputeFingerprint(parsed)

	strat, err := strategy.FromConfig(parsed)
	if err != nil {
		v.AuditPassed = false
		v.AuditError = err.Error()
		return v
	}

	riskSnap := risk.NewContext().Snapshot()

	validator := backtest.NewValidator(backtest.Config{
		MinSharpe:      cfg.Backtest.MinSharpe,
		MaxDrawdown:    cfg.Backtest.MaxDrawdown,
		MinBars:        cfg.Backtest.MinBars,
		InitialCapital: cfg.Backtest.InitialCapital,
		FeePct:         cfg.Backtest.FeePct,
	}, log)
	result, err := validator.Run(ctx, strat, cfg.Symbol, bars, riskSnap)
	if err != nil {
		log.Warn().Err(err).Msg("backtest did not complete")
	}
	v.Backtest = result
	v.GatePassed = validator.PassesGate(result)
	if !v.GatePassed {
		return v
	}

	stresser := stress.NewValidator(stress.Config{
		ShockPct:    cfg.Stress.ShockPct,
		MaxDrawdown: cfg.Stress.MaxDrawdown,
	}, log)
	rep, err := stresser.Run(ctx, strat, &domain.MarketContext{Symbol: cfg.Symbol, Bars: bars})
	if err != nil {
		log.Fatal().Err(err).Msg("stress test failed to run")
	}
	v.Stress = rep
	v.Deployable = rep.Approved
	return v
}

// loadBars reads a CSV bar file, or synthesizes history when no file is
// given.
func loadBars(path string, cfg config.Config) ([]domain.Bar, error) {
	if path == "" {
		source := stub.NewBarSource(cfg.BarInterval.Std())
		return source.RecentBars(context.Background(), cfg.Symbol, cfg.BarLimit)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse bars csv: %w", err)
	}

	var bars []domain.Bar
	for i, rec := range records {
		if len(rec) != 6 {
			return nil, fmt.Errorf("row %d: expected 6 columns, got %d", i+1, len(rec))
		}
		// Skip a header row.
		if i == 0 {
			if _, err := strconv.ParseInt(rec[0], 10, 64); err != nil {
				continue
			}
		}
		bar, err := parseBar(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBar(rec []string) (domain.Bar, error) {
	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("timestamp: %w", err)
	}
	fields := make([]float64, 5)
	for i, raw := range rec[1:] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("column %d: %w", i+2, err)
		}
		fields[i] = v
	}
	return domain.Bar{
		TimestampMs: ts,
		Open:        fields[0],
		High:        fields[1],
		Low:         fields[2],
		Close:       fields[3],
		Volume:      fields[4],
	}, nil
}

func printVerdict(v *verdict) {
	fmt.Printf("fingerprint: %s\n", v.Fingerprint)
	if !v.AuditPassed {
		fmt.Printf("audit:       FAIL (%s)\n", v.AuditError)
		fmt.Println("deployable:  no")
		return
	}
	fmt.Println("audit:       pass")

	if v.Backtest != nil {
		fmt.Printf("backtest:    sharpe=%.3f max_drawdown=%.4f total_return=%.4f trades=%d\n",
			v.Backtest.SharpeRatio, v.Backtest.MaxDrawdown, v.Backtest.TotalReturn, v.Backtest.TradeCount)
	}
	if !v.GatePassed {
		fmt.Println("gate:        FAIL")
		fmt.Println("deployable:  no")
		return
	}
	fmt.Println("gate:        pass")

	if v.Stress != nil {
		if v.Stress.Approved {
			fmt.Printf("stress:      pass (simulated loss %.4f)\n", v.Stress.SimulatedLoss)
		} else {
			fmt.Printf("stress:      FAIL %v\n", v.Stress.Violations)
		}
	}
	if v.Deployable {
		fmt.Println("deployable:  yes")
	} else {
		fmt.Println("deployable:  no")
	}
}
