package audit

import (
	"errors"
	"testing"

	"evolab/internal/domain"
)

func validDefinition() string {
	return `{"strategy_type":"SMA_CROSS","fast_period":5,"slow_period":20,"stop_loss_pct":0.02}`
}

func TestAuditSyntax_Valid(t *testing.T) {
	a := NewAuditor(nil)

	cfg, err := a.AuditSyntax(validDefinition())
	if err != nil {
		t.Fatalf("AuditSyntax failed: %v", err)
	}
	if cfg.StrategyType != domain.StrategyTypeSMACross {
		t.Errorf("StrategyType = %s", cfg.StrategyType)
	}
	if cfg.FastPeriod == nil || *cfg.FastPeriod != 5 {
		t.Error("fast_period not parsed")
	}
}

func TestAuditSyntax_Malformed(t *testing.T) {
	a := NewAuditor(nil)

	cases := []string{
		`{"strategy_type":`,
		`not json at all`,
		``,
		`{"fast_period":5}`, // missing strategy_type
		`{"strategy_type":"SMA_CROSS","unknown_field":1}`,
	}
	for _, def := range cases {
		if _, err := a.AuditSyntax(def); !errors.Is(err, ErrSyntaxInvalid) {
			t.Errorf("AuditSyntax(%q) error = %v, want ErrSyntaxInvalid", def, err)
		}
	}
}

func TestAuditSyntax_Idempotent(t *testing.T) {
	a := NewAuditor(nil)

	cfg1, err1 := a.AuditSyntax(validDefinition())
	cfg2, err2 := a.AuditSyntax(validDefinition())

	if (err1 == nil) != (err2 == nil) {
		t.Fatalf("Audit results differ: %v vs %v", err1, err2)
	}
	if *cfg1.FastPeriod != *cfg2.FastPeriod || cfg1.StrategyType != cfg2.StrategyType {
		t.Error("Repeated audit produced different configs")
	}
}

func TestAuditLogic_Complete(t *testing.T) {
	a := NewAuditor(nil)

	cfg, err := a.AuditSyntax(validDefinition())
	if err != nil {
		t.Fatal(err)
	}
	if err := a.AuditLogic(cfg); err != nil {
		t.Errorf("AuditLogic failed on complete definition: %v", err)
	}
}

func TestAuditLogic_MissingEntryPointParams(t *testing.T) {
	a := NewAuditor(nil)

	cfg := domain.StrategyConfig{StrategyType: domain.StrategyTypeSMACross}
	if err := a.AuditLogic(cfg); !errors.Is(err, ErrLogicIncomplete) {
		t.Errorf("AuditLogic error = %v, want ErrLogicIncomplete", err)
	}

	cfg = domain.StrategyConfig{StrategyType: "UNKNOWN"}
	if err := a.AuditLogic(cfg); !errors.Is(err, ErrLogicIncomplete) {
		t.Errorf("AuditLogic error = %v, want ErrLogicIncomplete", err)
	}
}

func TestAudit_SkipsLogicOnSyntaxFailure(t *testing.T) {
	a := NewAuditor(nil)

	_, res, err := a.Audit(&domain.Candidate{Definition: `{"broken`})
	if !errors.Is(err, ErrSyntaxInvalid) {
		t.Fatalf("Audit error = %v, want ErrSyntaxInvalid", err)
	}
	if res.OK {
		t.Error("Result.OK true on syntax failure")
	}
	if res.Diagnostic == "" {
		t.Error("Diagnostic should describe the failure")
	}
}

func TestAudit_Pass(t *testing.T) {
	a := NewAuditor(nil)

	cfg, res, err := a.Audit(&domain.Candidate{Definition: validDefinition()})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if !res.OK {
		t.Error("Result.OK false on valid candidate")
	}
	if cfg.SlowPeriod == nil || *cfg.SlowPeriod != 20 {
		t.Error("Parsed config not returned")
	}
}
