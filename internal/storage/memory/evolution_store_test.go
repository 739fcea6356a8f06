package memory

import (
	"context"
	"errors"
	"testing"

	"evolab/internal/domain"
	"evolab/internal/storage"
)

func testRecord(versionID string, deployedAt int64) *domain.EvolutionRecord {
	return &domain.EvolutionRecord{
		VersionID:          versionID,
		Fingerprint:        "fp-" + versionID,
		Reason:             "regime shift",
		EquityAtDeployment: 10_000,
		DeployedAtMs:       deployedAt,
		CreatedAtMs:        deployedAt,
	}
}

func TestEvolutionStore_InsertAndList(t *testing.T) {
	s := NewEvolutionStore()
	ctx := context.Background()

	if err := s.InsertEvolution(ctx, testRecord("v2", 200)); err != nil {
		t.Fatalf("InsertEvolution failed: %v", err)
	}
	if err := s.InsertEvolution(ctx, testRecord("v1", 100)); err != nil {
		t.Fatalf("InsertEvolution failed: %v", err)
	}

	got, err := s.ListEvolutions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("ListEvolutions returned %d records, want 2", len(got))
	}
	if got[0].VersionID != "v1" || got[1].VersionID != "v2" {
		t.Error("Records not ordered by deployed_at ASC")
	}
	if got[0].FinalPnl != nil {
		t.Error("FinalPnl should be nil before evaluation")
	}
}

func TestEvolutionStore_InsertValidation(t *testing.T) {
	s := NewEvolutionStore()
	ctx := context.Background()

	if err := s.InsertEvolution(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Insert(nil) error = %v, want ErrInvalidInput", err)
	}
	if err := s.InsertEvolution(ctx, &domain.EvolutionRecord{VersionID: "v1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Insert without fingerprint error = %v, want ErrInvalidInput", err)
	}

	rec := testRecord("v1", 100)
	if err := s.InsertEvolution(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertEvolution(ctx, rec); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Duplicate insert error = %v, want ErrDuplicateKey", err)
	}
}

func TestEvolutionStore_MarkEvaluated(t *testing.T) {
	s := NewEvolutionStore()
	ctx := context.Background()

	_ = s.InsertEvolution(ctx, testRecord("v1", 100))
	_ = s.InsertEvolution(ctx, testRecord("v2", 200))

	if err := s.MarkEvaluated(ctx, "v1", -42.5); err != nil {
		t.Fatalf("MarkEvaluated failed: %v", err)
	}

	pending, err := s.GetUnevaluated(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].VersionID != "v2" {
		t.Errorf("GetUnevaluated = %v, want only v2", pending)
	}

	all, _ := s.ListEvolutions(ctx)
	if !all[0].Evaluated || all[0].FinalPnl == nil || *all[0].FinalPnl != -42.5 {
		t.Errorf("Evaluated record not closed correctly: %+v", all[0])
	}

	if err := s.MarkEvaluated(ctx, "v1", 0); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Second MarkEvaluated error = %v, want ErrDuplicateKey", err)
	}
	if err := s.MarkEvaluated(ctx, "missing", 0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("MarkEvaluated(missing) error = %v, want ErrNotFound", err)
	}
}

func TestEvolutionStore_ReturnsCopies(t *testing.T) {
	s := NewEvolutionStore()
	ctx := context.Background()

	_ = s.InsertEvolution(ctx, testRecord("v1", 100))

	got, _ := s.ListEvolutions(ctx)
	got[0].Reason = "mutated"

	again, _ := s.ListEvolutions(ctx)
	if again[0].Reason != "regime shift" {
		t.Error("Store leaked internal record to caller")
	}
}

func TestEvolutionStore_Blacklist(t *testing.T) {
	s := NewEvolutionStore()
	ctx := context.Background()

	entry := &domain.BlacklistEntry{
		Fingerprint: "fp-bad",
		Loss:        -120.5,
		Reason:      "negative live pnl",
		CreatedAtMs: 1000,
	}
	if err := s.InsertBlacklist(ctx, entry); err != nil {
		t.Fatalf("InsertBlacklist failed: %v", err)
	}
	if err := s.InsertBlacklist(ctx, entry); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Duplicate blacklist insert error = %v, want ErrDuplicateKey", err)
	}

	got, err := s.GetBlacklist(ctx, "fp-bad")
	if err != nil {
		t.Fatal(err)
	}
	if got.Loss != -120.5 {
		t.Errorf("Loss = %f, want -120.5", got.Loss)
	}

	if _, err := s.GetBlacklist(ctx, "fp-clean"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetBlacklist(clean) error = %v, want ErrNotFound", err)
	}
}

func TestEvolutionStore_DeleteBlacklistBefore(t *testing.T) {
	s := NewEvolutionStore()
	ctx := context.Background()

	_ = s.InsertBlacklist(ctx, &domain.BlacklistEntry{Fingerprint: "old", CreatedAtMs: 100})
	_ = s.InsertBlacklist(ctx, &domain.BlacklistEntry{Fingerprint: "new", CreatedAtMs: 500})

	removed, err := s.DeleteBlacklistBefore(ctx, 300)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := s.GetBlacklist(ctx, "old"); !errors.Is(err, storage.ErrNotFound) {
		t.Error("Expired entry should be gone")
	}
	if _, err := s.GetBlacklist(ctx, "new"); err != nil {
		t.Error("Fresh entry should survive")
	}
}
