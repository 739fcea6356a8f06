package memory

import (
	"context"
	"errors"
	"testing"

	"evolab/internal/domain"
	"evolab/internal/storage"
)

func testBars(timestamps ...int64) []domain.Bar {
	bars := make([]domain.Bar, len(timestamps))
	for i, ts := range timestamps {
		bars[i] = domain.Bar{TimestampMs: ts, Open: 100, High: 101, Low: 99, Close: 100, Volume: 10}
	}
	return bars
}

func TestBarStore_InsertAndGet(t *testing.T) {
	s := NewBarStore()
	ctx := context.Background()

	if err := s.InsertBars(ctx, "BTC_USDT", testBars(300, 100, 200)); err != nil {
		t.Fatalf("InsertBars failed: %v", err)
	}

	got, err := s.GetBars(ctx, "BTC_USDT")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("GetBars returned %d bars, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].TimestampMs <= got[i-1].TimestampMs {
			t.Fatal("Bars not ordered by timestamp ASC")
		}
	}

	other, _ := s.GetBars(ctx, "ETH_USDT")
	if len(other) != 0 {
		t.Error("Unknown symbol should return no bars")
	}
}

func TestBarStore_DuplicateBatchRejected(t *testing.T) {
	s := NewBarStore()
	ctx := context.Background()

	_ = s.InsertBars(ctx, "BTC_USDT", testBars(100))

	if err := s.InsertBars(ctx, "BTC_USDT", testBars(200, 100)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("InsertBars error = %v, want ErrDuplicateKey", err)
	}

	// Failed batch must not be partially applied.
	got, _ := s.GetBars(ctx, "BTC_USDT")
	if len(got) != 1 {
		t.Errorf("Store holds %d bars after failed batch, want 1", len(got))
	}

	if err := s.InsertBars(ctx, "ETH_USDT", testBars(100, 100)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Intra-batch duplicate error = %v, want ErrDuplicateKey", err)
	}
}

func TestBarStore_GetByTimeRange(t *testing.T) {
	s := NewBarStore()
	ctx := context.Background()

	_ = s.InsertBars(ctx, "BTC_USDT", testBars(100, 200, 300, 400))

	got, err := s.GetByTimeRange(ctx, "BTC_USDT", 200, 300)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].TimestampMs != 200 || got[1].TimestampMs != 300 {
		t.Errorf("GetByTimeRange = %v, want bars at 200 and 300 inclusive", got)
	}
}

func TestBarStore_InvalidInput(t *testing.T) {
	s := NewBarStore()
	ctx := context.Background()

	if err := s.InsertBars(ctx, "", testBars(100)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("InsertBars with empty symbol error = %v, want ErrInvalidInput", err)
	}
	if err := s.InsertBars(ctx, "BTC_USDT", nil); err != nil {
		t.Errorf("Empty batch should be a no-op, got %v", err)
	}
}
