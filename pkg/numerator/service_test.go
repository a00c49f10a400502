package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	core "stockcore/internal/core/numerator"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64 // Simulates DB sequence value
	lastIncr     int64 // Track last increment passed
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Strict passes (key); cached passes (key, increment).
	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	m.lastIncr = increment

	return &mockRow{val: m.currentValue}
}

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.DefaultConfig("TEST")

	year := time.Now().Format("2006")

	num, err := svc.GetNextNumber(ctx, cfg, nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TEST-"+year+"-00001" {
		t.Errorf("expected TEST-%s-00001, got %s", year, num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TEST-"+year+"-00002" {
		t.Errorf("expected TEST-%s-00002, got %s", year, num)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.DefaultConfig("TR")
	opts := &core.Options{Strategy: core.StrategyCached, RangeSize: 10}

	year := time.Now().Format("2006")

	// First call reserves a range of 10 in one round trip.
	num, err := svc.GetNextNumber(ctx, cfg, opts, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TR-"+year+"-00001" {
		t.Errorf("expected TR-%s-00001, got %s", year, num)
	}
	if q.lastIncr != 10 {
		t.Errorf("expected range reservation of 10, got %d", q.lastIncr)
	}

	// Subsequent calls are served from memory.
	for i := 2; i <= 10; i++ {
		if _, err := svc.GetNextNumber(ctx, cfg, opts, time.Now()); err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
	}
	if q.currentValue != 10 {
		t.Errorf("expected single DB range reservation, current=%d", q.currentValue)
	}

	// 11th call reserves the next range.
	num, err = svc.GetNextNumber(ctx, cfg, opts, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TR-"+year+"-00011" {
		t.Errorf("expected TR-%s-00011, got %s", year, num)
	}
}

func TestBuildKey_ResetPeriods(t *testing.T) {
	period := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		reset string
		want  string
	}{
		{"year", "AD_2026"},
		{"month", "AD_2026_03"},
		{"never", "AD"},
	}

	for _, tt := range tests {
		cfg := core.Config{Prefix: "AD", ResetPeriod: tt.reset}
		if got := buildKey(cfg, period); got != tt.want {
			t.Errorf("reset %q: expected %q, got %q", tt.reset, tt.want, got)
		}
	}
}
