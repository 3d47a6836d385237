package store

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/clawinfra/clawroute/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "routing.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(tier string, savings float64, ts time.Time) types.RoutingRecord {
	return types.RoutingRecord{
		RequestID:       "req-1",
		Timestamp:       ts,
		OriginalModel:   "anthropic/claude-sonnet-4-5",
		RoutedModel:     "google/gemini-2.5-flash-lite",
		ActualModel:     "google/gemini-2.5-flash-lite",
		Tier:            tier,
		Reason:          "heartbeat phrase",
		Confidence:      0.95,
		InputTokens:     12,
		OutputTokens:    8,
		OriginalCostUSD: 0.01,
		ActualCostUSD:   0.001,
		SavingsUSD:      savings,
		EscalationChain: []string{"google/gemini-2.5-flash-lite"},
		ResponseTimeMs:  120,
	}
}

func TestStore_InsertAndStats(t *testing.T) {
	s := testStore(t)
	now := time.Now()

	if err := s.insert(record("heartbeat", 0.009, now)); err != nil {
		t.Fatal(err)
	}
	rec := record("complex", 0.5, now)
	rec.Escalated = true
	rec.EscalationChain = []string{"a", "b"}
	if err := s.insert(rec); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalRequests != 2 {
		t.Errorf("expected 2 requests, got %d", stats.TotalRequests)
	}
	if math.Abs(stats.TotalSavingsUSD-0.509) > 1e-9 {
		t.Errorf("expected savings 0.509, got %v", stats.TotalSavingsUSD)
	}
	if stats.Escalations != 1 {
		t.Errorf("expected 1 escalation, got %d", stats.Escalations)
	}
	if stats.TotalInputTokens != 24 || stats.TotalOutputTokens != 16 {
		t.Errorf("unexpected token totals: %+v", stats)
	}
	if stats.ByTier["heartbeat"].Requests != 1 || stats.ByTier["complex"].Requests != 1 {
		t.Errorf("unexpected per-tier stats: %+v", stats.ByTier)
	}
	if stats.AvgResponseMs != 120 {
		t.Errorf("expected avg 120ms, got %v", stats.AvgResponseMs)
	}
}

func TestStore_EmitIsDrainedOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(path, logger)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		s.Emit(record("simple", 0.001, time.Now()))
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	stats, err := s2.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalRequests != 10 {
		t.Errorf("expected all emitted records persisted, got %d", stats.TotalRequests)
	}
}

func TestStore_Prune(t *testing.T) {
	s := testStore(t)
	now := time.Now()

	if err := s.insert(record("simple", 0, now.AddDate(0, 0, -10))); err != nil {
		t.Fatal(err)
	}
	if err := s.insert(record("simple", 0, now)); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.Prune(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 pruned record, got %d", deleted)
	}

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalRequests != 1 {
		t.Errorf("expected 1 surviving record, got %d", stats.TotalRequests)
	}
}
