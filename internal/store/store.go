// Package store is the durable metrics sink: an append-only SQLite log of
// routing decisions, with aggregation queries for the stats surface and
// scheduled retention pruning.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clawinfra/clawroute/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS routing_log (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id        TEXT NOT NULL,
	created_at        DATETIME NOT NULL,
	original_model    TEXT NOT NULL,
	routed_model      TEXT NOT NULL,
	actual_model      TEXT NOT NULL,
	tier              TEXT NOT NULL,
	reason            TEXT NOT NULL,
	confidence        REAL NOT NULL,
	input_tokens      INTEGER NOT NULL,
	output_tokens     INTEGER NOT NULL,
	original_cost_usd REAL NOT NULL,
	actual_cost_usd   REAL NOT NULL,
	savings_usd       REAL NOT NULL,
	escalated         INTEGER NOT NULL,
	escalation_chain  TEXT NOT NULL,
	response_time_ms  INTEGER NOT NULL,
	had_tool_calls    INTEGER NOT NULL,
	is_dry_run        INTEGER NOT NULL,
	is_override       INTEGER NOT NULL,
	is_passthrough    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_routing_log_time ON routing_log(created_at);
CREATE INDEX IF NOT EXISTS idx_routing_log_tier ON routing_log(tier);
`

const emitBuffer = 256

// Store writes routing records from a background goroutine so emission never
// blocks a response.
type Store struct {
	db      *sql.DB
	records chan types.RoutingRecord
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// Open opens (or creates) the routing log database and starts the writer.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open routing log db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure routing log db: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate routing log db: %w", err)
	}

	s := &Store{
		db:      db,
		records: make(chan types.RoutingRecord, emitBuffer),
		done:    make(chan struct{}),
		logger:  logger,
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

// Emit queues a record for the background writer. When the buffer is full
// the record is dropped rather than blocking the response path.
func (s *Store) Emit(rec types.RoutingRecord) {
	select {
	case s.records <- rec:
	default:
		s.logger.Warn("routing log buffer full, dropping record", "request_id", rec.RequestID)
	}
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case rec := <-s.records:
			if err := s.insert(rec); err != nil {
				s.logger.Error("failed to write routing record", "error", err, "request_id", rec.RequestID)
			}
		case <-s.done:
			// Drain whatever is queued before shutting down.
			for {
				select {
				case rec := <-s.records:
					if err := s.insert(rec); err != nil {
						s.logger.Error("failed to write routing record", "error", err, "request_id", rec.RequestID)
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Store) insert(rec types.RoutingRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO routing_log (
			request_id, created_at, original_model, routed_model, actual_model,
			tier, reason, confidence, input_tokens, output_tokens,
			original_cost_usd, actual_cost_usd, savings_usd,
			escalated, escalation_chain, response_time_ms,
			had_tool_calls, is_dry_run, is_override, is_passthrough
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Timestamp.UTC(), rec.OriginalModel, rec.RoutedModel, rec.ActualModel,
		rec.Tier, rec.Reason, rec.Confidence, rec.InputTokens, rec.OutputTokens,
		rec.OriginalCostUSD, rec.ActualCostUSD, rec.SavingsUSD,
		boolInt(rec.Escalated), strings.Join(rec.EscalationChain, ","), rec.ResponseTimeMs,
		boolInt(rec.HadToolCalls), boolInt(rec.IsDryRun), boolInt(rec.IsOverride), boolInt(rec.IsPassthrough),
	)
	return err
}

// TierStats is the per-tier slice of the aggregate view.
type TierStats struct {
	Requests   int64   `json:"requests"`
	SavingsUSD float64 `json:"savings_usd"`
}

// Stats is the aggregate view backing GET /stats.
type Stats struct {
	TotalRequests     int64                `json:"total_requests"`
	TotalSavingsUSD   float64              `json:"total_savings_usd"`
	TotalInputTokens  int64                `json:"total_input_tokens"`
	TotalOutputTokens int64                `json:"total_output_tokens"`
	Escalations       int64                `json:"escalations"`
	AvgResponseMs     float64              `json:"avg_response_ms"`
	ByTier            map[string]TierStats `json:"by_tier"`
}

// Stats aggregates the routing log.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	out := Stats{ByTier: make(map[string]TierStats)}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(savings_usd), 0),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(escalated), 0),
		       COALESCE(AVG(response_time_ms), 0)
		FROM routing_log`,
	).Scan(&out.TotalRequests, &out.TotalSavingsUSD, &out.TotalInputTokens,
		&out.TotalOutputTokens, &out.Escalations, &out.AvgResponseMs)
	if err != nil {
		return out, fmt.Errorf("aggregate routing log: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tier, COUNT(*), COALESCE(SUM(savings_usd), 0)
		FROM routing_log GROUP BY tier`)
	if err != nil {
		return out, fmt.Errorf("aggregate by tier: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tier string
		var ts TierStats
		if err := rows.Scan(&tier, &ts.Requests, &ts.SavingsUSD); err != nil {
			return out, err
		}
		out.ByTier[tier] = ts
	}
	return out, rows.Err()
}

// Prune deletes records older than retentionDays. Returns rows deleted.
func (s *Store) Prune(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	result, err := s.db.ExecContext(ctx, `DELETE FROM routing_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune routing log: %w", err)
	}
	return result.RowsAffected()
}

// Close stops the writer, drains the queue, and closes the database.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
