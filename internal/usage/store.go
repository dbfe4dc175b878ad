// Package usage records token usage and cost for every LLM call Pulse
// makes. Records are append-only and indexed by timestamp and user for
// aggregation queries.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/pulse/internal/config"
	"github.com/nugget/pulse/internal/database"
	"github.com/nugget/pulse/internal/llm"
)

// Record is a single LLM call's token usage and cost.
type Record struct {
	ID           string
	Timestamp    time.Time
	UserID       string // empty for broadcast and system calls
	Model        string
	Provider     string // "groq", "gemini"
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Role         string // "chat", "analysis", "extraction", "media"
	TaskName     string // "evening_reflection", etc. (empty for interactive)
}

// Summary holds aggregated token usage and cost totals.
type Summary struct {
	TotalRecords      int     `json:"total_records"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
}

// Store is an append-only store for usage records on the shared
// database.
type Store struct {
	db *sql.DB
}

// NewStore creates the usage schema on db if needed.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id            TEXT PRIMARY KEY,
		timestamp     TEXT NOT NULL,
		user_id       TEXT,
		model         TEXT NOT NULL,
		provider      TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost_usd      REAL NOT NULL,
		role          TEXT NOT NULL,
		task_name     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists a usage record. Empty IDs and timestamps are filled in.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = database.NewID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records
			(id, timestamp, user_id, model, provider, input_tokens, output_tokens, cost_usd, role, task_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		database.FormatTime(rec.Timestamp),
		rec.UserID,
		rec.Model,
		rec.Provider,
		rec.InputTokens,
		rec.OutputTokens,
		rec.CostUSD,
		rec.Role,
		rec.TaskName,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// Summary returns aggregated totals for records within [start, end).
func (s *Store) Summary(ctx context.Context, start, end time.Time) (*Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		 FROM usage_records
		 WHERE timestamp >= ? AND timestamp < ?`,
		database.FormatTime(start),
		database.FormatTime(end),
	)

	var sum Summary
	if err := row.Scan(&sum.TotalRecords, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalCostUSD); err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	return &sum, nil
}

// SummaryByProvider returns per-provider totals within [start, end).
func (s *Store) SummaryByProvider(ctx context.Context, start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy(ctx, "provider", start, end)
}

// SummaryByModel returns per-model totals within [start, end).
func (s *Store) SummaryByModel(ctx context.Context, start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy(ctx, "model", start, end)
}

// SummaryByRole returns per-role totals within [start, end).
func (s *Store) SummaryByRole(ctx context.Context, start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy(ctx, "role", start, end)
}

func (s *Store) summaryGroupedBy(ctx context.Context, column string, start, end time.Time) (map[string]*Summary, error) {
	// column is always a constant from the methods above.
	query := fmt.Sprintf(
		`SELECT COALESCE(%s, ''), COUNT(*), COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0), COALESCE(SUM(cost_usd), 0)
		 FROM usage_records
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY %s`,
		column, column,
	)

	rows, err := s.db.QueryContext(ctx, query, database.FormatTime(start), database.FormatTime(end))
	if err != nil {
		return nil, fmt.Errorf("query usage by %s: %w", column, err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var key string
		var sum Summary
		if err := rows.Scan(&key, &sum.TotalRecords, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalCostUSD); err != nil {
			return nil, fmt.Errorf("scan usage by %s: %w", column, err)
		}
		result[key] = &sum
	}
	return result, rows.Err()
}

// ComputeCost calculates the USD cost of a call from the pricing table.
// Models not in the table are treated as free.
func ComputeCost(model string, inputTokens, outputTokens int, pricing map[string]config.PricingEntry) float64 {
	entry, ok := pricing[model]
	if !ok {
		return 0
	}
	cost := float64(inputTokens) / 1_000_000.0 * entry.InputPerMillion
	cost += float64(outputTokens) / 1_000_000.0 * entry.OutputPerMillion
	return cost
}

type ctxKey int

const (
	userKey ctxKey = iota
	taskKey
)

// WithUser tags ctx so usage recorded under it is attributed to userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// WithTask tags ctx with a scheduled task name.
func WithTask(ctx context.Context, task string) context.Context {
	return context.WithValue(ctx, taskKey, task)
}

// Recorder returns an llm.UsageFunc that persists every successful
// generation. Failures are logged, never returned.
func (s *Store) Recorder(pricing map[string]config.PricingEntry, logger *slog.Logger) llm.UsageFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, resp *llm.Response, role string) {
		userID, _ := ctx.Value(userKey).(string)
		task, _ := ctx.Value(taskKey).(string)
		rec := Record{
			UserID:       userID,
			Model:        resp.Model,
			Provider:     resp.Provider,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			CostUSD:      ComputeCost(resp.Model, resp.InputTokens, resp.OutputTokens, pricing),
			Role:         role,
			TaskName:     task,
		}
		// Recording must survive a request context that is about to end.
		if err := s.Record(context.WithoutCancel(ctx), rec); err != nil {
			logger.Warn("failed to record usage", "provider", resp.Provider, "error", err)
		}
	}
}
