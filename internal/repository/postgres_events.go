// Package repository persists generation events to PostgreSQL. It is an
// optional durable sink behind the same analytics.Sink interface as the
// HTTP and SQS backends; there is no read path in the proxy itself.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mbenaiss/InsightRun/internal/domain"
)

type PostgresEventRepository struct {
	db *sql.DB
}

func NewPostgres(databaseURL string) (*PostgresEventRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresEventRepository{db: db}, nil
}

func NewPostgresWithDB(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) Capture(ctx context.Context, ev domain.GenerationEvent) error {
	query := `
		INSERT INTO generation_events (distinct_id, trace_id, model, input, output, prompt_tokens, completion_tokens, total_tokens, latency_seconds, cost_usd, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		ev.DistinctID,
		ev.TraceID,
		ev.Model,
		ev.Input,
		ev.Output,
		ev.PromptTokens,
		ev.CompletionTokens,
		ev.TotalTokens,
		ev.LatencySeconds,
		ev.CostUSD,
		ev.IP,
		ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert generation event: %w", err)
	}

	return nil
}

func (r *PostgresEventRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresEventRepository) Close() error {
	return r.db.Close()
}
