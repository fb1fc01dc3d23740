package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the history tables if they don't exist
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS prediction_history (
			id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			task TEXT NOT NULL,
			model_id TEXT NOT NULL DEFAULT '',
			predicted_class TEXT NOT NULL DEFAULT '',
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			counts JSONB,
			detection_count INT NOT NULL DEFAULT 0,
			processing_ms BIGINT NOT NULL DEFAULT 0,
			log_file TEXT NOT NULL DEFAULT '',
			image_sha256 TEXT NOT NULL DEFAULT '',
			image_name TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS prediction_history_created_at_idx ON prediction_history (created_at DESC);
		CREATE INDEX IF NOT EXISTS prediction_history_task_idx ON prediction_history (task);
	`
	if _, err := pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return nil
}
