package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
)

const historyColumns = `id, created_at, task, model_id, predicted_class, confidence, counts,
	detection_count, processing_ms, log_file, image_sha256, image_name`

type historyRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new prediction history repository
func NewHistoryRepository(pool *pgxpool.Pool) ports.HistoryRepository {
	return &historyRepo{pool: pool}
}

func (r *historyRepo) Create(ctx context.Context, rec *domain.PredictionRecord) error {
	query := `
		INSERT INTO prediction_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.CreatedAt,
		string(rec.Task),
		rec.ModelID,
		rec.PredictedClass,
		rec.Confidence,
		rec.Counts,
		rec.DetectionCount,
		rec.ProcessingMs,
		rec.LogFile,
		rec.ImageSHA256,
		rec.ImageName,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrRecordExists
		}
		return fmt.Errorf("insert prediction_history: %w", err)
	}
	return nil
}

func (r *historyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PredictionRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM prediction_history WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get prediction_history by id: %w", err)
	}
	return rec, nil
}

func (r *historyRepo) List(ctx context.Context, filter domain.HistoryFilter) ([]*domain.PredictionRecord, int, error) {
	conditions := []string{"TRUE"}
	args := []interface{}{}
	argPos := 1

	if filter.Task != "" {
		conditions = append(conditions, fmt.Sprintf("task = $%d", argPos))
		args = append(args, filter.Task)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	// Count
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM prediction_history WHERE %s`, whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prediction_history: %w", err)
	}

	// Order
	dir := "DESC"
	if filter.Order == "asc" {
		dir = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM prediction_history
		WHERE %s
		ORDER BY created_at %s
		LIMIT $%d OFFSET $%d
	`, historyColumns, whereClause, dir, argPos, argPos+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list prediction_history: %w", err)
	}
	defer rows.Close()

	var records []*domain.PredictionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan prediction_history row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate prediction_history rows: %w", err)
	}

	return records, total, nil
}

func (r *historyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM prediction_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prediction_history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *historyRepo) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{Distribution: []domain.ClassShare{}}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= date_trunc('day', NOW()))
		FROM prediction_history
	`).Scan(&stats.TotalPredictions, &stats.PredictionsToday)
	if err != nil {
		return nil, fmt.Errorf("count prediction_history: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT model_id
		FROM prediction_history
		WHERE model_id <> ''
		GROUP BY model_id
		ORDER BY COUNT(*) DESC, model_id
		LIMIT 1
	`).Scan(&stats.MostUsedModel)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("most used model: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT predicted_class, COUNT(*)
		FROM prediction_history
		WHERE predicted_class <> ''
		GROUP BY predicted_class
		ORDER BY COUNT(*) DESC, predicted_class
	`)
	if err != nil {
		return nil, fmt.Errorf("class distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var share domain.ClassShare
		if err := rows.Scan(&share.Name, &share.Value); err != nil {
			return nil, fmt.Errorf("scan class distribution: %w", err)
		}
		stats.Distribution = append(stats.Distribution, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate class distribution: %w", err)
	}
	stats.UniqueCellTypes = len(stats.Distribution)

	return stats, nil
}

func scanRecord(row pgx.Row) (*domain.PredictionRecord, error) {
	var rec domain.PredictionRecord
	var task string
	var counts []byte

	err := row.Scan(
		&rec.ID, &rec.CreatedAt, &task, &rec.ModelID, &rec.PredictedClass, &rec.Confidence, &counts,
		&rec.DetectionCount, &rec.ProcessingMs, &rec.LogFile, &rec.ImageSHA256, &rec.ImageName,
	)
	if err != nil {
		return nil, err
	}
	rec.Task = domain.Task(task)

	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &rec.Counts); err != nil {
			return nil, fmt.Errorf("decode counts: %w", err)
		}
	}
	return &rec, nil
}
