package ports

import (
	"context"

	"github.com/google/uuid"

	"bloodcell-inference-service/internal/core/domain"
)

// HistoryRepository stores prediction records
type HistoryRepository interface {
	Create(ctx context.Context, record *domain.PredictionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PredictionRecord, error)
	List(ctx context.Context, filter domain.HistoryFilter) ([]*domain.PredictionRecord, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*domain.HistoryStats, error)
}
