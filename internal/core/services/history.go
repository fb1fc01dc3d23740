package services

import (
	"context"

	"github.com/google/uuid"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryService reads stored predictions. A nil repository means history is disabled.
type HistoryService struct {
	repo ports.HistoryRepository
}

func NewHistoryService(repo ports.HistoryRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

func (s *HistoryService) Enabled() bool {
	return s.repo != nil
}

// List returns one page of history; the page carries the normalized limit and offset
func (s *HistoryService) List(ctx context.Context, filter domain.HistoryFilter) (*domain.HistoryPage, error) {
	if s.repo == nil {
		return nil, domain.ErrHistoryDisabled
	}

	if filter.Task != "" && !domain.Task(filter.Task).IsValid() {
		return nil, domain.ErrInvalidTask
	}
	if filter.Order != "asc" {
		filter.Order = "desc"
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*domain.PredictionRecord{}
	}
	return &domain.HistoryPage{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func (s *HistoryService) Get(ctx context.Context, id uuid.UUID) (*domain.PredictionRecord, error) {
	if s.repo == nil {
		return nil, domain.ErrHistoryDisabled
	}
	return s.repo.GetByID(ctx, id)
}

func (s *HistoryService) Delete(ctx context.Context, id uuid.UUID) error {
	if s.repo == nil {
		return domain.ErrHistoryDisabled
	}
	return s.repo.Delete(ctx, id)
}

func (s *HistoryService) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	if s.repo == nil {
		return nil, domain.ErrHistoryDisabled
	}
	return s.repo.Stats(ctx)
}
