package services

import (
	log "github.com/sirupsen/logrus"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
)

type LogService struct {
	store ports.RequestLogStore
}

func NewLogService(store ports.RequestLogStore) *LogService {
	return &LogService{store: store}
}

func (s *LogService) List() ([]domain.LogFile, error) {
	return s.store.List()
}

func (s *LogService) Read(filename string) (string, error) {
	return s.store.Read(filename)
}

// Cleanup deletes request logs older than days and returns how many were removed
func (s *LogService) Cleanup(days int) (int, error) {
	if days < 0 {
		return 0, domain.ErrInvalidDays
	}
	deleted, err := s.store.Cleanup(days)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"days": days, "deleted": deleted}).Info("Request logs cleaned up")
	return deleted, nil
}
