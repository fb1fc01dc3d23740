package testutil

import (
	"context"
	"image"
	"io"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
)

// MockModelLoader is a mock of ModelLoader.
type MockModelLoader struct {
	mock.Mock
}

func (m *MockModelLoader) LoadClassifier(ctx context.Context, entry domain.ModelEntry) (ports.Classifier, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Classifier), args.Error(1)
}

func (m *MockModelLoader) LoadDetector(ctx context.Context, entry domain.ModelEntry, labels []string) (ports.Detector, error) {
	args := m.Called(ctx, entry, labels)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Detector), args.Error(1)
}

// MockClassifier is a mock of Classifier.
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, img image.Image) ([]float32, error) {
	args := m.Called(ctx, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockClassifier) Info() domain.ModelInfo {
	args := m.Called()
	return args.Get(0).(domain.ModelInfo)
}

func (m *MockClassifier) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockDetector is a mock of Detector.
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Detect(ctx context.Context, img image.Image, opts ports.DetectOptions) ([]domain.Detection, error) {
	args := m.Called(ctx, img, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Detection), args.Error(1)
}

func (m *MockDetector) Info() domain.ModelInfo {
	args := m.Called()
	return args.Get(0).(domain.ModelInfo)
}

func (m *MockDetector) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockAnnotator is a mock of Annotator.
type MockAnnotator struct {
	mock.Mock
}

func (m *MockAnnotator) Annotate(img image.Image, detections []domain.Detection, showLabels bool) (image.Image, error) {
	args := m.Called(img, detections, showLabels)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(image.Image), args.Error(1)
}

// MockRequestLogStore is a mock of RequestLogStore.
type MockRequestLogStore struct {
	mock.Mock
}

func (m *MockRequestLogStore) Create(task domain.Task, modelID string) (*ports.RequestLog, error) {
	args := m.Called(task, modelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.RequestLog), args.Error(1)
}

func (m *MockRequestLogStore) List() ([]domain.LogFile, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LogFile), args.Error(1)
}

func (m *MockRequestLogStore) Read(filename string) (string, error) {
	args := m.Called(filename)
	return args.String(0), args.Error(1)
}

func (m *MockRequestLogStore) Cleanup(days int) (int, error) {
	args := m.Called(days)
	return args.Int(0), args.Error(1)
}

// MockHistoryRepo is a mock of HistoryRepository.
type MockHistoryRepo struct {
	mock.Mock
}

func (m *MockHistoryRepo) Create(ctx context.Context, record *domain.PredictionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockHistoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PredictionRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PredictionRecord), args.Error(1)
}

func (m *MockHistoryRepo) List(ctx context.Context, filter domain.HistoryFilter) ([]*domain.PredictionRecord, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.PredictionRecord), args.Int(1), args.Error(2)
}

func (m *MockHistoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockHistoryRepo) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HistoryStats), args.Error(1)
}

// MockResultCache is a mock of ResultCache. Use Run to fill dst on a hit.
type MockResultCache struct {
	mock.Mock
}

func (m *MockResultCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	args := m.Called(ctx, key, dst)
	return args.Bool(0), args.Error(1)
}

func (m *MockResultCache) Set(ctx context.Context, key string, value any) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// DiscardLog is a request log that writes nowhere
func DiscardLog(filename string) *ports.RequestLog {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return ports.NewRequestLog(log.NewEntry(logger), filename, nil)
}
