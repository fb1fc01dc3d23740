package domain

import (
	"time"

	"github.com/google/uuid"
)

// PredictionRecord is one stored prediction
type PredictionRecord struct {
	ID             uuid.UUID      `json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	Task           Task           `json:"task"`
	ModelID        string         `json:"model_id"`
	PredictedClass string         `json:"predicted_class,omitempty"`
	Confidence     float64        `json:"confidence,omitempty"`
	Counts         map[string]int `json:"counts,omitempty"`
	DetectionCount int            `json:"detection_count"`
	ProcessingMs   int64          `json:"processing_ms"`
	LogFile        string         `json:"log_file"`
	ImageSHA256    string         `json:"image_sha256"`
	ImageName      string         `json:"image_name"`
}

// HistoryFilter narrows a history listing
type HistoryFilter struct {
	Task   string
	Order  string
	Limit  int
	Offset int
}

// HistoryPage is one page of a history listing with the bounds actually applied
type HistoryPage struct {
	Records []*PredictionRecord
	Total   int
	Limit   int
	Offset  int
}

// ClassShare is how often a class was predicted
type ClassShare struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// HistoryStats summarizes stored predictions
type HistoryStats struct {
	TotalPredictions int          `json:"total_predictions"`
	PredictionsToday int          `json:"predictions_today"`
	MostUsedModel    string       `json:"most_used_model"`
	UniqueCellTypes  int          `json:"unique_cell_types"`
	Distribution     []ClassShare `json:"distribution"`
}
