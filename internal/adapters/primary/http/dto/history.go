package dto

import (
	"time"

	"github.com/google/uuid"

	"bloodcell-inference-service/internal/core/domain"
)

type HistoryRecordResponse struct {
	ID             uuid.UUID      `json:"id"`
	CreatedAt      string         `json:"created_at"`
	Task           string         `json:"task"`
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

type ListHistoryResponse struct {
	Success    bool                    `json:"success"`
	Items      []HistoryRecordResponse `json:"items"`
	Total      int                     `json:"total"`
	PageSize   int                     `json:"page_size"`
	NextOffset int                     `json:"next_offset"`
}

type HistoryStatsResponse struct {
	Success bool                `json:"success"`
	Stats   domain.HistoryStats `json:"stats"`
}

func ToHistoryRecordResponse(r *domain.PredictionRecord) HistoryRecordResponse {
	return HistoryRecordResponse{
		ID:             r.ID,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		Task:           string(r.Task),
		ModelID:        r.ModelID,
		PredictedClass: r.PredictedClass,
		Confidence:     r.Confidence,
		Counts:         r.Counts,
		DetectionCount: r.DetectionCount,
		ProcessingMs:   r.ProcessingMs,
		LogFile:        r.LogFile,
		ImageSHA256:    r.ImageSHA256,
		ImageName:      r.ImageName,
	}
}
