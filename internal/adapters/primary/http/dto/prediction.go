package dto

import (
	"bloodcell-inference-service/internal/core/domain"
)

// PredictRequest is the body of the unified endpoint
type PredictRequest struct {
	Image      string   `json:"image" binding:"required"`
	Task       string   `json:"task" binding:"required"`
	ModelID    string   `json:"model_id"`
	Conf       *float64 `json:"conf"`
	ShowLabels *bool    `json:"show_labels"`
}

func (r PredictRequest) ToInput() domain.PredictInput {
	return domain.PredictInput{
		Image:      r.Image,
		Task:       domain.Task(r.Task),
		ModelID:    r.ModelID,
		Conf:       r.Conf,
		ShowLabels: r.ShowLabels,
	}
}

type DetectionDTO struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

type ClassificationResultDTO struct {
	PredictedClass string             `json:"predicted_class"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
	ModelUsed      string             `json:"model_used"`
	LogFile        string             `json:"log_file"`
}

type DetectionResultDTO struct {
	Detections     []DetectionDTO `json:"detections"`
	Count          int            `json:"count"`
	AnnotatedImage string         `json:"annotated_image"`
	LogFile        string         `json:"log_file"`
}

type CountResultDTO struct {
	Counts         map[string]int `json:"counts"`
	TotalCells     int            `json:"total_cells"`
	Detections     []DetectionDTO `json:"detections"`
	AnnotatedImage string         `json:"annotated_image"`
	LogFile        string         `json:"log_file"`
}

func ToDetectionDTOs(dets []domain.Detection) []DetectionDTO {
	out := make([]DetectionDTO, 0, len(dets))
	for _, d := range dets {
		out = append(out, DetectionDTO{
			Class:      d.Class,
			Confidence: d.Confidence,
			BBox:       d.BBox,
		})
	}
	return out
}

func ToClassificationResponse(r *domain.ClassificationResult) PredictionResponse {
	return PredictionResponse{
		Success: true,
		Task:    string(domain.TaskClassification),
		Result: ClassificationResultDTO{
			PredictedClass: r.PredictedClass,
			Confidence:     r.Confidence,
			Probabilities:  r.Probabilities,
			ModelUsed:      r.ModelUsed,
			LogFile:        r.LogFile,
		},
	}
}

func ToDetectionResponse(r *domain.DetectionResult) PredictionResponse {
	return PredictionResponse{
		Success: true,
		Task:    string(domain.TaskDetection),
		Result: DetectionResultDTO{
			Detections:     ToDetectionDTOs(r.Detections),
			Count:          r.Count,
			AnnotatedImage: r.AnnotatedImage,
			LogFile:        r.LogFile,
		},
	}
}

func ToCountResponse(r *domain.CountResult) PredictionResponse {
	return PredictionResponse{
		Success: true,
		Task:    string(domain.TaskCount),
		Result: CountResultDTO{
			Counts:         r.Counts,
			TotalCells:     r.TotalCells,
			Detections:     ToDetectionDTOs(r.Detections),
			AnnotatedImage: r.AnnotatedImage,
			LogFile:        r.LogFile,
		},
	}
}

// ToPredictResponse picks the mapper matching the task that ran
func ToPredictResponse(r *domain.PredictResult) PredictionResponse {
	switch {
	case r.Classification != nil:
		return ToClassificationResponse(r.Classification)
	case r.Detection != nil:
		return ToDetectionResponse(r.Detection)
	case r.Count != nil:
		return ToCountResponse(r.Count)
	}
	return PredictionResponse{Success: true, Task: string(r.Task)}
}
