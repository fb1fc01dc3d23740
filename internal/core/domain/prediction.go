package domain

import (
	"image"
	"math"
)

// DefaultConfidence is the detection threshold used when a request does not set one
const DefaultConfidence = 0.25

// ============================================================================
// Inputs
// ============================================================================

// ImageUpload is the raw image a prediction request carries
type ImageUpload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ClassifyInput carries a classification request
type ClassifyInput struct {
	Image   ImageUpload
	ModelID string
}

// DetectInput carries a detection or count request
type DetectInput struct {
	Image      ImageUpload
	Conf       float64
	ShowLabels bool
}

// PredictInput carries a unified request with a base64 image
type PredictInput struct {
	Image      string
	Task       Task
	ModelID    string
	Conf       *float64
	ShowLabels *bool
}

// ============================================================================
// Results
// ============================================================================

// BoundingBox is [x1, y1, x2, y2] in source image pixels
type BoundingBox [4]float64

// Clamp limits the box to the image rectangle
func (b BoundingBox) Clamp(bounds image.Rectangle) BoundingBox {
	minX, minY := float64(bounds.Min.X), float64(bounds.Min.Y)
	maxX, maxY := float64(bounds.Max.X), float64(bounds.Max.Y)
	return BoundingBox{
		math.Min(math.Max(b[0], minX), maxX),
		math.Min(math.Max(b[1], minY), maxY),
		math.Min(math.Max(b[2], minX), maxX),
		math.Min(math.Max(b[3], minY), maxY),
	}
}

// Rect rounds the box to integer pixel coordinates
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(int(math.Round(b[0])), int(math.Round(b[1])), int(math.Round(b[2])), int(math.Round(b[3])))
}

// Area of the box, zero for degenerate boxes
func (b BoundingBox) Area() float64 {
	w := b[2] - b[0]
	h := b[3] - b[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU is the intersection over union of two boxes
func (b BoundingBox) IoU(o BoundingBox) float64 {
	inter := BoundingBox{
		math.Max(b[0], o[0]),
		math.Max(b[1], o[1]),
		math.Min(b[2], o[2]),
		math.Min(b[3], o[3]),
	}.Area()
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is one box found by a detector
type Detection struct {
	Class      string      `json:"class"`
	ClassID    int         `json:"-"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// ClassificationResult is the output of a classifier call
type ClassificationResult struct {
	PredictedClass string             `json:"predicted_class"`
	Confidence     float64            `json:"confidence"`
	Probabilities  map[string]float64 `json:"probabilities"`
	ModelUsed      string             `json:"model_used"`
	LogFile        string             `json:"log_file,omitempty"`
}

// DetectionResult is the output of the general detector
type DetectionResult struct {
	Detections     []Detection `json:"detections"`
	Count          int         `json:"count"`
	AnnotatedImage string      `json:"annotated_image"`
	LogFile        string      `json:"log_file,omitempty"`
}

// CountResult is the output of the RBC/WBC counter
type CountResult struct {
	Counts         map[string]int `json:"counts"`
	TotalCells     int            `json:"total_cells"`
	Detections     []Detection    `json:"detections"`
	AnnotatedImage string         `json:"annotated_image"`
	LogFile        string         `json:"log_file,omitempty"`
}

// PredictResult is the unified endpoint result, exactly one field is set
type PredictResult struct {
	Task           Task
	Classification *ClassificationResult
	Detection      *DetectionResult
	Count          *CountResult
}
