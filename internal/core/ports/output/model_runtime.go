package ports

import (
	"context"
	"image"

	"bloodcell-inference-service/internal/core/domain"
)

// DetectOptions tune a single detector call
type DetectOptions struct {
	Conf float64
	IoU  float64
}

// Classifier runs an image classification model
type Classifier interface {
	// Classify returns one score per output class, in model order
	Classify(ctx context.Context, img image.Image) ([]float32, error)

	// Info describes the model input and output
	Info() domain.ModelInfo

	Close() error
}

// Detector runs an object detection model
type Detector interface {
	// Detect returns boxes in source image coordinates above opts.Conf
	Detect(ctx context.Context, img image.Image, opts DetectOptions) ([]domain.Detection, error)

	// Info describes the model input and output, Labels holds the class names
	Info() domain.ModelInfo

	Close() error
}

// ModelLoader opens model artifacts with the inference runtime
type ModelLoader interface {
	// LoadClassifier returns domain.ErrModelFileNotFound when entry.Path does not exist
	LoadClassifier(ctx context.Context, entry domain.ModelEntry) (Classifier, error)

	// LoadDetector returns domain.ErrModelFileNotFound when entry.Path does not exist
	LoadDetector(ctx context.Context, entry domain.ModelEntry, labels []string) (Detector, error)
}

// Annotator draws detections onto an image
type Annotator interface {
	Annotate(img image.Image, detections []domain.Detection, showLabels bool) (image.Image, error)
}
