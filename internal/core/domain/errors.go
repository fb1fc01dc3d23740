package domain

import "errors"

// ============================================================================
// Model Registry Errors
// ============================================================================

var (
	ErrUnknownModel       = errors.New("unknown model id")
	ErrModelNotLoaded     = errors.New("model not loaded")
	ErrModelFileNotFound  = errors.New("model file not found")
	ErrModelsNotAvailable = errors.New("models not loaded")
)

// ============================================================================
// Prediction Errors
// ============================================================================

// Validation errors
var (
	ErrMissingImage      = errors.New("image is required")
	ErrInvalidImage      = errors.New("invalid image data")
	ErrInvalidTask       = errors.New("invalid task, use 'classification', 'detection', or 'count'")
	ErrInvalidConfidence = errors.New("confidence threshold must be in (0, 1]")
	ErrImageTooLarge     = errors.New("image exceeds upload limit")
	ErrInvalidParameter  = errors.New("invalid parameter")
)

// Runtime errors
var (
	ErrInferenceBusy    = errors.New("inference queue is full, retry later")
	ErrUnexpectedOutput = errors.New("unexpected model output")
	ErrInferenceFailed  = errors.New("inference failed")
)

// ============================================================================
// Request Log Errors
// ============================================================================

var (
	ErrInvalidLogName = errors.New("invalid log filename")
	ErrLogNotFound    = errors.New("log file not found")
	ErrInvalidDays    = errors.New("days must be >= 0")
)

// ============================================================================
// History Errors
// ============================================================================

var (
	ErrHistoryDisabled = errors.New("prediction history is disabled")
	ErrRecordNotFound  = errors.New("prediction record not found")
	ErrRecordExists    = errors.New("prediction record already exists")
)
