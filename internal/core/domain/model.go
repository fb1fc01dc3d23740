package domain

import (
	"path/filepath"
	"sort"
)

// ============================================================================
// Value Objects
// ============================================================================

// Task identifies what a request asks the models to do
type Task string

const (
	TaskClassification Task = "classification"
	TaskDetection      Task = "detection"
	TaskCount          Task = "count"
)

// IsValid checks if the task is one of the served tasks
func (t Task) IsValid() bool {
	return t == TaskClassification || t == TaskDetection || t == TaskCount
}

// TensorLayout is the memory order a model expects its image input in
type TensorLayout string

const (
	LayoutNHWC TensorLayout = "NHWC"
	LayoutNCHW TensorLayout = "NCHW"
)

// ============================================================================
// Entities
// ============================================================================

// ModelEntry is one slot of the model registry
type ModelEntry struct {
	ID     string `json:"id"`
	Task   Task   `json:"task"`
	Path   string `json:"path"`
	Loaded bool   `json:"loaded"`
}

// ModelInfo describes a loaded model as reported by its runtime
type ModelInfo struct {
	InputName   string       `json:"input_name"`
	OutputName  string       `json:"output_name"`
	InputShape  []int64      `json:"input_shape"`
	OutputShape []int64      `json:"output_shape"`
	Layout      TensorLayout `json:"layout"`
	Labels      []string     `json:"labels,omitempty"`
}

// Availability is the public view of which models can serve requests
type Availability struct {
	Classification []string `json:"classification"`
	Detection      bool     `json:"detection"`
	Count          bool     `json:"count"`
}

// Detector ids in the catalog
const (
	DetectionModelID = "detection"
	CountModelID     = "count"
)

// CatalogSpec lists the weight files the registry should know about
type CatalogSpec struct {
	Dir           string
	Classifiers   map[string]string // id -> file name
	DetectionFile string
	CountFile     string
}

// NewCatalog builds registry entries from a catalog spec. Classifiers are sorted by id.
func NewCatalog(spec CatalogSpec) []ModelEntry {
	ids := make([]string, 0, len(spec.Classifiers))
	for id := range spec.Classifiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	entries := make([]ModelEntry, 0, len(ids)+2)
	for _, id := range ids {
		entries = append(entries, ModelEntry{
			ID:   id,
			Task: TaskClassification,
			Path: filepath.Join(spec.Dir, spec.Classifiers[id]),
		})
	}
	if spec.DetectionFile != "" {
		entries = append(entries, ModelEntry{
			ID:   DetectionModelID,
			Task: TaskDetection,
			Path: filepath.Join(spec.Dir, spec.DetectionFile),
		})
	}
	if spec.CountFile != "" {
		entries = append(entries, ModelEntry{
			ID:   CountModelID,
			Task: TaskCount,
			Path: filepath.Join(spec.Dir, spec.CountFile),
		})
	}
	return entries
}

// ModelDetail is a registry entry plus runtime info once the model is loaded
type ModelDetail struct {
	ModelEntry
	Info *ModelInfo `json:"info,omitempty"`
}
