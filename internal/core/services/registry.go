package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
)

// ModelRegistry holds every model the service knows about and the loaded
// runtime handles. Startup failures leave the service in degraded mode;
// classifiers are retried on demand.
type ModelRegistry struct {
	loader      ports.ModelLoader
	countLabels []string

	mu          sync.RWMutex
	order       []string
	entries     map[string]*domain.ModelEntry
	classifiers map[string]ports.Classifier
	detectors   map[domain.Task]ports.Detector

	// serializes loads so two requests don't open the same model twice
	loadMu sync.Mutex
}

func NewModelRegistry(loader ports.ModelLoader, catalog []domain.ModelEntry, countLabels []string) *ModelRegistry {
	r := &ModelRegistry{
		loader:      loader,
		countLabels: countLabels,
		entries:     make(map[string]*domain.ModelEntry, len(catalog)),
		classifiers: make(map[string]ports.Classifier),
		detectors:   make(map[domain.Task]ports.Detector),
	}
	for _, e := range catalog {
		entry := e
		entry.Loaded = false
		r.entries[entry.ID] = &entry
		r.order = append(r.order, entry.ID)
	}
	return r
}

// LoadAll tries every catalog entry once and reports what is available
func (r *ModelRegistry) LoadAll(ctx context.Context) domain.Availability {
	return r.Load(ctx, nil)
}

// Load tries the catalog entries accepted by keep, all of them when keep is nil
func (r *ModelRegistry) Load(ctx context.Context, keep func(domain.ModelEntry) bool) domain.Availability {
	for _, id := range r.order {
		r.mu.RLock()
		entry := *r.entries[id]
		r.mu.RUnlock()

		if keep != nil && !keep(entry) {
			continue
		}

		if err := r.load(ctx, entry); err != nil {
			log.WithFields(log.Fields{
				"model": entry.ID,
				"task":  entry.Task,
				"path":  entry.Path,
			}).WithError(err).Warn("Failed to load model")
			continue
		}
	}

	avail := r.Availability()
	log.WithFields(log.Fields{
		"classification": avail.Classification,
		"detection":      avail.Detection,
		"count":          avail.Count,
	}).Info("Model loading complete")
	return avail
}

func (r *ModelRegistry) load(ctx context.Context, entry domain.ModelEntry) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if r.isLoaded(entry) {
		return nil
	}

	switch entry.Task {
	case domain.TaskClassification:
		c, err := r.loader.LoadClassifier(ctx, entry)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.classifiers[entry.ID] = c
		r.entries[entry.ID].Loaded = true
		r.mu.Unlock()

	case domain.TaskDetection, domain.TaskCount:
		var labels []string
		if entry.Task == domain.TaskCount {
			labels = r.countLabels
		}
		d, err := r.loader.LoadDetector(ctx, entry, labels)
		if err != nil {
			return err
		}
		r.mu.Lock()
		r.detectors[entry.Task] = d
		r.entries[entry.ID].Loaded = true
		r.mu.Unlock()

	default:
		return fmt.Errorf("%w: %s", domain.ErrInvalidTask, entry.Task)
	}

	log.WithFields(log.Fields{"model": entry.ID, "task": entry.Task}).Info("Model loaded")
	return nil
}

func (r *ModelRegistry) isLoaded(entry domain.ModelEntry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry.Task == domain.TaskClassification {
		_, ok := r.classifiers[entry.ID]
		return ok
	}
	_, ok := r.detectors[entry.Task]
	return ok
}

// Classifier returns a loaded classifier, loading it first if needed
func (r *ModelRegistry) Classifier(ctx context.Context, id string) (ports.Classifier, error) {
	r.mu.RLock()
	entry, known := r.entries[id]
	var snapshot domain.ModelEntry
	if known {
		snapshot = *entry
	}
	c, loaded := r.classifiers[id]
	r.mu.RUnlock()

	if !known || snapshot.Task != domain.TaskClassification {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownModel, id)
	}
	if loaded {
		return c, nil
	}

	log.WithField("model", id).Info("Loading classifier on demand")
	if err := r.load(ctx, snapshot); err != nil {
		log.WithField("model", id).WithError(err).Warn("On-demand load failed")
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotLoaded, id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.classifiers[id], nil
}

// Detector returns the detector serving task (detection or count)
func (r *ModelRegistry) Detector(task domain.Task) (ports.Detector, error) {
	if task != domain.TaskDetection && task != domain.TaskCount {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTask, task)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[task]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotLoaded, task)
	}
	return d, nil
}

func (r *ModelRegistry) Availability() domain.Availability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	avail := domain.Availability{Classification: []string{}}
	for _, id := range r.order {
		if _, ok := r.classifiers[id]; ok {
			avail.Classification = append(avail.Classification, id)
		}
	}
	_, avail.Detection = r.detectors[domain.TaskDetection]
	_, avail.Count = r.detectors[domain.TaskCount]
	return avail
}

// Entries lists the catalog in registry order
func (r *ModelRegistry) Entries() []domain.ModelEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ModelEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// Describe returns one entry with its runtime info when loaded
func (r *ModelRegistry) Describe(id string) (*domain.ModelDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownModel, id)
	}

	detail := &domain.ModelDetail{ModelEntry: *entry}
	var info domain.ModelInfo
	switch {
	case entry.Task == domain.TaskClassification && r.classifiers[id] != nil:
		info = r.classifiers[id].Info()
		detail.Info = &info
	case entry.Task != domain.TaskClassification && r.detectors[entry.Task] != nil:
		info = r.detectors[entry.Task].Info()
		detail.Info = &info
	}
	return detail, nil
}

// Close releases every loaded model
func (r *ModelRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, c := range r.classifiers {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		delete(r.classifiers, id)
		r.entries[id].Loaded = false
	}
	for task, d := range r.detectors {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", task, err))
		}
		delete(r.detectors, task)
	}
	for _, e := range r.entries {
		if e.Task != domain.TaskClassification {
			e.Loaded = false
		}
	}
	return errors.Join(errs...)
}
