package services

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
	"bloodcell-inference-service/internal/imaging"
)

// PredictionOptions hold the defaults and limits of the predictor
type PredictionOptions struct {
	DefaultClassifier string
	ClassLabels       []string
	CountLabels       []string
	IoU               float64
	MaxConcurrent     int
	QueueTimeout      time.Duration
	MaxImagePixels    int64
}

type PredictionService struct {
	registry  *ModelRegistry
	logs      ports.RequestLogStore
	annotator ports.Annotator
	cache     ports.ResultCache       // optional
	history   ports.HistoryRepository // optional
	opts      PredictionOptions
	slots     chan struct{}
}

func NewPredictionService(registry *ModelRegistry, logs ports.RequestLogStore, annotator ports.Annotator, opts PredictionOptions) *PredictionService {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &PredictionService{
		registry:  registry,
		logs:      logs,
		annotator: annotator,
		opts:      opts,
		slots:     make(chan struct{}, opts.MaxConcurrent),
	}
}

// WithCache enables result caching keyed by image fingerprint
func (s *PredictionService) WithCache(cache ports.ResultCache) *PredictionService {
	s.cache = cache
	return s
}

// WithHistory enables recording every successful prediction
func (s *PredictionService) WithHistory(repo ports.HistoryRepository) *PredictionService {
	s.history = repo
	return s
}

// ============================================================================
// Public operations
// ============================================================================

func (s *PredictionService) Classify(ctx context.Context, in domain.ClassifyInput) (*domain.ClassificationResult, error) {
	modelID := s.classifierID(in.ModelID)
	rl := s.openLog(domain.TaskClassification, modelID)
	defer rl.Close()

	rl.Infof("Received image: %s (%s, %d bytes)", in.Image.Filename, in.Image.ContentType, len(in.Image.Data))
	return s.classify(ctx, rl, in.Image, modelID)
}

func (s *PredictionService) Detect(ctx context.Context, in domain.DetectInput) (*domain.DetectionResult, error) {
	rl := s.openLog(domain.TaskDetection, "")
	defer rl.Close()

	rl.Infof("Received image: %s (%s, %d bytes)", in.Image.Filename, in.Image.ContentType, len(in.Image.Data))
	return s.detect(ctx, rl, in)
}

func (s *PredictionService) Count(ctx context.Context, in domain.DetectInput) (*domain.CountResult, error) {
	rl := s.openLog(domain.TaskCount, "")
	defer rl.Close()

	rl.Infof("Received image: %s (%s, %d bytes)", in.Image.Filename, in.Image.ContentType, len(in.Image.Data))
	return s.count(ctx, rl, in)
}

// Predict serves the unified endpoint: a base64 image and a task name
func (s *PredictionService) Predict(ctx context.Context, in domain.PredictInput) (*domain.PredictResult, error) {
	if !in.Task.IsValid() {
		return nil, domain.ErrInvalidTask
	}

	modelID := ""
	if in.Task == domain.TaskClassification {
		modelID = s.classifierID(in.ModelID)
	}
	rl := s.openLog(in.Task, modelID)
	defer rl.Close()

	rl.Infof("Received base64 image (%d chars)", len(in.Image))
	data, err := imaging.DecodeBase64(in.Image)
	if err != nil {
		return nil, s.fail(rl, "Base64 decoding", err)
	}
	upload := domain.ImageUpload{Data: data, Filename: "upload"}

	conf := domain.DefaultConfidence
	if in.Conf != nil {
		conf = *in.Conf
	}
	showLabels := true
	if in.ShowLabels != nil {
		showLabels = *in.ShowLabels
	}
	detectIn := domain.DetectInput{Image: upload, Conf: conf, ShowLabels: showLabels}

	res := &domain.PredictResult{Task: in.Task}
	switch in.Task {
	case domain.TaskClassification:
		res.Classification, err = s.classify(ctx, rl, upload, modelID)
	case domain.TaskDetection:
		res.Detection, err = s.detect(ctx, rl, detectIn)
	case domain.TaskCount:
		res.Count, err = s.count(ctx, rl, detectIn)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ============================================================================
// Task pipelines
// ============================================================================

func (s *PredictionService) classify(ctx context.Context, rl *ports.RequestLog, upload domain.ImageUpload, modelID string) (*domain.ClassificationResult, error) {
	start := time.Now()

	clf, err := s.registry.Classifier(ctx, modelID)
	if err != nil {
		return nil, s.fail(rl, "Model lookup", err)
	}

	img, err := s.decode(rl, upload)
	if err != nil {
		return nil, err
	}

	fingerprint := imaging.Fingerprint(upload.Data)
	key := cacheKey(domain.TaskClassification, modelID, fingerprint)
	var result domain.ClassificationResult
	if !s.cached(ctx, rl, key, &result) {
		result, err = s.runClassifier(ctx, rl, clf, img, modelID)
		if err != nil {
			return nil, err
		}
		s.store(ctx, rl, key, result)
	}

	s.record(ctx, rl, &domain.PredictionRecord{
		Task:           domain.TaskClassification,
		ModelID:        modelID,
		PredictedClass: result.PredictedClass,
		Confidence:     result.Confidence,
		ProcessingMs:   time.Since(start).Milliseconds(),
		LogFile:        rl.Filename,
		ImageSHA256:    fingerprint,
		ImageName:      upload.Filename,
	})

	rl.Infof("Classification completed in %dms", time.Since(start).Milliseconds())
	result.LogFile = rl.Filename
	return &result, nil
}

// runClassifier runs the model and turns its scores into a labelled result
func (s *PredictionService) runClassifier(ctx context.Context, rl *ports.RequestLog, clf ports.Classifier, img image.Image, modelID string) (domain.ClassificationResult, error) {
	rl.Infof("Running classification with %s", modelID)
	var scores []float32
	err := s.withSlot(ctx, func() error {
		var runErr error
		scores, runErr = clf.Classify(ctx, img)
		return runErr
	})
	if err != nil {
		return domain.ClassificationResult{}, s.fail(rl, "Classification", err)
	}

	probs, err := toProbabilities(scores, len(s.opts.ClassLabels))
	if err != nil {
		return domain.ClassificationResult{}, s.fail(rl, "Post-processing", err)
	}

	best := 0
	result := domain.ClassificationResult{
		Probabilities: make(map[string]float64, len(probs)),
		ModelUsed:     modelID,
	}
	for i, p := range probs {
		result.Probabilities[s.opts.ClassLabels[i]] = p
		if p > probs[best] {
			best = i
		}
	}
	result.PredictedClass = s.opts.ClassLabels[best]
	result.Confidence = probs[best]
	rl.Infof("Prediction: %s (confidence %.4f)", result.PredictedClass, result.Confidence)
	return result, nil
}

func (s *PredictionService) detect(ctx context.Context, rl *ports.RequestLog, in domain.DetectInput) (*domain.DetectionResult, error) {
	start := time.Now()

	dets, annotated, err := s.runDetector(ctx, rl, domain.TaskDetection, in)
	if err != nil {
		return nil, err
	}

	result := &domain.DetectionResult{
		Detections:     dets,
		Count:          len(dets),
		AnnotatedImage: annotated,
	}

	s.record(ctx, rl, &domain.PredictionRecord{
		Task:           domain.TaskDetection,
		ModelID:        domain.DetectionModelID,
		DetectionCount: len(dets),
		ProcessingMs:   time.Since(start).Milliseconds(),
		LogFile:        rl.Filename,
		ImageSHA256:    imaging.Fingerprint(in.Image.Data),
		ImageName:      in.Image.Filename,
	})

	rl.Infof("Detection completed in %dms: %d objects", time.Since(start).Milliseconds(), len(dets))
	result.LogFile = rl.Filename
	return result, nil
}

func (s *PredictionService) count(ctx context.Context, rl *ports.RequestLog, in domain.DetectInput) (*domain.CountResult, error) {
	start := time.Now()

	dets, annotated, err := s.runDetector(ctx, rl, domain.TaskCount, in)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(s.opts.CountLabels))
	for _, l := range s.opts.CountLabels {
		counts[l] = 0
	}
	total := 0
	for _, d := range dets {
		counts[d.Class]++
		total++
	}
	rl.Infof("Cell counts: %v (total %d)", counts, total)

	result := &domain.CountResult{
		Counts:         counts,
		TotalCells:     total,
		Detections:     dets,
		AnnotatedImage: annotated,
	}

	s.record(ctx, rl, &domain.PredictionRecord{
		Task:           domain.TaskCount,
		ModelID:        domain.CountModelID,
		Counts:         counts,
		DetectionCount: total,
		ProcessingMs:   time.Since(start).Milliseconds(),
		LogFile:        rl.Filename,
		ImageSHA256:    imaging.Fingerprint(in.Image.Data),
		ImageName:      in.Image.Filename,
	})

	rl.Infof("Count completed in %dms", time.Since(start).Milliseconds())
	result.LogFile = rl.Filename
	return result, nil
}

type detectorOutput struct {
	Detections     []domain.Detection `json:"detections"`
	AnnotatedImage string             `json:"annotated_image"`
}

// runDetector is shared by detection and count: it returns the boxes and the
// annotated image as base64 JPEG.
func (s *PredictionService) runDetector(ctx context.Context, rl *ports.RequestLog, task domain.Task, in domain.DetectInput) ([]domain.Detection, string, error) {
	if in.Conf <= 0 || in.Conf > 1 {
		return nil, "", s.fail(rl, "Validation", domain.ErrInvalidConfidence)
	}
	rl.Infof("Confidence threshold: %.2f, show labels: %t", in.Conf, in.ShowLabels)

	det, err := s.registry.Detector(task)
	if err != nil {
		return nil, "", s.fail(rl, "Model lookup", err)
	}

	img, err := s.decode(rl, in.Image)
	if err != nil {
		return nil, "", err
	}

	key := cacheKey(task, fmt.Sprintf("%.4f:%t", in.Conf, in.ShowLabels), imaging.Fingerprint(in.Image.Data))
	var out detectorOutput
	if s.cached(ctx, rl, key, &out) {
		return out.Detections, out.AnnotatedImage, nil
	}

	rl.Infof("Running %s model", task)
	var dets []domain.Detection
	err = s.withSlot(ctx, func() error {
		var runErr error
		dets, runErr = det.Detect(ctx, img, ports.DetectOptions{Conf: in.Conf, IoU: s.opts.IoU})
		return runErr
	})
	if err != nil {
		return nil, "", s.fail(rl, "Detection", err)
	}

	if task == domain.TaskCount {
		dets = s.relabelCounts(rl, dets)
	}
	if dets == nil {
		dets = []domain.Detection{}
	}
	for i, d := range dets {
		rl.Infof("Detection %d: %s %.4f %v", i+1, d.Class, d.Confidence, d.BBox)
	}

	annotated, err := s.annotator.Annotate(img, dets, in.ShowLabels)
	if err != nil {
		return nil, "", s.fail(rl, "Annotation", err)
	}
	jpg, err := imaging.EncodeJPEG(annotated)
	if err != nil {
		return nil, "", s.fail(rl, "Image encoding", err)
	}
	encoded := imaging.EncodeBase64(jpg)
	rl.Infof("Annotated image encoded (%d bytes)", len(jpg))

	s.store(ctx, rl, key, detectorOutput{Detections: dets, AnnotatedImage: encoded})
	return dets, encoded, nil
}

// relabelCounts maps class indices to the count labels and drops indices
// outside the label set.
func (s *PredictionService) relabelCounts(rl *ports.RequestLog, dets []domain.Detection) []domain.Detection {
	out := make([]domain.Detection, 0, len(dets))
	for _, d := range dets {
		if d.ClassID < 0 || d.ClassID >= len(s.opts.CountLabels) {
			rl.Warnf("Skipping detection with unknown class index %d", d.ClassID)
			continue
		}
		d.Class = s.opts.CountLabels[d.ClassID]
		out = append(out, d)
	}
	return out
}

// ============================================================================
// Helpers
// ============================================================================

func (s *PredictionService) classifierID(id string) string {
	if id == "" {
		return s.opts.DefaultClassifier
	}
	return id
}

func (s *PredictionService) openLog(task domain.Task, modelID string) *ports.RequestLog {
	rl, err := s.logs.Create(task, modelID)
	if err != nil {
		log.WithError(err).WithField("task", task).Warn("Failed to create request log, logging to process logger")
		return ports.NewRequestLog(log.WithField("task", task), "", nil)
	}
	return rl
}

func (s *PredictionService) decode(rl *ports.RequestLog, upload domain.ImageUpload) (image.Image, error) {
	img, format, err := imaging.Decode(upload.Data, s.opts.MaxImagePixels)
	if err != nil {
		return nil, s.fail(rl, "Image decoding", err)
	}
	rl.Infof("Image decoded: %s %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

func (s *PredictionService) fail(rl *ports.RequestLog, step string, err error) error {
	rl.WithFields(log.Fields{
		"error_type": fmt.Sprintf("%T", err),
	}).WithError(err).Errorf("%s failed", step)
	return err
}

// withSlot runs fn while holding an inference slot
func (s *PredictionService) withSlot(ctx context.Context, fn func() error) error {
	wait := ctx
	if s.opts.QueueTimeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, s.opts.QueueTimeout)
		defer cancel()
	}

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-wait.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return domain.ErrInferenceBusy
	}
	return fn()
}

func (s *PredictionService) cached(ctx context.Context, rl *ports.RequestLog, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	found, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		rl.WithError(err).Warn("Result cache lookup failed")
		return false
	}
	if found {
		rl.Info("Result served from cache")
	}
	return found
}

func (s *PredictionService) store(ctx context.Context, rl *ports.RequestLog, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		rl.WithError(err).Warn("Result cache store failed")
	}
}

func (s *PredictionService) record(ctx context.Context, rl *ports.RequestLog, rec *domain.PredictionRecord) {
	if s.history == nil {
		return
	}
	rec.ID = uuid.New()
	rec.CreatedAt = time.Now()
	if err := s.history.Create(ctx, rec); err != nil {
		rl.WithError(err).Warn("Failed to record prediction history")
	}
}

func cacheKey(task domain.Task, variant, fingerprint string) string {
	return fmt.Sprintf("%s:%s:%s", task, variant, fingerprint)
}

// toProbabilities checks the output against the label count and applies
// softmax when the model emitted logits rather than probabilities.
func toProbabilities(scores []float32, n int) ([]float64, error) {
	if n == 0 || len(scores) != n {
		return nil, fmt.Errorf("%w: got %d scores for %d labels", domain.ErrUnexpectedOutput, len(scores), n)
	}

	probs := make([]float64, n)
	needSoftmax := false
	for i, v := range scores {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: non-finite score", domain.ErrUnexpectedOutput)
		}
		if f < 0 || f > 1 {
			needSoftmax = true
		}
		probs[i] = f
	}
	if !needSoftmax {
		return probs, nil
	}

	maxV := probs[0]
	for _, p := range probs[1:] {
		maxV = math.Max(maxV, p)
	}
	var sum float64
	for i, p := range probs {
		probs[i] = math.Exp(p - maxV)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}
