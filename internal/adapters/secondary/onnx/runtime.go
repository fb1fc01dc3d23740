package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
)

// Options configure the ONNX Runtime environment and model input sizes
type Options struct {
	LibraryPath    string
	IntraOpThreads int
	ClassifierSize int
	DetectorSize   int
	MaxDetections  int
}

// Runtime owns the ONNX Runtime environment and loads models into sessions
type Runtime struct {
	opts Options
}

// NewRuntime initializes the ONNX Runtime environment. Close must be called on shutdown.
func NewRuntime(opts Options) (*Runtime, error) {
	if opts.ClassifierSize <= 0 {
		opts.ClassifierSize = 224
	}
	if opts.DetectorSize <= 0 {
		opts.DetectorSize = 640
	}
	if opts.MaxDetections <= 0 {
		opts.MaxDetections = 300
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	return &Runtime{opts: opts}, nil
}

var _ ports.ModelLoader = (*Runtime)(nil)

func (r *Runtime) LoadClassifier(ctx context.Context, entry domain.ModelEntry) (ports.Classifier, error) {
	if err := checkFile(entry.Path); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("read model io info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model has no inputs or outputs", domain.ErrUnexpectedOutput)
	}

	inShape := concreteShape(inputs[0].Dimensions, int64(r.opts.ClassifierSize))
	outShape := concreteShape(outputs[0].Dimensions, 0)
	layout, width, height, err := imageInputGeometry(inShape)
	if err != nil {
		return nil, err
	}

	info := domain.ModelInfo{
		InputName:   inputs[0].Name,
		OutputName:  outputs[0].Name,
		InputShape:  inShape,
		OutputShape: outShape,
		Layout:      layout,
	}

	b, err := r.bind(entry.Path, info)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"model": entry.ID,
		"path":  entry.Path,
		"input": inShape,
	}).Info("classification model loaded")

	return &classifier{binding: b, info: info, width: width, height: height}, nil
}

func (r *Runtime) LoadDetector(ctx context.Context, entry domain.ModelEntry, labels []string) (ports.Detector, error) {
	if err := checkFile(entry.Path); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("read model io info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: model has no inputs or outputs", domain.ErrUnexpectedOutput)
	}

	size, err := detectorInputSize(inputs[0].Dimensions, r.opts.DetectorSize)
	if err != nil {
		return nil, err
	}
	inShape := concreteShape(inputs[0].Dimensions, int64(size))
	outShape := concreteShape(outputs[0].Dimensions, yoloAnchors(size))
	if len(outShape) != 3 || outShape[1] < 5 {
		return nil, fmt.Errorf("%w: detector output shape %v", domain.ErrUnexpectedOutput, outShape)
	}

	if names := readNames(entry.Path); len(names) > 0 {
		labels = names
	}

	info := domain.ModelInfo{
		InputName:   inputs[0].Name,
		OutputName:  outputs[0].Name,
		InputShape:  inShape,
		OutputShape: outShape,
		Layout:      domain.LayoutNCHW,
		Labels:      labels,
	}

	b, err := r.bind(entry.Path, info)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"model":  entry.ID,
		"path":   entry.Path,
		"output": outShape,
		"labels": len(labels),
	}).Info("detection model loaded")

	return &detector{
		binding:       b,
		info:          info,
		size:          size,
		numClasses:    int(outShape[1]) - 4,
		anchors:       int(outShape[2]),
		maxDetections: r.opts.MaxDetections,
	}, nil
}

// Close tears down the environment after every session has been destroyed.
func (r *Runtime) Close() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

func (r *Runtime) sessionOptions() (*ort.SessionOptions, error) {
	if r.opts.IntraOpThreads <= 0 {
		return nil, nil
	}
	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if err := so.SetIntraOpNumThreads(r.opts.IntraOpThreads); err != nil {
		so.Destroy()
		return nil, fmt.Errorf("set intra-op threads: %w", err)
	}
	return so, nil
}

func checkFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrModelFileNotFound, path)
		}
		return fmt.Errorf("stat model file: %w", err)
	}
	return nil
}

func readNames(path string) []string {
	meta, err := ort.GetModelMetadata(path)
	if err != nil {
		return nil
	}
	defer meta.Destroy()

	raw, ok, err := meta.LookupCustomMetadataMap("names")
	if err != nil || !ok {
		return nil
	}
	return parseNames(raw)
}
