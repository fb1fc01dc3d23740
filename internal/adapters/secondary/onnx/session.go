package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"bloodcell-inference-service/internal/core/domain"
)

// binding is a session with its input and output tensors bound once.
// Run mutates the shared tensors, so callers go through mu.
type binding struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (r *Runtime) bind(path string, info domain.ModelInfo) (*binding, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(info.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(info.OutputShape...))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	so, err := r.sessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	if so != nil {
		defer so.Destroy()
	}

	session, err := ort.NewAdvancedSession(path,
		[]string{info.InputName}, []string{info.OutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		so)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &binding{session: session, input: input, output: output}, nil
}

// run copies in, executes the graph and returns a copy of the output
func (b *binding) run(in []float32) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dst := b.input.GetData()
	if len(in) != len(dst) {
		return nil, fmt.Errorf("%w: input has %d values, model expects %d", domain.ErrInferenceFailed, len(in), len(dst))
	}
	copy(dst, in)

	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInferenceFailed, err)
	}

	out := b.output.GetData()
	res := make([]float32, len(out))
	copy(res, out)
	return res, nil
}

func (b *binding) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	if b.session != nil {
		if err := b.session.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		b.session = nil
	}
	if b.input != nil {
		if err := b.input.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		b.input = nil
	}
	if b.output != nil {
		if err := b.output.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
		b.output = nil
	}
	return firstErr
}
