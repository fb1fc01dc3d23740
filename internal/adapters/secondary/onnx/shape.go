package onnx

import (
	"fmt"
	"regexp"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"

	"bloodcell-inference-service/internal/core/domain"
)

// concreteShape replaces dynamic dimensions: batch becomes 1, the rest become
// fill (or 1 when fill is not set).
func concreteShape(dims ort.Shape, fill int64) []int64 {
	shape := make([]int64, len(dims))
	for i, d := range dims {
		switch {
		case d > 0:
			shape[i] = d
		case i == 0 || fill <= 0:
			shape[i] = 1
		default:
			shape[i] = fill
		}
	}
	return shape
}

// imageInputGeometry tells NHWC (Keras exports) from NCHW by where the 3
// channel axis sits.
func imageInputGeometry(shape []int64) (domain.TensorLayout, int, int, error) {
	if len(shape) != 4 {
		return "", 0, 0, fmt.Errorf("unsupported input rank %d", len(shape))
	}
	switch {
	case shape[3] == 3:
		return domain.LayoutNHWC, int(shape[2]), int(shape[1]), nil
	case shape[1] == 3:
		return domain.LayoutNCHW, int(shape[3]), int(shape[2]), nil
	default:
		return "", 0, 0, fmt.Errorf("unsupported input shape %v", shape)
	}
}

// detectorInputSize reads the square NCHW input size a detector was exported
// with, falling back to size when the spatial dimensions are dynamic.
func detectorInputSize(dims ort.Shape, size int) (int, error) {
	if len(dims) != 4 {
		return 0, fmt.Errorf("unsupported detector input rank %d", len(dims))
	}
	h, w := dims[2], dims[3]
	switch {
	case h <= 0 && w <= 0:
		return size, nil
	case h > 0 && w > 0 && h == w:
		return int(h), nil
	default:
		return 0, fmt.Errorf("unsupported detector input %v, expected square or dynamic", []int64(dims))
	}
}

// yoloAnchors is the number of predictions a YOLOv8 head emits for a square
// input, one per cell of the stride 8, 16 and 32 grids.
func yoloAnchors(size int) int64 {
	var n int64
	for _, stride := range []int{8, 16, 32} {
		g := int64(size / stride)
		n += g * g
	}
	return n
}

var namePair = regexp.MustCompile(`(\d+)\s*:\s*['"]([^'"]*)['"]`)

// parseNames reads the class map the detector exporter stores in the model
// metadata, e.g. {0: 'RBC', 1: 'WBC'}.
func parseNames(raw string) []string {
	matches := namePair.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}

	byIndex := make(map[int]string, len(matches))
	maxIdx := -1
	for _, m := range matches {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		byIndex[idx] = m[2]
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	if maxIdx < 0 {
		return nil
	}

	names := make([]string, maxIdx+1)
	for i := range names {
		if n, ok := byIndex[i]; ok {
			names[i] = n
		} else {
			names[i] = fmt.Sprintf("class_%d", i)
		}
	}
	return names
}
