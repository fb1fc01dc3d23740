package domain

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBox_Clamp(t *testing.T) {
	b := BoundingBox{-5, 10, 120, 90}.Clamp(image.Rect(0, 0, 100, 80))
	assert.Equal(t, BoundingBox{0, 10, 100, 80}, b)
}

func TestBoundingBox_IoU(t *testing.T) {
	a := BoundingBox{0, 0, 10, 10}
	assert.InDelta(t, 1.0, a.IoU(a), 1e-9)
	assert.InDelta(t, 0.0, a.IoU(BoundingBox{20, 20, 30, 30}), 1e-9)
	// half overlap: inter 50, union 150
	assert.InDelta(t, 1.0/3.0, a.IoU(BoundingBox{5, 0, 15, 10}), 1e-9)
}

func TestBoundingBox_AreaDegenerate(t *testing.T) {
	assert.Zero(t, BoundingBox{10, 10, 5, 20}.Area())
}

func TestTask_IsValid(t *testing.T) {
	assert.True(t, TaskClassification.IsValid())
	assert.True(t, TaskDetection.IsValid())
	assert.True(t, TaskCount.IsValid())
	assert.False(t, Task("segmentation").IsValid())
}

func TestNewCatalog(t *testing.T) {
	entries := NewCatalog(CatalogSpec{
		Dir:           "models",
		Classifiers:   map[string]string{"resnet-50": "r.onnx", "cnn": "c.onnx"},
		DetectionFile: "yolo.onnx",
		CountFile:     "cells.onnx",
	})

	require.Len(t, entries, 4)
	assert.Equal(t, "cnn", entries[0].ID)
	assert.Equal(t, "resnet-50", entries[1].ID)
	assert.Equal(t, TaskClassification, entries[1].Task)
	assert.Equal(t, filepath.Join("models", "r.onnx"), entries[1].Path)
	assert.Equal(t, DetectionModelID, entries[2].ID)
	assert.Equal(t, TaskDetection, entries[2].Task)
	assert.Equal(t, CountModelID, entries[3].ID)
	assert.Equal(t, TaskCount, entries[3].Task)
}
