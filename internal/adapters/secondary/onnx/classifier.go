package onnx

import (
	"context"
	"image"

	"bloodcell-inference-service/internal/core/domain"
	"bloodcell-inference-service/internal/imaging"
)

type classifier struct {
	*binding
	info   domain.ModelInfo
	width  int
	height int
}

func (c *classifier) Classify(ctx context.Context, img image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input := imaging.ClassificationTensor(img, c.width, c.height, c.info.Layout)
	return c.run(input)
}

func (c *classifier) Info() domain.ModelInfo { return c.info }

func (c *classifier) Close() error { return c.close() }
