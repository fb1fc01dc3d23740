package onnx

import (
	"context"
	"fmt"
	"image"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
	"bloodcell-inference-service/internal/imaging"
)

const defaultIoU = 0.7

type detector struct {
	*binding
	info          domain.ModelInfo
	size          int
	numClasses    int
	anchors       int
	maxDetections int
}

func (d *detector) Detect(ctx context.Context, img image.Image, opts ports.DetectOptions) ([]domain.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, lb := imaging.Letterbox(img, d.size)
	out, err := d.run(input)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	candidates := decodeYOLO(out, d.numClasses, d.anchors, opts.Conf)
	dets := make([]domain.Detection, 0, len(candidates))
	for _, c := range candidates {
		box := lb.ToSource(c.box).Clamp(bounds)
		if box.Area() == 0 {
			continue
		}
		dets = append(dets, domain.Detection{
			Class:      d.label(c.classID),
			ClassID:    c.classID,
			Confidence: c.score,
			BBox:       box,
		})
	}

	iou := opts.IoU
	if iou <= 0 {
		iou = defaultIoU
	}
	return nonMaxSuppression(dets, iou, d.maxDetections), nil
}

func (d *detector) label(id int) string {
	if id >= 0 && id < len(d.info.Labels) {
		return d.info.Labels[id]
	}
	return fmt.Sprintf("class_%d", id)
}

func (d *detector) Info() domain.ModelInfo { return d.info }

func (d *detector) Close() error { return d.close() }
