//go:build gocv
// +build gocv

package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
)

const (
	fontScale = 0.5
	fontFace  = gocv.FontHersheySimplex
)

type annotator struct{}

// New returns an annotator backed by OpenCV
func New() ports.Annotator {
	return &annotator{}
}

func (a *annotator) Annotate(img image.Image, detections []domain.Detection, showLabels bool) (image.Image, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	defer mat.Close()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, d := range detections {
		r := d.BBox.Rect()
		c := colorFor(d.ClassID)
		gocv.Rectangle(&mat, r, c, thickness)

		if !showLabels {
			continue
		}
		text := labelText(d)
		size := gocv.GetTextSize(text, fontFace, fontScale, 1)
		top := r.Min.Y - size.Y - 6
		if top < 0 {
			top = r.Min.Y
		}
		gocv.Rectangle(&mat, image.Rect(r.Min.X, top, r.Min.X+size.X+4, top+size.Y+6), c, -1)
		gocv.PutText(&mat, text, image.Pt(r.Min.X+2, top+size.Y+2), fontFace, fontScale, white, 1)
	}

	return mat.ToImage()
}
