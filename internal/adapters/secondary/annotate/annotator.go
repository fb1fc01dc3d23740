//go:build !gocv
// +build !gocv

package annotate

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
)

type annotator struct {
	face font.Face
}

// New returns an annotator that draws with the standard library image packages
func New() ports.Annotator {
	return &annotator{face: basicfont.Face7x13}
}

func (a *annotator) Annotate(img image.Image, detections []domain.Detection, showLabels bool) (image.Image, error) {
	b := img.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	for _, d := range detections {
		r := d.BBox.Rect().Intersect(canvas.Bounds())
		if r.Empty() {
			continue
		}
		c := colorFor(d.ClassID)
		strokeRect(canvas, r, c)
		if showLabels {
			a.drawLabel(canvas, r, labelText(d), c)
		}
	}
	return canvas, nil
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	src := &image.Uniform{C: c}
	t := thickness
	if r.Dx() < 2*t || r.Dy() < 2*t {
		draw.Draw(dst, r, src, image.Point{}, draw.Src)
		return
	}
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), src, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), src, image.Point{}, draw.Src)
}

// drawLabel puts a filled tag above the box, or inside it at the top edge of the image
func (a *annotator) drawLabel(dst *image.RGBA, box image.Rectangle, text string, c color.RGBA) {
	m := a.face.Metrics()
	height := (m.Ascent + m.Descent).Ceil() + 2
	width := font.MeasureString(a.face, text).Ceil() + 4

	top := box.Min.Y - height
	if top < 0 {
		top = box.Min.Y
	}
	tag := image.Rect(box.Min.X, top, box.Min.X+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, tag, &image.Uniform{C: c}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: a.face,
		Dot:  fixed.P(box.Min.X+2, top+1+m.Ascent.Ceil()),
	}
	d.DrawString(text)
}
