// Package imaging turns uploaded bytes into model input tensors and back into encoded images.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"regexp"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"bloodcell-inference-service/internal/core/domain"
)

// JPEGQuality matches the encoder default used for annotated images
const JPEGQuality = 75

// LetterboxFill is the gray value used to pad detector inputs
const LetterboxFill = 114

var dataURLPrefix = regexp.MustCompile(`^data:image/[\w.+-]+;base64,`)

// DefaultMaxPixels is the decoded size above which an upload is refused.
// It matches Pillow's decompression bomb limit.
const DefaultMaxPixels = 178956970

// Decode reads any registered image format and returns an RGB copy. Images
// with more than maxPixels pixels are rejected before decoding; maxPixels <= 0
// means DefaultMaxPixels.
func Decode(data []byte, maxPixels int64) (*image.RGBA, string, error) {
	if len(data) == 0 {
		return nil, "", domain.ErrMissingImage
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", domain.ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrInvalidImage, err)
	}
	return ToRGBA(img), format, nil
}

// ToRGBA drops the alpha channel and keeps the stored colour of every pixel,
// so a fully transparent pixel keeps its RGB rather than turning black or white.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	return out
}

// DecodeBase64 accepts plain base64 or a data URL
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, domain.ErrMissingImage
	}
	s = dataURLPrefix.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad base64: %v", domain.ErrInvalidImage, err)
		}
	}
	return data, nil
}

// EncodeBase64 is the inverse of DecodeBase64 without the data URL prefix
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// EncodeJPEG serializes an image for transport
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Fingerprint is the hex sha256 of the raw upload
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ClassificationTensor resizes img to width x height and scales pixels to [0,1].
func ClassificationTensor(img image.Image, width, height int, layout domain.TensorLayout) []float32 {
	resized := resize.Resize(uint(width), uint(height), img, resize.Bicubic)
	return toTensor(resized, width, height, layout)
}

// LetterboxInfo maps detector coordinates back to the source image
type LetterboxInfo struct {
	Scale float64
	PadX  float64
	PadY  float64
}

// ToSource converts a box from letterboxed input space to source pixels
func (l LetterboxInfo) ToSource(b domain.BoundingBox) domain.BoundingBox {
	return domain.BoundingBox{
		(b[0] - l.PadX) / l.Scale,
		(b[1] - l.PadY) / l.Scale,
		(b[2] - l.PadX) / l.Scale,
		(b[3] - l.PadY) / l.Scale,
	}
}

// Letterbox fits img into a size x size square keeping its aspect ratio and
// returns an NCHW tensor.
func Letterbox(img image.Image, size int) ([]float32, LetterboxInfo) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	padX := (size - nw) / 2
	padY := (size - nh) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	fill := color.RGBA{R: LetterboxFill, G: LetterboxFill, B: LetterboxFill, A: 255}
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)

	resized := resize.Resize(uint(nw), uint(nh), img, resize.Bilinear)
	dst := image.Rect(padX, padY, padX+nw, padY+nh)
	draw.Draw(canvas, dst, resized, resized.Bounds().Min, draw.Src)

	return toTensor(canvas, size, size, domain.LayoutNCHW), LetterboxInfo{
		Scale: scale,
		PadX:  float64(padX),
		PadY:  float64(padY),
	}
}

func toTensor(img image.Image, width, height int, layout domain.TensorLayout) []float32 {
	b := img.Bounds()
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			rf := float32(r>>8) / 255.0
			gf := float32(g>>8) / 255.0
			bf := float32(bl>>8) / 255.0

			idx := y*width + x
			if layout == domain.LayoutNCHW {
				data[idx] = rf
				data[plane+idx] = gf
				data[2*plane+idx] = bf
			} else {
				data[3*idx] = rf
				data[3*idx+1] = gf
				data[3*idx+2] = bf
			}
		}
	}
	return data
}
