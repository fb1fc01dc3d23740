package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodcell-inference-service/internal/core/domain"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode_PNG(t *testing.T) {
	data := pngBytes(t, solid(4, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255}))

	img, format, err := Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, img.RGBAAt(1, 1))
}

func TestDecode_Errors(t *testing.T) {
	_, _, err := Decode(nil, 0)
	assert.ErrorIs(t, err, domain.ErrMissingImage)

	_, _, err = Decode([]byte("definitely not an image"), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
}

func TestDecode_PixelLimit(t *testing.T) {
	// a large flat image compresses to a few kilobytes
	big := image.NewGray(image.Rect(0, 0, 2000, 1500))
	data := pngBytes(t, big)
	require.Less(t, len(data), 1<<20)

	_, _, err := Decode(data, 1000*1000)
	assert.ErrorIs(t, err, domain.ErrImageTooLarge)

	img, _, err := Decode(data, 2000*1500)
	require.NoError(t, err)
	assert.Equal(t, 2000, img.Bounds().Dx())
}

func TestDecode_DropsAlphaKeepsColour(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
	src.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})

	img, _, err := Decode(pngBytes(t, src), 0)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}, img.RGBAAt(1, 0))
}

func TestDecodeBase64(t *testing.T) {
	raw := []byte{0xde, 0xad, 0xbe, 0xef, 0x01}
	enc := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name  string
		input string
	}{
		{name: "plain", input: enc},
		{name: "data url", input: "data:image/jpeg;base64," + enc},
		{name: "unpadded", input: base64.RawStdEncoding.EncodeToString(raw)},
		{name: "wrapped lines", input: enc[:4] + "\n" + enc[4:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBase64(tt.input)
			require.NoError(t, err)
			assert.Equal(t, raw, got)
		})
	}
}

func TestDecodeBase64_Invalid(t *testing.T) {
	_, err := DecodeBase64("")
	assert.ErrorIs(t, err, domain.ErrMissingImage)

	_, err = DecodeBase64("!!!not base64!!!")
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
}

func TestEncodeJPEG_Decodable(t *testing.T) {
	data, err := EncodeJPEG(solid(8, 8, color.RGBA{G: 200, A: 255}))
	require.NoError(t, err)

	img, format, err := Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Fingerprint(nil))
	assert.NotEqual(t, Fingerprint([]byte("a")), Fingerprint([]byte("b")))
}

func TestClassificationTensor_NHWC(t *testing.T) {
	img := solid(10, 10, color.RGBA{R: 255, A: 255})

	data := ClassificationTensor(img, 2, 2, domain.LayoutNHWC)
	require.Len(t, data, 2*2*3)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1.0, data[3*i], 0.01)
		assert.InDelta(t, 0.0, data[3*i+1], 0.01)
		assert.InDelta(t, 0.0, data[3*i+2], 0.01)
	}
}

func TestClassificationTensor_NCHW(t *testing.T) {
	img := solid(6, 6, color.RGBA{B: 255, A: 255})

	data := ClassificationTensor(img, 3, 3, domain.LayoutNCHW)
	require.Len(t, data, 27)
	for i := 0; i < 9; i++ {
		assert.InDelta(t, 0.0, data[i], 0.01)
		assert.InDelta(t, 0.0, data[9+i], 0.01)
		assert.InDelta(t, 1.0, data[18+i], 0.01)
	}
}

func TestLetterbox(t *testing.T) {
	img := solid(200, 100, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	data, info := Letterbox(img, 64)
	require.Len(t, data, 3*64*64)
	assert.InDelta(t, 0.32, info.Scale, 1e-9)
	assert.Equal(t, 0.0, info.PadX)
	assert.Equal(t, 16.0, info.PadY)

	// top-left corner is padding, centre is image
	assert.InDelta(t, float32(LetterboxFill)/255, data[0], 1e-6)
	centre := 32*64 + 32
	assert.InDelta(t, 1.0, data[centre], 0.01)

	src := info.ToSource(domain.BoundingBox{0, 16, 64, 48})
	assert.InDelta(t, 0, src[0], 1e-9)
	assert.InDelta(t, 0, src[1], 1e-9)
	assert.InDelta(t, 200, src[2], 1e-9)
	assert.InDelta(t, 100, src[3], 1e-9)
}
