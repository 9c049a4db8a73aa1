package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siahsang/beatpost/models"
)

func TestLuminance(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    uint8
	}{
		{"black", 0, 0, 0, 0},
		{"white", 255, 255, 255, 255},
		{"pure red", 255, 0, 0, 76},       // 76.245
		{"pure green", 0, 255, 0, 150},    // 149.685
		{"pure blue", 0, 0, 255, 29},      // 29.07
		{"rounds to nearest", 0, 0, 5, 1}, // 0.57
		{"mid gray", 128, 128, 128, 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Luminance(tt.r, tt.g, tt.b))
		})
	}
}

func TestGrayscaleKeepsAlphaAndLength(t *testing.T) {
	pix := []uint8{
		255, 0, 0, 10,
		10, 20, 30, 255,
	}

	out, err := Grayscale(pix)
	require.NoError(t, err)
	assert.Equal(t, []uint8{76, 76, 76, 10, 18, 18, 18, 255}, out)
	assert.Equal(t, uint8(255), pix[0], "input must not be modified")
}

func TestGrayscaleRejectsPartialPixels(t *testing.T) {
	_, err := Grayscale([]uint8{1, 2, 3})
	assert.ErrorIs(t, err, ErrPixelBuffer)
}

func TestGrayscaleImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 255, B: 0, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 0, B: 255, A: 128})

	gray := GrayscaleImage(img)
	assert.Equal(t, color.NRGBA{R: 150, G: 150, B: 150, A: 255}, gray.NRGBAAt(0, 0))
	assert.Equal(t, uint8(128), gray.NRGBAAt(1, 0).A)
}

func TestPrepareUploadProducesJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: 100, B: uint8(y * 30), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	upload, err := PrepareUpload(&models.Upload{Filename: "cover.png", ContentType: "image/png", Data: buf.Bytes()})
	require.NoError(t, err)
	assert.Equal(t, "cover.jpg", upload.Filename)
	assert.Equal(t, "image/jpeg", upload.ContentType)

	decoded, err := jpeg.Decode(bytes.NewReader(upload.Data))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(4, 4).RGBA()
	assert.InDelta(t, r, g, 4*257, "converted pixels must be gray")
	assert.InDelta(t, g, b, 4*257, "converted pixels must be gray")
}

func TestConvertToBWRejectsGarbage(t *testing.T) {
	_, err := ConvertToBW(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}
