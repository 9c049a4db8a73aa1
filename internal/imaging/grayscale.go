// Package imaging turns uploaded pictures black and white before they are
// attached to a post.
package imaging

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/beatpost/models"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is the encoder quality of converted uploads.
const JPEGQuality = 80

var ErrPixelBuffer = xerrors.Message("pixel buffer length must be a multiple of 4")

// Luminance returns round(0.299R + 0.587G + 0.114B), halves rounded up.
func Luminance(r, g, b uint8) uint8 {
	v := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	return uint8(math.Min(255, math.Floor(v+0.5)))
}

// Grayscale maps an RGBA pixel buffer to a new buffer of the same length where
// each pixel's R, G and B hold its luminance. Alpha is kept.
func Grayscale(pix []uint8) ([]uint8, error) {
	if len(pix)%4 != 0 {
		return nil, ErrPixelBuffer
	}

	out := make([]uint8, len(pix))
	for i := 0; i < len(pix); i += 4 {
		gray := Luminance(pix[i], pix[i+1], pix[i+2])
		out[i] = gray
		out[i+1] = gray
		out[i+2] = gray
		out[i+3] = pix[i+3]
	}
	return out, nil
}

// GrayscaleImage works on non-premultiplied pixels, as a canvas would.
func GrayscaleImage(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	src := image.NewNRGBA(bounds)
	draw.Draw(src, bounds, img, bounds.Min, draw.Src)

	// src.Pix always has a length divisible by 4.
	pix, _ := Grayscale(src.Pix)
	return &image.NRGBA{Pix: pix, Stride: src.Stride, Rect: bounds}
}

// ConvertToBW decodes a JPEG, PNG, GIF or WebP image and re-encodes its
// grayscale version as JPEG.
func ConvertToBW(r io.Reader) ([]byte, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, xerrors.Newf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, GrayscaleImage(img), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, xerrors.Newf("encode %s image as jpeg: %w", format, err)
	}
	return buf.Bytes(), nil
}

// PrepareUpload returns the black and white JPEG version of upload.
func PrepareUpload(upload *models.Upload) (*models.Upload, error) {
	data, err := ConvertToBW(bytes.NewReader(upload.Data))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(upload.Filename, filepath.Ext(upload.Filename))
	if name == "" {
		name = "image"
	}
	return &models.Upload{
		Filename:    name + ".jpg",
		ContentType: "image/jpeg",
		Data:        data,
	}, nil
}
