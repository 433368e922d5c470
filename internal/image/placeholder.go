package image

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

// MaxDimension bounds placeholder width and height.
const MaxDimension = 4096

// ErrInvalidDimensions indicates width or height is out of range
var ErrInvalidDimensions = errors.New("invalid dimensions")

// Placeholder renders a width x height PNG card standing in for a generated
// image. The colour comes from a hash of text, so a text always yields the
// same card, and a darker diagonal band tells cards of similar colour apart.
func Placeholder(text string, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d (max %d)", ErrInvalidDimensions, width, height, MaxDimension)
	}

	fill, band := cardColors(text)
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)

	thickness := max(width/8, 1)
	for y := 0; y < height; y++ {
		center := y * width / height
		for x := max(center-thickness+1, 0); x < min(center+thickness, width); x++ {
			img.SetNRGBA(x, y, band)
		}
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// cardColors derives an opaque fill and a half-brightness band from text.
func cardColors(text string) (fill, band color.NRGBA) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum32()

	fill = color.NRGBA{R: uint8(sum >> 16), G: uint8(sum >> 8), B: uint8(sum), A: 255}
	band = color.NRGBA{R: fill.R / 2, G: fill.G / 2, B: fill.B / 2, A: 255}
	return fill, band
}
