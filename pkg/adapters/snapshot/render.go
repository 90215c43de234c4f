package snapshot

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

const captionHeight = 18

// Render scales src to width pixels, keeping its aspect ratio, and draws a
// caption strip along the bottom edge. A width of zero keeps the original
// size.
func Render(src image.Image, width int, caption string) image.Image {
	b := src.Bounds()
	if width <= 0 || width > b.Dx() {
		width = b.Dx()
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, draw.Src, nil)
	if caption == "" {
		return scaled
	}

	dc := gg.NewContextForRGBA(scaled)
	top := float64(height - captionHeight)
	if top < 0 {
		top = 0
	}
	dc.SetColor(color.RGBA{0, 0, 0, 160})
	dc.DrawRectangle(0, top, float64(width), float64(height)-top)
	dc.Fill()
	dc.SetColor(color.White)
	dc.DrawStringAnchored(caption, 4, top+float64(captionHeight)/2, 0, 0.35)
	return dc.Image()
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
