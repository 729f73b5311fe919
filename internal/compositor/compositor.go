// Package compositor downscales captured frames and stamps the host
// cursor onto them before encoding.
package compositor

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// DefaultMaxWidth bounds the width of streamed frames.
const DefaultMaxWidth = 1280

// markerAnchorY shifts the marker so its tip lands on the hotspot.
const markerAnchorY = -1

// Compositor resizes frames to at most MaxWidth and overlays a cursor
// marker. The marker image is read-only and may be shared between
// sessions.
type Compositor struct {
	maxWidth int
	marker   image.Image
	scaler   draw.Scaler
}

// New returns a Compositor. A nil marker uses DefaultMarker.
func New(maxWidth int, marker image.Image) *Compositor {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if marker == nil {
		marker = DefaultMarker()
	}
	return &Compositor{
		maxWidth: maxWidth,
		marker:   marker,
		scaler:   draw.ApproxBiLinear,
	}
}

// Scale returns the uniform factor that fits width into MaxWidth. It is
// never greater than 1.
func (c *Compositor) Scale(width int) float64 {
	if width <= c.maxWidth || width <= 0 {
		return 1
	}
	return float64(c.maxWidth) / float64(width)
}

// Compose resizes src into a new image with its origin at (0,0) and draws
// the marker at the scaled cursor position. cursor is in the coordinate
// space of src's bounds. src is not modified.
func (c *Compositor) Compose(src *image.RGBA, cursor image.Point) *image.RGBA {
	b := src.Bounds()
	scale := c.Scale(b.Dx())

	var dst *image.RGBA
	if scale < 1 {
		w := int(math.Round(float64(b.Dx()) * scale))
		h := max(int(math.Round(float64(b.Dy())*scale)), 1)
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
		c.scaler.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	}

	at := image.Point{
		X: int(math.Round(float64(cursor.X-b.Min.X) * scale)),
		Y: int(math.Round(float64(cursor.Y-b.Min.Y)*scale)) + markerAnchorY,
	}
	mb := c.marker.Bounds()
	draw.Draw(dst, mb.Sub(mb.Min).Add(at), c.marker, mb.Min, draw.Over)
	return dst
}

// DefaultMarker draws a small arrow pointer: white fill, black outline,
// tip at (0,0).
func DefaultMarker() *image.RGBA {
	const w, h = 11, 17
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		// Arrow body widens one pixel per row down to the tail.
		width := min(y+1, w)
		if y >= 12 {
			width = 5
		}
		for x := 0; x < width; x++ {
			edge := x == 0 || x == width-1 || y == h-1
			if edge {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}
