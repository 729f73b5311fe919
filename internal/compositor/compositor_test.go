package compositor

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleNeverUpscales(t *testing.T) {
	c := New(1280, nil)
	assert.Equal(t, 1.0, c.Scale(800))
	assert.Equal(t, 1.0, c.Scale(1280))
	assert.InDelta(t, 0.5, c.Scale(2560), 1e-9)
}

func TestComposeKeepsSmallFrameWidth(t *testing.T) {
	c := New(1280, nil)
	src := image.NewRGBA(image.Rect(0, 0, 800, 600))

	out := c.Compose(src, image.Pt(10, 10))
	assert.Equal(t, 800, out.Bounds().Dx())
	assert.Equal(t, 600, out.Bounds().Dy())
}

func TestComposeDownscalesPreservingAspect(t *testing.T) {
	c := New(1280, nil)
	src := image.NewRGBA(image.Rect(0, 0, 2560, 1440))

	out := c.Compose(src, image.Pt(0, 0))
	assert.Equal(t, 1280, out.Bounds().Dx())
	assert.Equal(t, 720, out.Bounds().Dy())
}

func TestComposePlacesMarkerAtScaledCursor(t *testing.T) {
	marker := image.NewRGBA(image.Rect(0, 0, 1, 1))
	marker.Set(0, 0, color.RGBA{R: 255, A: 255})
	c := New(100, marker)
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))

	out := c.Compose(src, image.Pt(100, 50))
	require.Equal(t, 100, out.Bounds().Dx())

	// (100,50) scaled by 0.5 is (50,25); the anchor shifts one pixel up.
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(50, 24))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(50, 25))
}

func TestComposeSecondaryDisplayCursor(t *testing.T) {
	marker := image.NewRGBA(image.Rect(0, 0, 1, 1))
	marker.Set(0, 0, color.RGBA{G: 255, A: 255})
	c := New(1280, marker)
	// A display to the right of a 1920-wide primary.
	src := image.NewRGBA(image.Rect(1920, 0, 1920+800, 600))

	out := c.Compose(src, image.Pt(2000, 100))
	assert.Equal(t, image.Rect(0, 0, 800, 600), out.Bounds())
	assert.Equal(t, color.RGBA{G: 255, A: 255}, out.RGBAAt(80, 99))
}

func TestComposeLeavesSourceUntouched(t *testing.T) {
	marker := image.NewRGBA(image.Rect(0, 0, 1, 1))
	marker.Set(0, 0, color.RGBA{B: 255, A: 255})
	c := New(1280, marker)
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	src.Set(3, 3, color.RGBA{R: 9, A: 255})

	out := c.Compose(src, image.Pt(10, 11))
	assert.NotSame(t, src, out)
	assert.Equal(t, color.RGBA{B: 255, A: 255}, out.RGBAAt(10, 10))
	assert.Equal(t, color.RGBA{R: 9, A: 255}, out.RGBAAt(3, 3))
	assert.Equal(t, color.RGBA{}, src.RGBAAt(10, 10))
}

func TestComposeCursorOffscreenIsClipped(t *testing.T) {
	c := New(1280, nil)
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))

	assert.NotPanics(t, func() {
		c.Compose(src, image.Pt(63, 63))
		c.Compose(src, image.Pt(-40, 500))
	})
}

func TestDefaultMarkerTipIsOpaque(t *testing.T) {
	m := DefaultMarker()
	_, _, _, a := m.At(0, 0).RGBA()
	assert.NotZero(t, a)
	_, _, _, a = m.At(10, 0).RGBA()
	assert.Zero(t, a)
}
