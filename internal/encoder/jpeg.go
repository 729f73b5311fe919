package encoder

import (
	"bytes"
	"image"
	"image/jpeg"
	"sync/atomic"
)

// JPEGEncoder encodes frames as JPEG.
type JPEGEncoder struct {
	quality atomic.Int32
}

// NewJPEGEncoder creates a JPEG encoder with the given quality (1-100).
func NewJPEGEncoder(quality int) *JPEGEncoder {
	e := &JPEGEncoder{}
	e.SetQuality(quality)
	return e
}

func (e *JPEGEncoder) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(256 * 1024)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.Quality()}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SetQuality clamps quality into 1-100.
func (e *JPEGEncoder) SetQuality(quality int) {
	e.quality.Store(int32(clampQuality(quality)))
}

func (e *JPEGEncoder) Quality() int {
	return int(e.quality.Load())
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
