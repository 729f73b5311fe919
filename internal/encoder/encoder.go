package encoder

import "image"

// Encoder compresses a composited frame into a lossy image.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
	SetQuality(quality int)
	Quality() int
}
