package decoder

import "image"

// Decoder turns received frame bytes into an RGBA surface.
type Decoder interface {
	Decode(data []byte) (*image.RGBA, error)
}
