package capture

import (
	"errors"
	"image"
)

// ErrNoDisplay is returned when the requested display does not exist.
var ErrNoDisplay = errors.New("capture: display not available")

// Source produces a full-screen pixel buffer on demand. The image bounds
// are in the same coordinate space as the cursor position. Capture may
// fail; callers treat a failure as a skipped frame.
type Source interface {
	Capture() (*image.RGBA, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (*image.RGBA, error)

func (f SourceFunc) Capture() (*image.RGBA, error) { return f() }
