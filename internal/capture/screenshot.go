package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenSource captures one display using kbinani/screenshot.
type ScreenSource struct {
	display int
}

// NewScreenSource creates a capturer for the given display (0 = primary).
func NewScreenSource(displayIndex int) (*ScreenSource, error) {
	if displayIndex < 0 {
		return nil, fmt.Errorf("%w: index %d", ErrNoDisplay, displayIndex)
	}
	if n := screenshot.NumActiveDisplays(); displayIndex >= n {
		return nil, fmt.Errorf("%w: index %d out of range (have %d displays)", ErrNoDisplay, displayIndex, n)
	}
	return &ScreenSource{display: displayIndex}, nil
}

// Capture returns the display's pixels in global desktop coordinates, the
// space the cursor position is reported in.
func (s *ScreenSource) Capture() (*image.RGBA, error) {
	bounds := screenshot.GetDisplayBounds(s.display)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", s.display, err)
	}
	return atOrigin(img, bounds.Min), nil
}

// atOrigin moves img so its top-left corner sits at origin. The pixels are
// shared.
func atOrigin(img *image.RGBA, origin image.Point) *image.RGBA {
	img.Rect = img.Rect.Sub(img.Rect.Min).Add(origin)
	return img
}
