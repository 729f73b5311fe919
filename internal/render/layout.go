package render

import "math"

// Fit is the placement of a frame inside a view.
type Fit struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// AspectFit scales a frame to fit the view with letterboxing.
func AspectFit(viewW, viewH, frameW, frameH float64) Fit {
	if frameW <= 0 || frameH <= 0 {
		return Fit{Scale: 1}
	}
	s := math.Min(viewW/frameW, viewH/frameH)
	return Fit{
		Scale:   s,
		OffsetX: (viewW - frameW*s) / 2,
		OffsetY: (viewH - frameH*s) / 2,
	}
}
