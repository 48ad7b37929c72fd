// Package transform holds the accumulated rotate/flip/zoom/pan parameters of
// an edit and the operations that update them in lockstep with the crop
// region, plus the affine pipeline that renders the final crop.
package transform

import (
	"math"

	"github.com/menta2k/cropkit/pkg/geometry"
)

// Zoom limits
const (
	MinScale = 1.0
	MaxScale = 10.0
)

// State is the transform applied to the source image before cropping.
//
// FlipVertical mirrors across the vertical axis (left/right) and
// FlipHorizontal mirrors across the horizontal axis (top/bottom). Mirrors are
// applied in display space after the quarter turns.
type State struct {
	Rotation       int            `json:"rotation"`
	FlipHorizontal bool           `json:"flip_horizontal"`
	FlipVertical   bool           `json:"flip_vertical"`
	Scale          float64        `json:"scale"`
	Offset         geometry.Point `json:"offset"`
}

// Identity returns the untransformed state
func Identity() State {
	return State{Scale: MinScale}
}

// Normalize folds Rotation into [0,4) and Scale into [MinScale, MaxScale]
func (s State) Normalize() State {
	s.Rotation = ((s.Rotation % 4) + 4) % 4
	s.Scale = clampScale(s.Scale)
	return s
}

// IsIdentity reports whether s leaves the image untouched
func (s State) IsIdentity() bool {
	n := s.Normalize()
	return n.Rotation == 0 &&
		!n.FlipHorizontal &&
		!n.FlipVertical &&
		math.Abs(n.Scale-MinScale) <= 1e-9 &&
		math.Abs(n.Offset.X) <= geometry.Epsilon &&
		math.Abs(n.Offset.Y) <= geometry.Epsilon
}

// Degrees returns the counter-clockwise rotation in degrees
func (s State) Degrees() int {
	return s.Normalize().Rotation * 90
}

func clampScale(v float64) float64 {
	if math.IsNaN(v) || v < MinScale {
		return MinScale
	}
	if v > MaxScale {
		return MaxScale
	}
	return v
}
