package crop

import (
	"github.com/menta2k/cropkit/pkg/geometry"
)

// WithinBounds reports whether every edge of r lies inside a limit-sized
// image, allowing geometry.Epsilon of drift.
func WithinBounds(r geometry.Rect, limit geometry.Size) bool {
	const eps = geometry.Epsilon
	return r.MinX() >= -eps &&
		r.MinY() >= -eps &&
		r.MaxX() <= limit.Width+eps &&
		r.MaxY() <= limit.Height+eps
}

// MeetsMinimumSize is strict: a rect exactly minSize wide is too small.
func MeetsMinimumSize(r geometry.Rect, minSize float64) bool {
	return r.Width > minSize && r.Height > minSize
}

// IsValid gates proposals before they are committed
func IsValid(r geometry.Rect, limit geometry.Size, minSize float64) bool {
	return WithinBounds(r, limit) && MeetsMinimumSize(r, minSize)
}
