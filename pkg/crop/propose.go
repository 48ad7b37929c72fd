package crop

import (
	"github.com/menta2k/cropkit/pkg/geometry"
)

// Propose computes the tentative rect for dragging zone z by (dx, dy).
// Handle zones move their edges; Interior translates the rect. The result is
// then capped to maxAspect (height/width, zero for none). Proposals are not
// validated here.
func Propose(r geometry.Rect, z Zone, dx, dy, maxAspect float64) geometry.Rect {
	if z == ZoneNone {
		return r
	}
	if z == ZoneInterior {
		return r.Translate(dx, dy)
	}

	switch {
	case z.movesTop():
		r.Y += dy
		r.Height -= dy
	case z.movesBottom():
		r.Height += dy
	}

	switch {
	case z.movesLeft():
		r.X += dx
		r.Width -= dx
	case z.movesRight():
		r.Width += dx
	}

	return ClampAspect(r, z, maxAspect)
}

// ClampAspect enforces height/width <= maxAspect. Left and right drags derive
// the height from the width and keep the vertical center; everything else
// derives the width from the height and keeps the horizontal center.
func ClampAspect(r geometry.Rect, z Zone, maxAspect float64) geometry.Rect {
	if maxAspect <= 0 || z == ZoneInterior || r.Width <= 0 {
		return r
	}
	if r.Height/r.Width <= maxAspect+geometry.Epsilon {
		return r
	}

	if z == ZoneLeft || z == ZoneRight {
		h := maxAspect * r.Width
		r.Y += (r.Height - h) / 2
		r.Height = h
		return r
	}

	w := r.Height / maxAspect
	r.X -= (w - r.Width) / 2
	r.Width = w
	return r
}
