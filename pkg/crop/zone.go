// Package crop implements the interactive crop-region engine: hit testing a
// touch against the crop handles, proposing resized rectangles for a drag and
// gating every proposal on containment and minimum size.
package crop

import (
	"math"

	"github.com/menta2k/cropkit/pkg/geometry"
)

// Zone classifies a touch relative to the crop rect's handles
type Zone int

const (
	ZoneNone Zone = iota
	ZoneTopLeft
	ZoneTop
	ZoneTopRight
	ZoneRight
	ZoneBottomRight
	ZoneBottom
	ZoneBottomLeft
	ZoneLeft
	ZoneInterior
)

var zoneNames = [...]string{
	ZoneNone:        "none",
	ZoneTopLeft:     "top-left",
	ZoneTop:         "top",
	ZoneTopRight:    "top-right",
	ZoneRight:       "right",
	ZoneBottomRight: "bottom-right",
	ZoneBottom:      "bottom",
	ZoneBottomLeft:  "bottom-left",
	ZoneLeft:        "left",
	ZoneInterior:    "interior",
}

func (z Zone) String() string {
	if z < 0 || int(z) >= len(zoneNames) {
		return "unknown"
	}
	return zoneNames[z]
}

// IsCorner reports whether z is one of the four corner handles
func (z Zone) IsCorner() bool {
	switch z {
	case ZoneTopLeft, ZoneTopRight, ZoneBottomLeft, ZoneBottomRight:
		return true
	}
	return false
}

// IsEdge reports whether z is one of the four edge handles
func (z Zone) IsEdge() bool {
	switch z {
	case ZoneTop, ZoneRight, ZoneBottom, ZoneLeft:
		return true
	}
	return false
}

func (z Zone) movesTop() bool {
	return z == ZoneTop || z == ZoneTopLeft || z == ZoneTopRight
}

func (z Zone) movesBottom() bool {
	return z == ZoneBottom || z == ZoneBottomLeft || z == ZoneBottomRight
}

func (z Zone) movesLeft() bool {
	return z == ZoneLeft || z == ZoneTopLeft || z == ZoneBottomLeft
}

func (z Zone) movesRight() bool {
	return z == ZoneRight || z == ZoneTopRight || z == ZoneBottomRight
}

// Classify returns the zone of point p relative to rect r.
//
// Each edge band spans from OuterThreshold outside the edge to the inner
// threshold inside it, where the inner threshold is capped at a third of the
// rect's extent on that axis so small rects keep a grabbable interior.
// Corners take priority over single edges.
func Classify(r geometry.Rect, p geometry.Point, cfg Config) Zone {
	outer := cfg.OuterThreshold
	if !r.Inset(-outer).ContainsClosed(p) {
		return ZoneNone
	}

	innerH := math.Min(cfg.HandleThreshold, r.Width/3)
	innerV := math.Min(cfg.HandleThreshold, r.Height/3)

	nearTop := p.Y >= r.MinY()-outer && p.Y <= r.MinY()+innerV
	nearBottom := p.Y >= r.MaxY()-innerV && p.Y <= r.MaxY()+outer
	nearLeft := p.X >= r.MinX()-outer && p.X <= r.MinX()+innerH
	nearRight := p.X >= r.MaxX()-innerH && p.X <= r.MaxX()+outer

	switch {
	case nearLeft && nearTop:
		return ZoneTopLeft
	case nearRight && nearTop:
		return ZoneTopRight
	case nearLeft && nearBottom:
		return ZoneBottomLeft
	case nearRight && nearBottom:
		return ZoneBottomRight
	case nearTop:
		return ZoneTop
	case nearBottom:
		return ZoneBottom
	case nearLeft:
		return ZoneLeft
	case nearRight:
		return ZoneRight
	case r.Contains(p):
		return ZoneInterior
	}
	return ZoneNone
}

// ForShape collapses handle zones to Interior when the shape is fixed, so a
// square or circle crop moves as one body instead of resizing.
func ForShape(z Zone, shape Shape) Zone {
	if shape.Fixed() && (z.IsCorner() || z.IsEdge()) {
		return ZoneInterior
	}
	return z
}
