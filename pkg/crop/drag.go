package crop

import (
	"log/slog"

	"github.com/menta2k/cropkit/pkg/geometry"
)

// Tracker owns the committed crop region and turns a stream of drag points
// into validated updates. It is not safe for concurrent use.
type Tracker struct {
	cfg    Config
	limit  geometry.Size
	region geometry.Rect

	zone     Zone
	last     geometry.Point
	dragging bool
}

// NewTracker starts tracking region inside a limit-sized image
func NewTracker(cfg Config, limit geometry.Size, region geometry.Rect) *Tracker {
	return &Tracker{cfg: cfg, limit: limit, region: region}
}

// Config returns the tracker's interaction constants
func (t *Tracker) Config() Config { return t.cfg }

// Region returns the committed crop rect
func (t *Tracker) Region() geometry.Rect { return t.region }

// Limit returns the image bounds the region must stay within
func (t *Tracker) Limit() geometry.Size { return t.limit }

// Zone returns the zone of the drag in progress, or ZoneNone
func (t *Tracker) Zone() Zone { return t.zone }

// Dragging reports whether Begin has been called without a matching End
func (t *Tracker) Dragging() bool { return t.dragging }

// SetRegion replaces the committed region without validation. Callers that
// remap the region wholesale (rotation, flip, reset) use this.
func (t *Tracker) SetRegion(r geometry.Rect) { t.region = r }

// SetLimit replaces the containing image size
func (t *Tracker) SetLimit(s geometry.Size) { t.limit = s }

// Begin classifies p against the committed region and starts a drag
func (t *Tracker) Begin(p geometry.Point) Zone {
	t.zone = ForShape(Classify(t.region, p, t.cfg), t.cfg.Shape)
	t.last = p
	t.dragging = t.zone != ZoneNone
	slog.Debug("crop drag begin", "point", p, "zone", t.zone.String(), "region", t.region.String())
	return t.zone
}

// Move feeds the next touch location of the current drag
func (t *Tracker) Move(p geometry.Point) bool {
	if !t.dragging {
		return false
	}
	d := p.Sub(t.last)
	t.last = p
	return t.Apply(d.X, d.Y)
}

// Apply runs one drag step of (dx, dy) for the current zone. The horizontal
// and vertical adjustments are proposed and validated separately, so one axis
// can be accepted while the other is rejected. It reports whether the
// committed region changed.
func (t *Tracker) Apply(dx, dy float64) bool {
	if t.zone == ZoneNone {
		return false
	}
	before := t.region
	if dx != 0 {
		t.commit(Propose(t.region, t.zone, dx, 0, t.cfg.MaxAspectRatio))
	}
	if dy != 0 {
		t.commit(Propose(t.region, t.zone, 0, dy, t.cfg.MaxAspectRatio))
	}
	return t.region != before
}

// End finishes the current drag
func (t *Tracker) End() {
	t.zone = ZoneNone
	t.dragging = false
}

func (t *Tracker) commit(candidate geometry.Rect) {
	if !IsValid(candidate, t.limit, t.cfg.MinimumSize) {
		slog.Debug("crop proposal rejected", "zone", t.zone.String(), "candidate", candidate.String())
		return
	}
	t.region = candidate
}
