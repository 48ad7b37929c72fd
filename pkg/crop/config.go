package crop

import (
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/cropkit/pkg/geometry"
)

// Shape is the crop outline the editor enforces
type Shape int

const (
	ShapeFree Shape = iota
	ShapeSquare
	ShapeCircle
)

var shapeNames = map[Shape]string{
	ShapeFree:   "free",
	ShapeSquare: "square",
	ShapeCircle: "circle",
}

func (s Shape) String() string {
	if n, ok := shapeNames[s]; ok {
		return n
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// Fixed reports whether the shape forbids independent resizing
func (s Shape) Fixed() bool {
	return s == ShapeSquare || s == ShapeCircle
}

// ParseShape converts a config or flag value into a Shape
func ParseShape(v string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "free", "none":
		return ShapeFree, nil
	case "square":
		return ShapeSquare, nil
	case "circle":
		return ShapeCircle, nil
	}
	return ShapeFree, fmt.Errorf("unknown crop shape %q (use free, square or circle)", v)
}

func (s Shape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(b []byte) error {
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Config holds the interaction constants of the crop engine
type Config struct {
	// HandleThreshold is the fixed inner hit-test distance. The effective
	// inner distance on each axis is min(HandleThreshold, dimension/3).
	HandleThreshold float64
	// OuterThreshold is how far outside the rect a handle can still be grabbed.
	OuterThreshold float64
	// MinimumSize is the strict lower bound on crop width and height.
	MinimumSize float64
	// MaxAspectRatio caps height/width. Zero disables the cap.
	MaxAspectRatio float64
	Shape          Shape
}

// DefaultConfig returns the stock editor constants
func DefaultConfig() Config {
	return Config{
		HandleThreshold: 44,
		OuterThreshold:  22,
		MinimumSize:     44,
	}
}

// Validate checks the configuration for values the engine cannot honour
func (c Config) Validate() error {
	if c.HandleThreshold <= 0 {
		return fmt.Errorf("handle threshold must be positive")
	}
	if c.OuterThreshold < 0 {
		return fmt.Errorf("outer threshold must not be negative")
	}
	if c.MinimumSize < 0 {
		return fmt.Errorf("minimum size must not be negative")
	}
	if c.MaxAspectRatio < 0 || math.IsNaN(c.MaxAspectRatio) {
		return fmt.Errorf("max aspect ratio must be zero or positive")
	}
	if _, ok := shapeNames[c.Shape]; !ok {
		return fmt.Errorf("unknown shape %d", int(c.Shape))
	}
	return nil
}

// AspectRatio represents common aspect ratios
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Common aspect ratios
var (
	Square    = AspectRatio{1, 1, "square"}
	Portrait  = AspectRatio{3, 4, "portrait"}
	Landscape = AspectRatio{4, 3, "landscape"}
	Instagram = AspectRatio{4, 5, "instagram"}
	Story     = AspectRatio{9, 16, "story"}
)

// CommonAspectRatios returns the presets offered for the max-aspect cap
func CommonAspectRatios() []AspectRatio {
	return []AspectRatio{Square, Portrait, Landscape, Instagram, Story}
}

// HeightOverWidth converts the preset into the engine's ratio convention
func (a AspectRatio) HeightOverWidth() float64 {
	if a.Width == 0 {
		return 0
	}
	return float64(a.Height) / float64(a.Width)
}

// LookupAspectRatio finds a preset by name
func LookupAspectRatio(name string) (AspectRatio, bool) {
	for _, a := range CommonAspectRatios() {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return AspectRatio{}, false
}

// InitialRegion returns the crop a fresh session starts with: the whole image,
// or the largest centered square for fixed shapes, then capped to the max
// aspect ratio around its center.
func InitialRegion(limit geometry.Size, cfg Config) geometry.Rect {
	r := geometry.Rect{Width: limit.Width, Height: limit.Height}
	if cfg.Shape.Fixed() {
		side := math.Min(limit.Width, limit.Height)
		r = geometry.Rect{
			X:      (limit.Width - side) / 2,
			Y:      (limit.Height - side) / 2,
			Width:  side,
			Height: side,
		}
	}
	if cfg.MaxAspectRatio > 0 && r.AspectRatio() > cfg.MaxAspectRatio+geometry.Epsilon {
		// Shrink the height rather than widening past the image.
		h := cfg.MaxAspectRatio * r.Width
		r.Y += (r.Height - h) / 2
		r.Height = h
	}
	return r
}
