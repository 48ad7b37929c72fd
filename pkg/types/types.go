package types

import (
	"errors"
	"fmt"
	"math"

	"github.com/menta2k/cropkit/pkg/crop"
	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/transform"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// ParamsVersion is written into every serialized EditParams
const ParamsVersion = 1

// ErrInvalidParams marks edit parameters that cannot be resumed
var ErrInvalidParams = errors.New("invalid edit params")

// EditParams is the serialized form of an editing session: enough to render
// the same output again or reopen the editor where the user left off.
// Crop is in editor units of an Editor-sized display, after rotation.
type EditParams struct {
	Version        int            `json:"version"`
	SessionID      string         `json:"session_id,omitempty"`
	Rotation       int            `json:"rotation"`
	FlipHorizontal bool           `json:"flip_horizontal"`
	FlipVertical   bool           `json:"flip_vertical"`
	Scale          float64        `json:"scale"`
	Offset         geometry.Point `json:"offset"`
	Crop           geometry.Rect  `json:"crop"`
	Editor         geometry.Size  `json:"editor"`
	Shape          crop.Shape     `json:"shape"`
	MaxAspectRatio float64        `json:"max_aspect_ratio,omitempty"`
}

// State returns the transform parameters
func (p EditParams) State() transform.State {
	return transform.State{
		Rotation:       p.Rotation,
		FlipHorizontal: p.FlipHorizontal,
		FlipVertical:   p.FlipVertical,
		Scale:          p.Scale,
		Offset:         p.Offset,
	}.Normalize()
}

// SetState copies a transform state into the params
func (p *EditParams) SetState(s transform.State) {
	p.Rotation = s.Rotation
	p.FlipHorizontal = s.FlipHorizontal
	p.FlipVertical = s.FlipVertical
	p.Scale = s.Scale
	p.Offset = s.Offset
}

// NormalizedCrop returns the crop as fractions of the editor size
func (p EditParams) NormalizedCrop() Box {
	if p.Editor.Empty() {
		return Box{}
	}
	return Box{
		X: p.Crop.X / p.Editor.Width,
		Y: p.Crop.Y / p.Editor.Height,
		W: p.Crop.Width / p.Editor.Width,
		H: p.Crop.Height / p.Editor.Height,
	}
}

// Validate checks that the params describe a crop inside the editor bounds
func (p EditParams) Validate() error {
	if p.Version > ParamsVersion {
		return fmt.Errorf("%w: version %d is newer than supported %d", ErrInvalidParams, p.Version, ParamsVersion)
	}
	if p.Editor.Empty() {
		return fmt.Errorf("%w: editor size %vx%v", ErrInvalidParams, p.Editor.Width, p.Editor.Height)
	}
	if p.Crop.Width <= 0 || p.Crop.Height <= 0 {
		return fmt.Errorf("%w: empty crop %s", ErrInvalidParams, p.Crop)
	}
	if !crop.WithinBounds(p.Crop, p.Editor) {
		return fmt.Errorf("%w: crop %s outside editor %vx%v", ErrInvalidParams, p.Crop, p.Editor.Width, p.Editor.Height)
	}
	if math.IsNaN(p.Scale) || p.Scale < 0 || p.Scale > transform.MaxScale {
		return fmt.Errorf("%w: scale %v", ErrInvalidParams, p.Scale)
	}
	return nil
}
