package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/menta2k/cropkit/pkg/client"
	"github.com/menta2k/cropkit/pkg/crop"
	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/processing"
	"github.com/menta2k/cropkit/pkg/types"
)

// DefaultMaxDim bounds the long side of images sent to the model
const DefaultMaxDim = 1024

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt is the default prompt for subject detection
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels).
- The box center must satisfy: abs(cx - 0.5) <= 0.10 and abs(cy - 0.5) <= 0.10.
- If your best box violates it, ADJUST the box so its center lies on the nearest allowed boundary.
- The box should tightly include the visually dominant subject (prefer people/vehicles/animals; else the most central salient object).
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates.
- If no subject is found, return:
  {
    "primary":{"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.50,"h":0.50},"cx":0.5,"cy":0.5},
    "description":"centered generic scene",
    "tags":["generic","center","subject","photo","scene"]
  }
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Detector locates the subject of an image with a vision model and turns it
// into a starting crop region
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	model     string
	maxDim    int
}

// NewDetector creates a new detector that queries model through client
func NewDetector(client client.VisionClient, model string) *Detector {
	return &Detector{
		client:    client,
		processor: processing.NewProcessor(),
		model:     model,
		maxDim:    DefaultMaxDim,
	}
}

// SetMaxDim changes the long side images are downsized to before upload
func (d *Detector) SetMaxDim(maxDim int) {
	d.maxDim = maxDim
}

// Model returns the model the detector queries
func (d *Detector) Model() string { return d.model }

// DetectSubject analyzes an image and detects the primary subject
func (d *Detector) DetectSubject(ctx context.Context, imageB64 string) (*types.AnalysisResult, error) {
	result, err := d.DetectSubjectWithPrompt(ctx, imageB64, DefaultPrompt)
	if err != nil {
		return nil, err
	}

	// Validate and adjust result based on confidence and common sense
	result = d.validateAndAdjustResult(result)

	return result, nil
}

// DetectSubjectWithPrompt analyzes an image with a custom prompt
func (d *Detector) DetectSubjectWithPrompt(ctx context.Context, imageB64, prompt string) (*types.AnalysisResult, error) {
	result, err := d.client.AnalyzeImage(ctx, d.model, prompt, imageB64)
	if err != nil {
		return nil, fmt.Errorf("detect subject: %w", err)
	}

	result.Primary.Box = normalizeBox(result.Primary.Box)
	result.Tags = normalizeTags(result.Tags)

	return result, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, d.model, SimpleTestPrompt, imageB64)
}

// Suggestion is a detected subject and the crop region derived from it
type Suggestion struct {
	Analysis *types.AnalysisResult
	Region   geometry.Rect
	Fallback bool
}

// SuggestRegion detects the subject of img and frames it in an editor of the
// given size. padding grows the subject box by that fraction of its size on
// every side. When nothing usable is detected the session's default region is
// suggested instead.
func (d *Detector) SuggestRegion(ctx context.Context, img image.Image, editor geometry.Size, cfg crop.Config, padding float64) (*Suggestion, error) {
	if img == nil || editor.Empty() {
		return nil, fmt.Errorf("suggest region: empty image or editor")
	}

	b64, err := d.processor.EncodeForModel(img, processing.FormatJPEG, d.maxDim, 85)
	if err != nil {
		return nil, fmt.Errorf("suggest region: %w", err)
	}

	result, err := d.DetectSubject(ctx, b64)
	if err != nil {
		return nil, err
	}

	s := &Suggestion{Analysis: result}
	if strings.EqualFold(result.Primary.Label, "none") || result.Primary.Box.W <= 0 || result.Primary.Box.H <= 0 {
		s.Region = crop.InitialRegion(editor, cfg)
		s.Fallback = true
		return s, nil
	}

	s.Region, s.Fallback = RegionFromBox(result.Primary.Box, editor, cfg, padding)
	slog.Debug("suggested region", "label", result.Primary.Label, "region", s.Region.String(), "fallback", s.Fallback)
	return s, nil
}

// RegionFromBox converts a normalized subject box into a crop region that the
// drag tracker would accept: inside the editor, above the minimum size, square
// for fixed shapes and within the max aspect ratio. It reports true when the
// box could not be framed and the default region was used instead.
func RegionFromBox(box types.Box, editor geometry.Size, cfg crop.Config, padding float64) (geometry.Rect, bool) {
	box = normalizeBox(box)
	padding = math.Max(padding, 0)

	r := geometry.Rect{
		X:      (box.X - box.W*padding) * editor.Width,
		Y:      (box.Y - box.H*padding) * editor.Height,
		Width:  box.W * (1 + 2*padding) * editor.Width,
		Height: box.H * (1 + 2*padding) * editor.Height,
	}

	if cfg.Shape.Fixed() {
		side := math.Max(r.Width, r.Height)
		r = centeredOn(r.Center(), side, side)
	}

	// Grow to just above the minimum around the subject center.
	grow := cfg.MinimumSize + 1
	if r.Width <= cfg.MinimumSize || r.Height <= cfg.MinimumSize {
		r = centeredOn(r.Center(), math.Max(r.Width, grow), math.Max(r.Height, grow))
	}

	r = crop.ClampAspect(r, crop.ZoneNone, cfg.MaxAspectRatio)
	r = fitInto(r, editor, cfg.Shape.Fixed())
	if cfg.MaxAspectRatio > 0 && r.AspectRatio() > cfg.MaxAspectRatio+geometry.Epsilon {
		r = fitInto(crop.ClampAspect(r, crop.ZoneLeft, cfg.MaxAspectRatio), editor, cfg.Shape.Fixed())
	}

	if !crop.IsValid(r, editor, cfg.MinimumSize) {
		return crop.InitialRegion(editor, cfg), true
	}
	return r, false
}

func centeredOn(c geometry.Point, w, h float64) geometry.Rect {
	return geometry.Rect{X: c.X - w/2, Y: c.Y - h/2, Width: w, Height: h}
}

// fitInto shrinks r to the editor if it is larger, then slides it inside
func fitInto(r geometry.Rect, editor geometry.Size, square bool) geometry.Rect {
	c := r.Center()
	w := math.Min(r.Width, editor.Width)
	h := math.Min(r.Height, editor.Height)
	if square {
		w = math.Min(w, h)
		h = w
	}
	r = centeredOn(c, w, h)
	r.X = clamp(r.X, 0, editor.Width-r.Width)
	r.Y = clamp(r.Y, 0, editor.Height-r.Height)
	return r
}

// validateAndAdjustResult validates the detection result and adjusts for reliability
func (d *Detector) validateAndAdjustResult(result *types.AnalysisResult) *types.AnalysisResult {
	// Check if this is a "none" result from the prompt (which is good)
	if strings.ToLower(result.Primary.Label) == "none" {
		// This is the expected fallback from the prompt, keep as-is
		return result
	}

	// Normalize the bounding box based on the center constraint
	// The prompt requires abs(cx - 0.5) <= 0.10 and abs(cy - 0.5) <= 0.10
	if math.Abs(result.Primary.Cx-0.5) > 0.10 || math.Abs(result.Primary.Cy-0.5) > 0.10 {
		// Adjust to nearest valid center
		result.Primary.Cx = clamp(result.Primary.Cx, 0.4, 0.6)
		result.Primary.Cy = clamp(result.Primary.Cy, 0.4, 0.6)
	}

	// If any fallback indicators are present, ensure it's marked as such
	fallbackIndicators := []string{"unclear", "empty", "parse", "error", "fallback", "non-json", "generic"}
	for _, indicator := range fallbackIndicators {
		if strings.Contains(strings.ToLower(result.Primary.Label), indicator) ||
			strings.Contains(strings.ToLower(result.Description), indicator) {
			if result.Primary.Label != "none" {
				result.Primary.Label = "none"
				result.Primary.Confidence = 0.0
			}
			break
		}
	}

	return result
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox clamps a box to the unit square
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}