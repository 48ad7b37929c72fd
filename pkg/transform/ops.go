package transform

import (
	"math"

	"github.com/menta2k/cropkit/pkg/crop"
	"github.com/menta2k/cropkit/pkg/geometry"
)

// Rotate turns the displayed image a quarter turn counter-clockwise (what was
// the right edge becomes the top) and remaps the crop region and pan offset
// so they keep framing the same content. imageSize is the displayed image
// size before the turn; the size after it is returned.
//
// The mirror flags swap because a quarter turn exchanges which mirror axis is
// which. The rotated region is re-capped to maxAspect; if widening it would
// leave the image, the height is shortened instead. When neither keeps both
// sides above minSize, the largest capped rect around the region's center is
// used, and if the image has no such rect the region is left uncapped.
func Rotate(s State, region geometry.Rect, imageSize geometry.Size, maxAspect, minSize float64) (State, geometry.Rect, geometry.Size) {
	next := s
	next.Rotation = (s.Rotation + 1) % 4
	next.FlipHorizontal, next.FlipVertical = s.FlipVertical, s.FlipHorizontal
	next.Offset = geometry.Point{X: s.Offset.Y, Y: -s.Offset.X}

	rotated := geometry.Rect{
		X:      region.Y,
		Y:      imageSize.Width - region.Width - region.X,
		Width:  region.Height,
		Height: region.Width,
	}
	nextSize := imageSize.Swapped()

	clamped := crop.ClampAspect(rotated, crop.ZoneNone, maxAspect)
	if !crop.WithinBounds(clamped, nextSize) {
		clamped = crop.ClampAspect(rotated, crop.ZoneLeft, maxAspect)
	}
	if !crop.IsValid(clamped, nextSize, minSize) {
		clamped = largestCapped(rotated, nextSize, maxAspect, minSize)
	}
	return next, clamped, nextSize
}

// largestCapped returns the biggest rect within limit whose height/width is at
// most maxAspect, centered on r as far as the limit allows. r is returned
// unchanged when no such rect clears minSize.
func largestCapped(r geometry.Rect, limit geometry.Size, maxAspect, minSize float64) geometry.Rect {
	w := limit.Width
	h := math.Min(limit.Height, maxAspect*w)
	if w <= minSize || h <= minSize {
		return r
	}
	c := r.Center()
	return geometry.Rect{
		X:      clamp(c.X-w/2, 0, limit.Width-w),
		Y:      clamp(c.Y-h/2, 0, limit.Height-h),
		Width:  w,
		Height: h,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Flip mirrors the displayed image left to right and moves the crop region to
// frame the mirrored content.
func Flip(s State, region geometry.Rect, imageSize geometry.Size) (State, geometry.Rect) {
	next := s
	next.FlipVertical = !s.FlipVertical
	next.Offset.X = -s.Offset.X

	region.X = imageSize.Width - region.Width - region.X
	return next, region
}

// Zoom sets the scale, clamped to [MinScale, MaxScale]. The zoom itself is
// never refused: when the scaled image would leave a gap at an edge of the
// container, the offset on that axis is pulled back so the image edge meets
// the container edge.
func Zoom(s State, scale float64, imageSize, container geometry.Size) State {
	next := s
	next.Scale = clampScale(scale)
	next.Offset.X = fitOffset(s.Offset.X, imageSize.Width*next.Scale, container.Width)
	next.Offset.Y = fitOffset(s.Offset.Y, imageSize.Height*next.Scale, container.Height)
	return next
}

// Pan moves the scaled image to offset only if no gap would open between the
// image and the container on any side; otherwise the state is returned
// unchanged and ok is false.
func Pan(s State, offset geometry.Point, imageSize, container geometry.Size) (State, bool) {
	if !covers(offset.X, imageSize.Width*s.Scale, container.Width) ||
		!covers(offset.Y, imageSize.Height*s.Scale, container.Height) {
		return s, false
	}
	s.Offset = offset
	return s, true
}

// edges returns the near and far edge of an extent-long image centered in a
// span-long container and shifted by offset.
func edges(offset, extent, span float64) (float64, float64) {
	center := span/2 + offset
	return center - extent/2, center + extent/2
}

func covers(offset, extent, span float64) bool {
	lo, hi := edges(offset, extent, span)
	return lo <= geometry.Epsilon && hi >= span-geometry.Epsilon
}

func fitOffset(offset, extent, span float64) float64 {
	if extent <= span {
		return 0
	}
	lo, hi := edges(offset, extent, span)
	switch {
	case lo > 0:
		return extent/2 - span/2
	case hi < span:
		return span/2 - extent/2
	}
	return offset
}
