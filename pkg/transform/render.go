package transform

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"

	"github.com/menta2k/cropkit/pkg/geometry"
)

// ErrRenderFailed is returned when the crop cannot produce a pixel buffer.
// It is not fatal: callers report it and keep the session open.
var ErrRenderFailed = errors.New("crop render failed")

// Orient applies the quarter turns and mirrors of s to img. Quarter turns are
// counter-clockwise, matching the crop remap in Rotate.
func Orient(img image.Image, s State) *image.NRGBA {
	s = s.Normalize()

	var out *image.NRGBA
	switch s.Rotation {
	case 1:
		out = imaging.Rotate90(img)
	case 2:
		out = imaging.Rotate180(img)
	case 3:
		out = imaging.Rotate270(img)
	default:
		out = imaging.Clone(img)
	}
	if s.FlipVertical {
		out = imaging.FlipH(out)
	}
	if s.FlipHorizontal {
		out = imaging.FlipV(out)
	}
	return out
}

// CropTransform maps pixel coordinates of the displayed image onto the output
// canvas. pixelsPerUnit converts editor units into displayed-image pixels.
//
// Read right to left: move the image center to the origin, zoom, apply the pan
// offset, shift by the distance between the image center and the crop
// center, then center the result in the crop-sized canvas.
func CropTransform(s State, region geometry.Rect, editorSize geometry.Size, pixelsPerUnit float64) Affine {
	k := pixelsPerUnit
	ic := editorSize.Center()
	cc := region.Center()
	scale := clampScale(s.Scale)

	return Translate(region.Width*k/2, region.Height*k/2).
		Multiply(Translate(k*(ic.X-cc.X), k*(ic.Y-cc.Y))).
		Multiply(Translate(k*s.Offset.X, k*s.Offset.Y)).
		Multiply(Scale(scale, scale)).
		Multiply(Translate(-k*ic.X, -k*ic.Y))
}

// OutputSize returns the pixel dimensions a render of region produces
func OutputSize(region geometry.Rect, pixelsPerUnit float64) (int, int) {
	return int(math.Round(region.Width * pixelsPerUnit)), int(math.Round(region.Height * pixelsPerUnit))
}

// Render produces the final crop from the displayed (already oriented) image.
// editorSize is the size of displayed in editor units; the output has exactly
// the crop region's pixel dimensions.
func Render(displayed image.Image, s State, region geometry.Rect, editorSize geometry.Size) (*image.NRGBA, error) {
	if displayed == nil {
		return nil, fmt.Errorf("%w: no source image", ErrRenderFailed)
	}
	b := displayed.Bounds()
	if b.Empty() || editorSize.Empty() {
		return nil, fmt.Errorf("%w: empty source %v or editor size %v", ErrRenderFailed, b, editorSize)
	}

	k := float64(b.Dx()) / editorSize.Width
	w, h := OutputSize(region, k)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: crop %s yields %dx%d pixels", ErrRenderFailed, region, w, h)
	}

	m := CropTransform(s, region, editorSize, k).
		Multiply(Translate(-float64(b.Min.X), -float64(b.Min.Y)))

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if tx, ty, ok := m.integerTranslation(); ok {
		// Plain copy keeps pixels exact when no resampling is needed.
		draw.Draw(dst, dst.Bounds(), displayed, image.Pt(-tx, -ty), draw.Src)
		return dst, nil
	}
	xdraw.CatmullRom.Transform(dst, m.Aff3(), displayed, b, xdraw.Src, nil)
	return dst, nil
}
