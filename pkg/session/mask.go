package session

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// ellipse is an alpha mask covering the ellipse inscribed in r
type ellipse struct {
	r image.Rectangle
}

func (e ellipse) ColorModel() color.Model { return color.AlphaModel }

func (e ellipse) Bounds() image.Rectangle { return e.r }

func (e ellipse) At(x, y int) color.Color {
	rx := float64(e.r.Dx()) / 2
	ry := float64(e.r.Dy()) / 2
	dx := (float64(x-e.r.Min.X) + 0.5 - rx) / rx
	dy := (float64(y-e.r.Min.Y) + 0.5 - ry) / ry
	if dx*dx+dy*dy <= 1 {
		return color.Alpha{A: 0xff}
	}
	return color.Alpha{}
}

// MaskCircle clears every pixel outside the disc inscribed in img
func MaskCircle(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	xdraw.DrawMask(out, b, img, b.Min, ellipse{r: b}, b.Min, xdraw.Over)
	return out
}
