// Package geometry holds the editor-space primitives shared by the crop and
// transform packages. All values are float64 editor units, with the origin at
// the top-left of the displayed image and y growing downwards.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// Epsilon absorbs floating-point drift when comparing edges and ratios.
const Epsilon = 0.01

// Point is a location in editor space
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Add returns p translated by q
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the vector from q to p
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Size is a width/height pair
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Empty reports whether either dimension is not positive
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Swapped exchanges width and height, as a quarter turn does
func (s Size) Swapped() Size {
	return Size{Width: s.Height, Height: s.Width}
}

// Center returns the midpoint of a rect of this size anchored at the origin
func (s Size) Center() Point {
	return Point{X: s.Width / 2, Y: s.Height / 2}
}

// Fit scales s uniformly so that it fits inside bounds, preserving aspect.
func (s Size) Fit(bounds Size) Size {
	if s.Empty() || bounds.Empty() {
		return Size{}
	}
	k := math.Min(bounds.Width/s.Width, bounds.Height/s.Height)
	return Size{Width: s.Width * k, Height: s.Height * k}
}

// SizeOf returns the pixel size of an image rectangle
func SizeOf(r image.Rectangle) Size {
	return Size{Width: float64(r.Dx()), Height: float64(r.Dy())}
}

// Rect is an axis-aligned rectangle with origin at its top-left corner
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// RectOf builds a rect at origin with size s
func RectOf(origin Point, s Size) Rect {
	return Rect{X: origin.X, Y: origin.Y, Width: s.Width, Height: s.Height}
}

func (r Rect) MinX() float64 { return r.X }
func (r Rect) MinY() float64 { return r.Y }
func (r Rect) MaxX() float64 { return r.X + r.Width }
func (r Rect) MaxY() float64 { return r.Y + r.Height }
func (r Rect) MidX() float64 { return r.X + r.Width/2 }
func (r Rect) MidY() float64 { return r.Y + r.Height/2 }

// Origin returns the top-left corner
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// Center returns the midpoint of the rect
func (r Rect) Center() Point {
	return Point{X: r.MidX(), Y: r.MidY()}
}

// Size returns the rect dimensions
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// AspectRatio returns height/width, or +Inf for a degenerate width
func (r Rect) AspectRatio() float64 {
	if r.Width == 0 {
		return math.Inf(1)
	}
	return r.Height / r.Width
}

// Translate moves the rect by (dx, dy) without resizing it
func (r Rect) Translate(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Inset shrinks the rect by d on every side. Negative d grows it.
func (r Rect) Inset(d float64) Rect {
	return Rect{X: r.X + d, Y: r.Y + d, Width: r.Width - 2*d, Height: r.Height - 2*d}
}

// Scale multiplies origin and size by k, mapping between two spaces that share
// an origin.
func (r Rect) Scale(kx, ky float64) Rect {
	return Rect{X: r.X * kx, Y: r.Y * ky, Width: r.Width * kx, Height: r.Height * ky}
}

// Contains reports whether p lies strictly inside r
func (r Rect) Contains(p Point) bool {
	return p.X > r.MinX() && p.X < r.MaxX() && p.Y > r.MinY() && p.Y < r.MaxY()
}

// ContainsClosed reports whether p lies inside r or on its boundary
func (r Rect) ContainsClosed(p Point) bool {
	return p.X >= r.MinX() && p.X <= r.MaxX() && p.Y >= r.MinY() && p.Y <= r.MaxY()
}

// ApproxEqual compares every component within tol
func (r Rect) ApproxEqual(o Rect, tol float64) bool {
	return math.Abs(r.X-o.X) <= tol &&
		math.Abs(r.Y-o.Y) <= tol &&
		math.Abs(r.Width-o.Width) <= tol &&
		math.Abs(r.Height-o.Height) <= tol
}

// Pixels rounds the rect to integer pixel coordinates
func (r Rect) Pixels() image.Rectangle {
	return image.Rect(
		int(math.Round(r.MinX())),
		int(math.Round(r.MinY())),
		int(math.Round(r.MaxX())),
		int(math.Round(r.MaxY())),
	)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f,%.2f %.2fx%.2f)", r.X, r.Y, r.Width, r.Height)
}
