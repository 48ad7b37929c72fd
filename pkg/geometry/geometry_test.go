package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectAccessors(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 100, Height: 50}

	assert.Equal(t, 10.0, r.MinX())
	assert.Equal(t, 110.0, r.MaxX())
	assert.Equal(t, 20.0, r.MinY())
	assert.Equal(t, 70.0, r.MaxY())
	assert.Equal(t, Point{X: 60, Y: 45}, r.Center())
	assert.Equal(t, 0.5, r.AspectRatio())
}

func TestRectContainsIsStrict(t *testing.T) {
	r := Rect{Width: 100, Height: 100}

	assert.True(t, r.Contains(Point{X: 50, Y: 50}))
	assert.False(t, r.Contains(Point{X: 0, Y: 50}), "edge is not interior")
	assert.True(t, r.ContainsClosed(Point{X: 0, Y: 50}))
	assert.False(t, r.Contains(Point{X: 150, Y: 50}))
}

func TestRectInsetAndTranslate(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 100, Height: 100}

	assert.Equal(t, Rect{X: -12, Y: -12, Width: 144, Height: 144}, r.Inset(-22))
	assert.Equal(t, Rect{X: 15, Y: 5, Width: 100, Height: 100}, r.Translate(5, -5))
}

func TestSizeFit(t *testing.T) {
	fitted := Size{Width: 4000, Height: 3000}.Fit(Size{Width: 400, Height: 400})
	assert.InDelta(t, 400, fitted.Width, 1e-9)
	assert.InDelta(t, 300, fitted.Height, 1e-9)

	assert.Equal(t, Size{}, Size{}.Fit(Size{Width: 1, Height: 1}))
}

func TestRectPixels(t *testing.T) {
	r := Rect{X: 0.4, Y: 1.6, Width: 10.2, Height: 9.8}
	assert.Equal(t, image.Rect(0, 2, 11, 11), r.Pixels())
}

func TestAspectRatioDegenerate(t *testing.T) {
	assert.True(t, math.IsInf(Rect{Height: 10}.AspectRatio(), 1))
}
