package transform

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/cropkit/pkg/crop"
	"github.com/menta2k/cropkit/pkg/geometry"
)

// createTestImage creates an image where every pixel has a distinct color
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 7), uint8(y * 11), uint8((x + y) * 3), 255})
		}
	}
	return img
}

func TestRotateRemapsRegionAndOffset(t *testing.T) {
	s := Identity()
	s.FlipHorizontal = true
	s.Offset = geometry.Point{X: 3, Y: -4}
	region := geometry.Rect{X: 10, Y: 20, Width: 60, Height: 50}
	size := geometry.Size{Width: 200, Height: 100}

	next, r, nextSize := Rotate(s, region, size, 0, 0)

	assert.Equal(t, 1, next.Rotation)
	assert.False(t, next.FlipHorizontal)
	assert.True(t, next.FlipVertical)
	assert.Equal(t, geometry.Point{X: -4, Y: -3}, next.Offset)
	assert.Equal(t, geometry.Rect{X: 20, Y: 130, Width: 50, Height: 60}, r)
	assert.Equal(t, geometry.Size{Width: 100, Height: 200}, nextSize)
}

func TestRotateFullCycleIsIdentity(t *testing.T) {
	s := Identity()
	s.FlipVertical = true
	s.Offset = geometry.Point{X: 5, Y: 7}
	region := geometry.Rect{X: 12.5, Y: 8.25, Width: 70, Height: 45}
	size := geometry.Size{Width: 160, Height: 90}

	cur, r, sz := s, region, size
	for i := 0; i < 4; i++ {
		cur, r, sz = Rotate(cur, r, sz, 0, 0)
	}

	assert.Equal(t, s, cur)
	assert.True(t, r.ApproxEqual(region, 1e-9), "got %s", r)
	assert.Equal(t, size, sz)
}

func TestRotateReclampsAspect(t *testing.T) {
	size := geometry.Size{Width: 200, Height: 100}
	full := geometry.Rect{Width: 200, Height: 100}

	_, r, _ := Rotate(Identity(), full, size, 1.25, 44)

	// Widening to 160 would leave a 100-wide image, so the height shrinks.
	assert.InDelta(t, 100, r.Width, 1e-9)
	assert.InDelta(t, 125, r.Height, 1e-9)
	assert.InDelta(t, 37.5, r.Y, 1e-9)
}

func TestRotateKeepsMinimumSize(t *testing.T) {
	// A strip too narrow for the cap after turning keeps its rotated shape.
	strip := geometry.Size{Width: 400, Height: 50}
	_, r, sz := Rotate(Identity(), geometry.Rect{Width: 400, Height: 50}, strip, 0.75, 44)
	assert.Equal(t, geometry.Rect{Width: 50, Height: 400}, r)
	assert.True(t, crop.IsValid(r, sz, 44))

	// Shortening the height would drop it to 37.5, so the largest capped rect
	// around the region is used instead.
	size := geometry.Size{Width: 400, Height: 300}
	_, r, sz = Rotate(Identity(), geometry.Rect{Width: 300, Height: 50}, size, 0.75, 44)
	assert.True(t, r.ApproxEqual(geometry.Rect{X: 0, Y: 137.5, Width: 300, Height: 225}, 1e-9), "got %s", r)
	assert.True(t, crop.IsValid(r, sz, 44))
	assert.LessOrEqual(t, r.AspectRatio(), 0.75+geometry.Epsilon)
}

func TestFlipTwiceRestores(t *testing.T) {
	s := Identity()
	s.Offset = geometry.Point{X: 6, Y: 2}
	region := geometry.Rect{X: 10, Y: 20, Width: 60, Height: 50}
	size := geometry.Size{Width: 200, Height: 100}

	once, r1 := Flip(s, region, size)
	assert.True(t, once.FlipVertical)
	assert.False(t, once.FlipHorizontal)
	assert.Equal(t, 130.0, r1.X)
	assert.Equal(t, -6.0, once.Offset.X)

	twice, r2 := Flip(once, r1, size)
	assert.Equal(t, s, twice)
	assert.Equal(t, region, r2)
}

func TestZoomKeepsCenteredOffset(t *testing.T) {
	size := geometry.Size{Width: 100, Height: 100}

	z := Zoom(Identity(), 2.0, size, size)

	assert.Equal(t, 2.0, z.Scale)
	assert.Equal(t, geometry.Point{}, z.Offset)
}

func TestZoomClampsOffsetIntoContainer(t *testing.T) {
	size := geometry.Size{Width: 100, Height: 100}
	s := Identity()
	s.Scale = 3
	s.Offset = geometry.Point{X: 80, Y: -90}

	z := Zoom(s, 2.0, size, size)

	assert.Equal(t, geometry.Point{X: 50, Y: -50}, z.Offset)
}

func TestZoomClampsScale(t *testing.T) {
	size := geometry.Size{Width: 100, Height: 100}

	assert.Equal(t, MaxScale, Zoom(Identity(), 20, size, size).Scale)

	s := Identity()
	s.Scale = 2
	s.Offset = geometry.Point{X: 40}
	out := Zoom(s, 0.5, size, size)
	assert.Equal(t, MinScale, out.Scale)
	assert.Equal(t, geometry.Point{}, out.Offset)
}

func TestPanRejectsGap(t *testing.T) {
	size := geometry.Size{Width: 100, Height: 100}

	out, ok := Pan(Identity(), geometry.Point{X: 10}, size, size)
	assert.False(t, ok)
	assert.Equal(t, Identity(), out)

	zoomed := Zoom(Identity(), 2, size, size)
	out, ok = Pan(zoomed, geometry.Point{X: 40, Y: -40}, size, size)
	assert.True(t, ok)
	assert.Equal(t, geometry.Point{X: 40, Y: -40}, out.Offset)

	_, ok = Pan(zoomed, geometry.Point{X: 60}, size, size)
	assert.False(t, ok)
}

func TestStateNormalize(t *testing.T) {
	s := State{Rotation: -1, Scale: 0}
	n := s.Normalize()
	assert.Equal(t, 3, n.Rotation)
	assert.Equal(t, MinScale, n.Scale)
	assert.Equal(t, 270, s.Degrees())

	assert.True(t, Identity().IsIdentity())
	assert.True(t, State{Rotation: 4}.IsIdentity())
	assert.False(t, State{Scale: 1, FlipVertical: true}.IsIdentity())
}

func TestAffineInvert(t *testing.T) {
	m := Translate(5, -3).Multiply(Scale(2, 4)).Multiply(Translate(1, 1))
	inv, ok := m.Invert()
	require.True(t, ok)

	p := geometry.Point{X: 7, Y: 9}
	back := inv.Apply(m.Apply(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)

	_, ok = Scale(0, 1).Invert()
	assert.False(t, ok)
}

func TestOrientMatchesRotateRemap(t *testing.T) {
	img := createTestImage(6, 4)
	size := geometry.SizeOf(img.Bounds())
	region := geometry.Rect{Width: size.Width, Height: size.Height}

	states := []State{
		Identity(),
		{Scale: 1, FlipVertical: true},
		{Scale: 1, FlipHorizontal: true, Rotation: 1},
		{Scale: 1, FlipHorizontal: true, FlipVertical: true, Rotation: 2},
	}
	for _, s := range states {
		next, _, _ := Rotate(s, region, size, 0, 0)
		want := imaging.Rotate90(Orient(img, s))
		got := Orient(img, next)
		assert.Equal(t, want.Pix, got.Pix, "state %+v", s)
	}
}

func TestRenderIdentityCopiesSource(t *testing.T) {
	img := createTestImage(40, 30)
	editor := geometry.Size{Width: 40, Height: 30}

	out, err := Render(img, Identity(), geometry.Rect{Width: 40, Height: 30}, editor)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, out.Pix)
}

func TestRenderCropsInPixelSpace(t *testing.T) {
	img := createTestImage(80, 60)
	// Editor shows the image at half size.
	editor := geometry.Size{Width: 40, Height: 30}
	region := geometry.Rect{X: 5, Y: 10, Width: 20, Height: 15}

	out, err := Render(img, Identity(), region, editor)
	require.NoError(t, err)

	want := imaging.Crop(img, image.Rect(10, 20, 50, 50))
	assert.Equal(t, want.Bounds(), out.Bounds())
	assert.Equal(t, want.Pix, out.Pix)
}

func TestRenderFollowsRotation(t *testing.T) {
	img := createTestImage(50, 30)
	size := geometry.SizeOf(img.Bounds())
	region := geometry.Rect{X: 4, Y: 6, Width: 20, Height: 12}

	before, err := Render(img, Identity(), region, size)
	require.NoError(t, err)

	s, r, sz := Rotate(Identity(), region, size, 0, 0)
	after, err := Render(Orient(img, s), s, r, sz)
	require.NoError(t, err)

	assert.Equal(t, imaging.Rotate90(before).Pix, after.Pix)
}

func TestRenderZoomKeepsOutputSize(t *testing.T) {
	img := createTestImage(64, 64)
	size := geometry.SizeOf(img.Bounds())
	s := Zoom(Identity(), 2, size, size)

	out, err := Render(img, s, geometry.Rect{X: 16, Y: 16, Width: 32, Height: 32}, size)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), out.Bounds())
}

func TestRenderFailures(t *testing.T) {
	size := geometry.Size{Width: 10, Height: 10}

	_, err := Render(nil, Identity(), geometry.Rect{Width: 5, Height: 5}, size)
	assert.True(t, errors.Is(err, ErrRenderFailed))

	_, err = Render(createTestImage(10, 10), Identity(), geometry.Rect{Width: 0.1, Height: 5}, size)
	assert.True(t, errors.Is(err, ErrRenderFailed))

	_, err = Render(createTestImage(10, 10), Identity(), geometry.Rect{Width: 5, Height: 5}, geometry.Size{})
	assert.True(t, errors.Is(err, ErrRenderFailed))
}

func BenchmarkRenderZoomed(b *testing.B) {
	img := createTestImage(640, 480)
	s := Identity()
	s.Scale = 1.5
	region := geometry.Rect{X: 80, Y: 60, Width: 320, Height: 240}
	editor := geometry.Size{Width: 640, Height: 480}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Render(img, s, region, editor); err != nil {
			b.Fatal(err)
		}
	}
}
