package session

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/cropkit/pkg/crop"
	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/transform"
	"github.com/menta2k/cropkit/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	// Create a pattern with a bright subject in the center
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.SetNRGBA(x, y, color.NRGBA{255, 255, 255, 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 64, 255})
			}
		}
	}

	return img
}

func TestNewRejectsUnusableImages(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(createTestImage(40, 300))
	assert.Error(t, err, "40 px is below the 44 unit minimum")
}

func TestNewFitsViewport(t *testing.T) {
	s, err := New(createTestImage(400, 300), WithViewport(geometry.Size{Width: 200, Height: 200}))
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, geometry.Size{Width: 200, Height: 150}, snap.Editor)
	assert.Equal(t, geometry.Rect{Width: 200, Height: 150}, snap.Region)
	assert.Equal(t, PhaseUnedited, snap.Phase)
	assert.False(t, snap.Changed)
	assert.NotEmpty(t, s.ID())
}

func TestProcessWithoutChangesIsNoop(t *testing.T) {
	s, err := New(createTestImage(200, 100))
	require.NoError(t, err)

	res, err := s.Process()
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Nil(t, res.Image)
	assert.Equal(t, PhaseCommitted, s.Phase())
}

func TestDragThenProcess(t *testing.T) {
	s, err := New(createTestImage(400, 200), WithViewport(geometry.Size{Width: 200, Height: 200}))
	require.NoError(t, err)

	require.Equal(t, crop.ZoneBottomRight, s.BeginDrag(geometry.Point{X: 199, Y: 99}))
	assert.True(t, s.DragTo(geometry.Point{X: 149, Y: 69}))
	s.EndDrag()

	assert.Equal(t, geometry.Rect{Width: 150, Height: 70}, s.Region())
	assert.True(t, s.HasChanges())
	assert.Equal(t, PhaseEditing, s.Phase())

	res, err := s.Process()
	require.NoError(t, err)
	require.True(t, res.Changed)
	// Two source pixels per editor unit.
	assert.Equal(t, image.Rect(0, 0, 300, 140), res.Image.Bounds())
	assert.Equal(t, PhaseCommitted, s.Phase())
}

func TestRejectedDragLeavesRegion(t *testing.T) {
	s, err := New(createTestImage(200, 200))
	require.NoError(t, err)
	before := s.Region()

	s.BeginDrag(geometry.Point{X: 100, Y: 100})
	assert.False(t, s.Drag(-10, -10), "full-image crop cannot move")
	assert.Equal(t, before, s.Region())
	assert.Equal(t, PhaseUnedited, s.Phase())
}

func TestRotateFullCycleRestores(t *testing.T) {
	src := createTestImage(120, 80)
	s, err := New(src)
	require.NoError(t, err)

	s.BeginDrag(geometry.Point{X: 1, Y: 1})
	s.Drag(10, 5)
	s.EndDrag()
	region := s.Region()

	s.Rotate()
	assert.Equal(t, geometry.Size{Width: 80, Height: 120}, s.Snapshot().Editor)
	assert.Equal(t, image.Rect(0, 0, 80, 120), s.DisplayedImage().Bounds())

	s.Rotate()
	s.Rotate()
	s.Rotate()

	assert.True(t, s.Region().ApproxEqual(region, 1e-9))
	assert.True(t, s.State().IsIdentity())
	assert.Equal(t, src.(*image.NRGBA).Pix, s.DisplayedImage().Pix)
}

func TestFlipTwiceRestores(t *testing.T) {
	s, err := New(createTestImage(200, 100))
	require.NoError(t, err)

	s.BeginDrag(geometry.Point{X: 1, Y: 50})
	s.Drag(30, 0)
	s.EndDrag()
	region := s.Region()

	s.Flip()
	assert.True(t, s.State().FlipVertical)
	assert.Equal(t, 0.0, s.Region().X)

	s.Flip()
	assert.Equal(t, region, s.Region())
	assert.False(t, s.State().FlipVertical)
}

func TestZoomAndPan(t *testing.T) {
	s, err := New(createTestImage(100, 100))
	require.NoError(t, err)

	assert.False(t, s.Pan(geometry.Point{X: 10}), "unzoomed image cannot pan")

	s.Zoom(2)
	assert.Equal(t, 2.0, s.State().Scale)
	assert.True(t, s.Pan(geometry.Point{X: 30, Y: -20}))
	assert.False(t, s.PanBy(30, 0), "offset 60 uncovers the left edge")
	assert.Equal(t, geometry.Point{X: 30, Y: -20}, s.State().Offset)

	s.Zoom(1)
	assert.Equal(t, geometry.Point{}, s.State().Offset)
}

func TestResetReturnsToInitialLayout(t *testing.T) {
	s, err := New(createTestImage(200, 100))
	require.NoError(t, err)

	s.Rotate()
	s.Flip()
	s.Zoom(3)
	require.True(t, s.HasChanges())

	s.Reset()
	assert.False(t, s.HasChanges())
	assert.Equal(t, PhaseEditing, s.Phase())
	assert.Equal(t, geometry.Rect{Width: 200, Height: 100}, s.Region())
	assert.True(t, s.State().IsIdentity())
}

func TestObserversSeeEveryChange(t *testing.T) {
	s, err := New(createTestImage(200, 100))
	require.NoError(t, err)

	var first, second []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { first = append(first, snap) })
	s.Subscribe(func(snap Snapshot) { second = append(second, snap) })

	s.Rotate()
	s.Flip()
	unsubscribe()
	s.Rotate()

	require.Len(t, first, 2)
	require.Len(t, second, 3)
	assert.Equal(t, first, second[:2])
	assert.Equal(t, 1, first[0].State.Rotation)
	assert.True(t, first[1].State.FlipHorizontal != first[1].State.FlipVertical)
}

func TestProcessAsyncDeliversThroughDispatcher(t *testing.T) {
	queue := make(chan func(), 4)
	s, err := New(createTestImage(200, 100), WithDispatcher(DispatchFunc(func(fn func()) { queue <- fn })))
	require.NoError(t, err)

	s.Rotate()
	for len(queue) > 0 {
		(<-queue)()
	}

	results := make(chan Result, 1)
	s.ProcessAsync(func(res Result, err error) {
		require.NoError(t, err)
		results <- res
	})

	select {
	case fn := <-queue:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("render was not dispatched")
	}

	res := <-results
	assert.True(t, res.Changed)
	assert.Equal(t, image.Rect(0, 0, 100, 200), res.Image.Bounds())
	assert.Equal(t, PhaseCommitted, s.Phase())
}

func TestProcessAsyncWithBlockingRunLoop(t *testing.T) {
	loop := make(chan func())
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case fn := <-loop:
				fn()
			case <-stop:
				return
			}
		}
	}()

	s, err := New(createTestImage(200, 100), WithDispatcher(DispatchFunc(func(fn func()) { loop <- fn })))
	require.NoError(t, err)

	var phases []Phase
	s.Subscribe(func(snap Snapshot) { phases = append(phases, snap.Phase) })
	s.Rotate()

	results := make(chan Result, 1)
	s.ProcessAsync(func(res Result, err error) {
		assert.NoError(t, err)
		results <- res
	})

	select {
	case res := <-results:
		assert.True(t, res.Changed)
	case <-time.After(5 * time.Second):
		t.Fatal("async result was not delivered")
	}
	assert.Equal(t, []Phase{PhaseEditing, PhaseCommitted}, phases)
	assert.Equal(t, PhaseCommitted, s.Phase())
}

func TestRotateNarrowStripKeepsMinimumSize(t *testing.T) {
	cfg := crop.DefaultConfig()
	cfg.MaxAspectRatio = crop.Landscape.HeightOverWidth()
	s, err := New(createTestImage(400, 50), WithConfig(cfg))
	require.NoError(t, err)

	s.Rotate()
	snap := s.Snapshot()
	assert.Equal(t, geometry.Size{Width: 50, Height: 400}, snap.Editor)
	assert.True(t, crop.IsValid(snap.Region, snap.Editor, cfg.MinimumSize), "got %s", snap.Region)

	// The cap applies again once the image is wide enough.
	s.Rotate()
	snap = s.Snapshot()
	assert.True(t, crop.IsValid(snap.Region, snap.Editor, cfg.MinimumSize), "got %s", snap.Region)
	assert.LessOrEqual(t, snap.Region.AspectRatio(), cfg.MaxAspectRatio+geometry.Epsilon)
}

func TestResumeFromParams(t *testing.T) {
	src := createTestImage(400, 200)
	first, err := New(src, WithViewport(geometry.Size{Width: 200, Height: 200}))
	require.NoError(t, err)

	first.Rotate()
	first.BeginDrag(geometry.Point{X: 50, Y: 199})
	first.Drag(0, -40)
	first.EndDrag()
	params := first.Params()
	want, err := first.Process()
	require.NoError(t, err)

	// Reopen in a larger viewport: the crop scales with the editor.
	resumed, err := New(src, WithParams(params), WithViewport(geometry.Size{Width: 400, Height: 400}))
	require.NoError(t, err)

	assert.False(t, resumed.HasChanges())
	assert.Equal(t, params.State(), resumed.State())
	assert.True(t, resumed.Region().ApproxEqual(params.Crop.Scale(2, 2), 1e-9))

	got, err := resumed.Process()
	require.NoError(t, err)
	assert.False(t, got.Changed, "nothing changed since the stored edit")

	resumed.Flip()
	got, err = resumed.Process()
	require.NoError(t, err)
	assert.Equal(t, want.Image.Bounds(), got.Image.Bounds())
}

func TestResumeWithNewShapeReframes(t *testing.T) {
	src := createTestImage(400, 200)
	first, err := New(src)
	require.NoError(t, err)
	first.BeginDrag(geometry.Point{X: 399, Y: 100})
	require.True(t, first.Drag(-100, 0))
	first.EndDrag()
	params := first.Params()

	s, err := New(src, WithParams(params), WithShape(crop.ShapeCircle))
	require.NoError(t, err)
	assert.Equal(t, crop.ShapeCircle, s.Config().Shape)
	assert.Equal(t, geometry.Rect{X: 100, Width: 200, Height: 200}, s.Region())
	assert.True(t, s.HasChanges())
	assert.Equal(t, crop.ShapeCircle, s.Params().Shape)

	// A cap the stored crop already meets keeps it.
	s, err = New(src, WithParams(params), WithMaxAspect(1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Config().MaxAspectRatio)
	assert.True(t, s.Region().ApproxEqual(params.Crop, 1e-9))
	assert.False(t, s.HasChanges())

	// Without overrides the stored constraints win.
	cfg := crop.DefaultConfig()
	cfg.Shape = crop.ShapeSquare
	s, err = New(src, WithParams(params), WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, crop.ShapeFree, s.Config().Shape)
}

func TestResumeRejectsBadParams(t *testing.T) {
	src := createTestImage(200, 200)
	s, err := New(src)
	require.NoError(t, err)

	params := s.Params()
	params.Crop.Width = 500
	_, err = New(src, WithParams(params))
	assert.Error(t, err)
}

func TestCircleShapeForcesProcessing(t *testing.T) {
	cfg := crop.DefaultConfig()
	cfg.Shape = crop.ShapeCircle
	s, err := New(createTestImage(300, 200), WithConfig(cfg))
	require.NoError(t, err)

	assert.False(t, s.HasChanges())
	assert.True(t, s.RequiresProcessing())
	assert.Equal(t, geometry.Rect{X: 50, Width: 200, Height: 200}, s.Region())

	res, err := s.Process()
	require.NoError(t, err)
	require.True(t, res.Changed)
	assert.Equal(t, image.Rect(0, 0, 200, 200), res.Image.Bounds())
	assert.Equal(t, uint8(0), res.Image.NRGBAAt(0, 0).A, "corner outside the disc")
	assert.Equal(t, uint8(255), res.Image.NRGBAAt(100, 100).A)
}

func TestSquareShapeOnSquareSourceIsNoop(t *testing.T) {
	cfg := crop.DefaultConfig()
	cfg.Shape = crop.ShapeSquare
	s, err := New(createTestImage(120, 120), WithConfig(cfg))
	require.NoError(t, err)

	assert.False(t, s.RequiresProcessing())
	res, err := s.Process()
	require.NoError(t, err)
	assert.False(t, res.Changed)
}

func TestRenderFailureIsReported(t *testing.T) {
	s, err := New(createTestImage(60, 60), WithViewport(geometry.Size{Width: 6000, Height: 6000}))
	require.NoError(t, err)

	// 45 editor units is under half a source pixel.
	require.Equal(t, crop.ZoneRight, s.BeginDrag(geometry.Point{X: 5999, Y: 3000}))
	require.True(t, s.Drag(-5955, 0))
	s.EndDrag()
	require.InDelta(t, 45, s.Region().Width, 1e-9)

	_, err = s.Process()
	require.Error(t, err)
	assert.True(t, errors.Is(err, transform.ErrRenderFailed))
	assert.Equal(t, PhaseEditing, s.Phase())
}

func TestResumeKeepsSessionID(t *testing.T) {
	src := createTestImage(200, 200)
	first, err := New(src)
	require.NoError(t, err)

	resumed, err := New(src, WithParams(first.Params()))
	require.NoError(t, err)
	assert.Equal(t, first.ID(), resumed.ID())
}

func TestApplyMatchesProcess(t *testing.T) {
	src := createTestImage(400, 200)
	s, err := New(src, WithViewport(geometry.Size{Width: 200, Height: 200}))
	require.NoError(t, err)

	s.Rotate()
	s.Flip()
	s.BeginDrag(geometry.Point{X: 50, Y: 199})
	s.Drag(0, -40)
	s.EndDrag()
	s.Zoom(2)
	require.True(t, s.Pan(geometry.Point{X: 10, Y: 5}))

	want, err := s.Process()
	require.NoError(t, err)

	got, err := Apply(src, s.Params())
	require.NoError(t, err)
	assert.Equal(t, want.Image.Bounds(), got.Bounds())
	assert.Equal(t, want.Image.Pix, got.Pix)
}

func TestApplyRejectsBadInput(t *testing.T) {
	_, err := Apply(nil, types.EditParams{})
	assert.Error(t, err)

	_, err = Apply(createTestImage(10, 10), types.EditParams{Version: types.ParamsVersion})
	assert.True(t, errors.Is(err, types.ErrInvalidParams))
}
