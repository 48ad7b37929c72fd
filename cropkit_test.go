package cropkit

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/pkg/geometry"
	"github.com/menta2k/cropkit/pkg/processing"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

func writeTestImage(t *testing.T, dir string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, "source.png")
	require.NoError(t, processing.NewProcessor().SaveImage(createTestImage(w, h), path, "png", 90, false))
	return path
}

func TestCommitWithoutChanges(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, 300, 200)
	e := New()

	s, err := e.Open(src)
	require.NoError(t, err)

	out := filepath.Join(dir, "out.png")
	_, err = e.Commit(s, src, out)
	assert.True(t, errors.Is(err, ErrNoChanges))
	assert.NoFileExists(t, out)
	assert.False(t, e.Store().Exists(src))
}

func TestCommitAndResume(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, 300, 200)
	e := New()

	s, err := e.Open(src)
	require.NoError(t, err)
	assert.Equal(t, geometry.Size{Width: 300, Height: 200}, s.Snapshot().Editor)

	s.BeginDrag(geometry.Point{X: 299, Y: 199})
	require.True(t, s.Drag(-100, -50))
	s.EndDrag()
	s.Rotate()

	out := filepath.Join(dir, "out.png")
	res, err := e.Commit(s, src, out)
	require.NoError(t, err)
	assert.FileExists(t, out)
	assert.Equal(t, filepath.Join(dir, "source.png.edit.json"), res.SidecarPath)
	assert.Equal(t, s.ID(), res.Params.SessionID)

	img, err := e.Processor().LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 150, 200), img.Bounds())

	resumed, err := e.Open(src)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), resumed.ID())
	assert.Equal(t, 1, resumed.State().Rotation)
	assert.True(t, resumed.Region().ApproxEqual(s.Region(), 1e-9))
	assert.False(t, resumed.HasChanges())
}

func TestApplyFile(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, 300, 200)
	e := New()

	s, err := e.Open(src)
	require.NoError(t, err)
	s.Flip()
	s.BeginDrag(geometry.Point{X: 1, Y: 100})
	s.Drag(100, 0)
	s.EndDrag()

	out := filepath.Join(dir, "applied.webp")
	require.NoError(t, e.ApplyFile(src, s.Params(), out))

	img, err := e.Processor().LoadImage(out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 200), img.Bounds())
}

func TestViewportScalesCommit(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, 400, 200)
	cfg := config.Default()
	cfg.Editor.ViewportWidth = 200
	cfg.Editor.ViewportHeight = 200
	cfg.Output.Sidecar = false
	e, err := NewWithConfig(cfg)
	require.NoError(t, err)

	s, err := e.Open(src)
	require.NoError(t, err)
	s.BeginDrag(geometry.Point{X: 199, Y: 50})
	require.True(t, s.Drag(-100, 0))
	s.EndDrag()

	res, err := e.Commit(s, src, filepath.Join(dir, "out.jpg"))
	require.NoError(t, err)
	assert.Empty(t, res.SidecarPath)
	assert.Equal(t, image.Rect(0, 0, 200, 200), res.Image.Bounds())
	assert.False(t, e.Store().Exists(src))
}

func TestNewWithConfigRejectsInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Editor.Shape = "triangle"
	_, err := NewWithConfig(cfg)
	assert.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := New().Open(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
