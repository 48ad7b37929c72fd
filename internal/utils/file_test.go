package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSidecarNames(t *testing.T) {
	p := SidecarPath("/img/a.webp")
	assert.Equal(t, "/img/a.webp.edit.json", p)
	assert.True(t, IsSidecar(p))
	assert.False(t, IsSidecar("/img/a.webp"))
	assert.Equal(t, "/img/a.webp", ImageForSidecar(p))
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a.JPG"))
	assert.True(t, IsImageFile("b.webp"))
	assert.False(t, IsImageFile("a.jpg.edit.json"))
	assert.False(t, IsImageFile("README"))
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "photo_edited.png"), OutputPath("/in/photo.jpg", "out", "_edited", "png"))
	assert.Equal(t, filepath.Join("out", "photo.jpg"), OutputPath("/in/photo.jpg", "out", "", ""))
	assert.Equal(t, filepath.Join("out", "noext.jpg"), OutputPath("noext", "out", "", ""))

	// Rendering into the source directory without a suffix must not overwrite it.
	assert.Equal(t, filepath.Join("in", "photo_edited.jpg"), OutputPath(filepath.Join("in", "photo.jpg"), "in", "", ""))
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "a.jpg.edit.json", "notes.txt", filepath.Join("sub", "c.webp"), filepath.Join(".cache", "d.png")} {
		path := filepath.Join(dir, name)
		require.NoError(t, EnsureDir(filepath.Dir(path)))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}

	files, err := ListImageFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.png"),
		filepath.Join(dir, "sub", "c.webp"),
	}, files)

	assert.True(t, DirExists(dir))
	assert.False(t, DirExists(files[0]))
	assert.True(t, FileExists(files[0]))
	assert.False(t, FileExists(dir))
	assert.Equal(t, "1 B", FileSize(files[0]))
	assert.Equal(t, "?", FileSize(filepath.Join(dir, "missing")))

	_, err = ListImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
	assert.Equal(t, "2.0 MB", FormatFileSize(2*1024*1024))
}
