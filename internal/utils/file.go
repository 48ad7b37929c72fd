package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SidecarSuffix is appended to an image path to name its stored edit
const SidecarSuffix = ".edit.json"

// SidecarPath names the edit file stored beside an image
func SidecarPath(imagePath string) string {
	return imagePath + SidecarSuffix
}

// IsSidecar reports whether path names an edit sidecar
func IsSidecar(path string) bool {
	return strings.HasSuffix(path, SidecarSuffix)
}

// ImageForSidecar returns the image a sidecar belongs to
func ImageForSidecar(sidecar string) string {
	return strings.TrimSuffix(sidecar, SidecarSuffix)
}

var imageExts = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"bmp": true, "tif": true, "tiff": true, "webp": true,
}

// EnsureDir creates a directory and its parents if missing
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// GetFileExtension returns the lower-cased extension without the dot
func GetFileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsImageFile reports whether filename has an extension the editor can decode
func IsImageFile(filename string) bool {
	return imageExts[GetFileExtension(filename)]
}

// OutputPath names the rendered edit of input inside dir. format defaults to
// the input's extension. The result never equals input, so a render cannot
// overwrite its own source.
func OutputPath(input, dir, suffix, format string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if format == "" {
		format = GetFileExtension(input)
		if format == "" {
			format = "jpg"
		}
	}

	out := filepath.Join(dir, name+suffix+"."+format)
	if filepath.Clean(out) == filepath.Clean(input) {
		out = filepath.Join(dir, name+suffix+"_edited."+format)
	}
	return out
}

// ListImageFiles walks dir and returns every image below it in lexical
// order. Hidden directories are skipped.
func ListImageFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	return err == nil && info.IsDir()
}

// FormatFileSize formats a byte count as B, KB, MB and so on
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// FileSize returns the formatted size of path, or "?" when it cannot be read
func FileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return FormatFileSize(info.Size())
}
