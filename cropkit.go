// Package cropkit is an interactive crop editor engine.
//
// An editing session holds one image: the user drags the crop frame by its
// corners, edges or interior, rotates the image in quarter turns, mirrors it,
// zooms and pans, and finally commits. Every gesture is validated so the crop
// always stays inside the image and above a minimum size, with an optional
// cap on its aspect ratio and optional square or circle shapes.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		"github.com/menta2k/cropkit"
//		"github.com/menta2k/cropkit/pkg/geometry"
//	)
//
//	func main() {
//		editor := cropkit.New()
//
//		s, err := editor.Open("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// Grab the bottom-right corner and pull it in.
//		s.BeginDrag(geometry.Point{X: 1023, Y: 767})
//		s.Drag(-200, -100)
//		s.EndDrag()
//		s.Rotate()
//
//		if _, err := editor.Commit(s, "photo.jpg", "photo_edited.jpg"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
//  1. Crop (pkg/crop): hit testing, candidate rects and the validity gate
//  2. Transform (pkg/transform): rotate, flip, zoom, pan and the final render
//  3. Session (pkg/session): one image in the editor, with observers
//  4. Detection (pkg/detection): vision-model suggested starting crops
//
// Commits write an edit sidecar next to the source so the session can be
// reopened later exactly where it was left.
package cropkit

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/internal/store"
	"github.com/menta2k/cropkit/pkg/crop"
	"github.com/menta2k/cropkit/pkg/processing"
	"github.com/menta2k/cropkit/pkg/session"
	"github.com/menta2k/cropkit/pkg/types"
)

// Version of the cropkit library
const Version = "1.0.0"

// ErrNoChanges is returned by Commit when the session has nothing to render
var ErrNoChanges = session.ErrNoChanges

// Editor opens images into sessions and commits them to disk
type Editor struct {
	cfg       *config.Config
	cropCfg   crop.Config
	processor *processing.Processor
	store     *store.Store
}

// New creates an Editor with default configuration
func New() *Editor {
	e, err := NewWithConfig(config.Default())
	if err != nil {
		panic(err)
	}
	return e
}

// NewWithConfig creates an Editor with custom configuration
func NewWithConfig(cfg *config.Config) (*Editor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cropCfg, err := cfg.CropConfig()
	if err != nil {
		return nil, err
	}
	return &Editor{
		cfg:       cfg,
		cropCfg:   cropCfg,
		processor: processing.NewProcessor(),
		store:     store.NewStore(""),
	}, nil
}

// SetStore replaces where edit sidecars are kept
func (e *Editor) SetStore(s *store.Store) {
	e.store = s
}

// Store returns the sidecar store
func (e *Editor) Store() *store.Store { return e.store }

// Processor returns the image processor
func (e *Editor) Processor() *processing.Processor { return e.processor }

// Config returns the editor configuration
func (e *Editor) Config() *config.Config { return e.cfg }

// Open loads source (a path or URL) and starts a session. A local file with a
// stored edit resumes it.
func (e *Editor) Open(source string, opts ...session.Option) (*session.Session, error) {
	img, err := e.processor.LoadImageSmart(source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}

	if !processing.IsURL(source) {
		params, err := e.store.LoadParams(source)
		switch {
		case err == nil:
			slog.Info("resuming stored edit", "source", source, "session", params.SessionID)
			opts = append([]session.Option{session.WithParams(params)}, opts...)
		case errors.Is(err, store.ErrNotFound):
		default:
			slog.Warn("ignoring unreadable sidecar", "source", source, "error", err)
		}
	}
	return e.OpenImage(img, opts...)
}

// OpenImage starts a session for an already decoded image
func (e *Editor) OpenImage(img image.Image, opts ...session.Option) (*session.Session, error) {
	base := []session.Option{
		session.WithConfig(e.cropCfg),
		session.WithViewport(e.cfg.Viewport()),
	}
	return session.New(img, append(base, opts...)...)
}

// CommitResult describes a committed edit
type CommitResult struct {
	OutputPath  string
	SidecarPath string
	Params      types.EditParams
	Image       image.Image
}

// Commit processes the session and writes the result to outPath. The edit is
// stored beside source when sidecars are enabled and source is a local file.
// Nothing is written and ErrNoChanges is returned when the session has no
// changes and needs no processing.
func (e *Editor) Commit(s *session.Session, source, outPath string) (*CommitResult, error) {
	res, err := s.Process()
	if err != nil {
		return nil, err
	}
	if !res.Changed {
		return nil, ErrNoChanges
	}

	format := processing.FormatForPath(outPath)
	if err := e.processor.SaveImage(res.Image, outPath, format, e.cfg.Output.Quality, e.cfg.Output.Lossless); err != nil {
		return nil, err
	}

	out := &CommitResult{OutputPath: outPath, Params: res.Params, Image: res.Image}
	if e.cfg.Output.Sidecar && source != "" && !processing.IsURL(source) {
		stored, err := e.store.Save(source, res.Params)
		if err != nil {
			return out, fmt.Errorf("image saved but sidecar failed: %w", err)
		}
		out.Params = stored
		out.SidecarPath = e.store.Path(source)
	}

	slog.Info("edit committed", "source", source, "output", outPath, "session", out.Params.SessionID)
	return out, nil
}

// ApplyParams renders stored edit parameters against img
func (e *Editor) ApplyParams(img image.Image, params types.EditParams) (*image.NRGBA, error) {
	return session.Apply(img, params)
}

// ApplyFile loads source, renders params against it and saves to outPath
func (e *Editor) ApplyFile(source string, params types.EditParams, outPath string) error {
	img, err := e.processor.LoadImageSmart(source)
	if err != nil {
		return fmt.Errorf("apply %s: %w", source, err)
	}
	out, err := e.ApplyParams(img, params)
	if err != nil {
		return fmt.Errorf("apply %s: %w", source, err)
	}
	return e.processor.SaveImage(out, outPath, processing.FormatForPath(outPath), e.cfg.Output.Quality, e.cfg.Output.Lossless)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
