package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/menta2k/cropkit"
	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/internal/utils"
	"github.com/menta2k/cropkit/pkg/crop"
	"github.com/menta2k/cropkit/pkg/session"
)

var (
	editDrags   []string
	editRotate  int
	editFlip    bool
	editZoom    float64
	editPan     string
	editReset   bool
	editOutput  string
	editOverlay string
	editShape   string
	editAspect  string
)

var editCmd = &cobra.Command{
	Use:   "edit [image]",
	Short: "Edit an image with scripted gestures",
	Long: `Open an image (resuming its stored edit if there is one), replay gestures
and commit the result.

Gestures run in this order: reset, drags, rotations, flip, zoom, pan.
Coordinates are editor units, one per source pixel unless a viewport is
configured.

Example:
  cropkit edit photo.jpg --drag 1,1:40,30 --drag 500,300:-20,0 --rotate 1 --flip`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringArrayVar(&editDrags, "drag", nil, "grab at x,y and move by dx,dy (x,y:dx,dy), repeatable")
	editCmd.Flags().IntVar(&editRotate, "rotate", 0, "quarter turns to apply")
	editCmd.Flags().BoolVar(&editFlip, "flip", false, "mirror left to right")
	editCmd.Flags().Float64Var(&editZoom, "zoom", 0, "zoom scale (1-10)")
	editCmd.Flags().StringVar(&editPan, "pan", "", "pan offset x,y (needs zoom)")
	editCmd.Flags().BoolVar(&editReset, "reset", false, "discard the stored edit first")
	editCmd.Flags().StringVarP(&editOutput, "output", "o", "", "output file (default from config output dir and suffix)")
	editCmd.Flags().StringVar(&editOverlay, "overlay", "", "also write the editor view with the crop frame to this file")
	editCmd.Flags().StringVar(&editShape, "shape", "", "crop shape: free, square or circle (overrides a stored edit)")
	editCmd.Flags().StringVar(&editAspect, "aspect", "", "max aspect ratio: preset name, W:H or height/width (overrides a stored edit)")
}

// constraintOptions makes --shape and --aspect win over a resumed edit
func constraintOptions() ([]session.Option, error) {
	var opts []session.Option
	if editShape != "" {
		shape, err := crop.ParseShape(editShape)
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithShape(shape))
	}
	if editAspect != "" {
		a, err := config.ParseAspectRatio(editAspect)
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithMaxAspect(a))
	}
	return opts, nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	source := args[0]

	if editShape != "" {
		cfg.Editor.Shape = editShape
	}
	if editAspect != "" {
		cfg.Editor.AspectRatio = editAspect
	}
	editor, err := newEditor()
	if err != nil {
		return err
	}

	opts, err := constraintOptions()
	if err != nil {
		return err
	}
	s, err := editor.Open(source, opts...)
	if err != nil {
		return err
	}
	if err := replayGestures(s); err != nil {
		return err
	}

	if editOverlay != "" {
		snap := s.Snapshot()
		overlay := editor.Processor().DrawOverlay(s.DisplayedImage(), snap.Region, snap.Editor, s.Config().HandleThreshold)
		if err := editor.Processor().SaveImage(overlay, editOverlay, utils.GetFileExtension(editOverlay), cfg.Output.Quality, false); err != nil {
			return err
		}
		fmt.Printf("  Overlay: %s\n", editOverlay)
	}

	out := editOutput
	if out == "" {
		if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
			return err
		}
		out = utils.OutputPath(source, cfg.Output.OutputDir, cfg.Output.Suffix, outputFormat(s))
	}

	res, err := editor.Commit(s, source, out)
	if errors.Is(err, cropkit.ErrNoChanges) {
		color.Yellow("  No changes to %s, nothing written", filepath.Base(source))
		return nil
	}
	if err != nil {
		return err
	}

	color.Green("✓ Wrote %s (%dx%d, %s)", res.OutputPath, res.Image.Bounds().Dx(), res.Image.Bounds().Dy(), utils.FileSize(res.OutputPath))
	if res.SidecarPath != "" {
		fmt.Printf("  Edit saved to %s\n", res.SidecarPath)
	}
	return nil
}

// replayGestures applies the command line gestures to s
func replayGestures(s *session.Session) error {
	if editReset {
		s.Reset()
	}

	for _, d := range editDrags {
		step, err := parseDrag(d)
		if err != nil {
			return err
		}
		zone := s.BeginDrag(step.From)
		ok := s.Drag(step.Delta.X, step.Delta.Y)
		s.EndDrag()
		if zone == crop.ZoneNone {
			color.Yellow("  Drag %s: nothing to grab there", d)
		} else if !ok {
			color.Yellow("  Drag %s: %s move rejected", d, zone)
		}
	}

	for i := 0; i < (editRotate%4+4)%4; i++ {
		s.Rotate()
	}
	if editFlip {
		s.Flip()
	}
	if editZoom != 0 {
		s.Zoom(editZoom)
	}
	if editPan != "" {
		offset, err := parsePoint(editPan)
		if err != nil {
			return err
		}
		if !s.Pan(offset) {
			color.Yellow("  Pan %s rejected: the image would no longer cover the editor", editPan)
		}
	}

	snap := s.Snapshot()
	fmt.Printf("  Crop %s in %.0fx%.0f, rotation %d°, scale %.2f\n",
		snap.Region, snap.Editor.Width, snap.Editor.Height, snap.State.Degrees(), snap.State.Scale)
	return nil
}

// outputFormat keeps transparency for circle crops
func outputFormat(s *session.Session) string {
	if s.Config().Shape == crop.ShapeCircle && cfg.Output.Format != "webp" {
		return "png"
	}
	return cfg.Output.Format
}
