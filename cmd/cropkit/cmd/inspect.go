package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/menta2k/cropkit/internal/store"
	"github.com/menta2k/cropkit/internal/utils"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [image or edit file]...",
	Short: "Show stored edits",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	st := store.NewStore("")
	missing := 0

	for _, arg := range args {
		sidecar := arg
		if !utils.IsSidecar(arg) {
			sidecar = st.Path(arg)
		}
		f, err := store.LoadFile(sidecar)
		if err != nil {
			color.Red("  %s: %v", arg, err)
			missing++
			continue
		}

		fmt.Println("\n" + color.CyanString(utils.ImageForSidecar(sidecar)))
		p := f.Params
		norm := p.NormalizedCrop()

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Field", "Value"})
		table.SetBorder(false)
		table.AppendBulk([][]string{
			{"Session", p.SessionID},
			{"Updated", f.UpdatedAt.Local().Format(time.RFC3339)},
			{"Editor", fmt.Sprintf("%.0f x %.0f", p.Editor.Width, p.Editor.Height)},
			{"Crop", p.Crop.String()},
			{"Crop (normalized)", fmt.Sprintf("x=%.3f y=%.3f w=%.3f h=%.3f", norm.X, norm.Y, norm.W, norm.H)},
			{"Rotation", fmt.Sprintf("%d°", p.State().Degrees())},
			{"Mirrored", mirrorLabel(p.FlipHorizontal, p.FlipVertical)},
			{"Zoom", fmt.Sprintf("%.2fx", p.Scale)},
			{"Pan", fmt.Sprintf("%.1f, %.1f", p.Offset.X, p.Offset.Y)},
			{"Shape", p.Shape.String()},
			{"Max aspect", aspectLabel(p.MaxAspectRatio)},
		})
		table.Render()
	}
	fmt.Println()

	if missing > 0 {
		return fmt.Errorf("%d of %d edits could not be read", missing, len(args))
	}
	return nil
}

func mirrorLabel(horizontal, vertical bool) string {
	switch {
	case horizontal && vertical:
		return "both axes"
	case vertical:
		return "left-right"
	case horizontal:
		return "top-bottom"
	}
	return "no"
}

func aspectLabel(v float64) string {
	if v <= 0 {
		return "none"
	}
	return fmt.Sprintf("%.3f (h/w)", v)
}
