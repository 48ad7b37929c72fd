package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/menta2k/cropkit/internal/store"
	"github.com/menta2k/cropkit/internal/utils"
	"github.com/menta2k/cropkit/pkg/types"
)

var (
	applyParams string
	applyOutput string
)

var applyCmd = &cobra.Command{
	Use:   "apply [image]",
	Short: "Render an image from stored edit parameters",
	Long: `Render the crop described by an edit file. By default the image's own
sidecar is used; --params applies another image's edit, for example one made
on a preview to the full resolution original.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyParams, "params", "p", "", "edit file to apply (default: the image's sidecar)")
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "output file (default from config output dir and suffix)")
}

func runApply(cmd *cobra.Command, args []string) error {
	source := args[0]
	editor, err := newEditor()
	if err != nil {
		return err
	}

	params, err := loadParams(editor.Store(), source, applyParams)
	if err != nil {
		return err
	}

	out := applyOutput
	if out == "" {
		if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
			return err
		}
		out = utils.OutputPath(source, cfg.Output.OutputDir, cfg.Output.Suffix, cfg.Output.Format)
	}

	if err := editor.ApplyFile(source, params, out); err != nil {
		return err
	}
	color.Green("✓ Wrote %s (%s)", out, utils.FileSize(out))
	return nil
}

// loadParams reads an explicit edit file, or the sidecar of source
func loadParams(s *store.Store, source, paramsFile string) (types.EditParams, error) {
	if paramsFile != "" {
		f, err := store.LoadFile(paramsFile)
		if err != nil {
			return types.EditParams{}, err
		}
		return f.Params, nil
	}
	params, err := s.LoadParams(source)
	if err != nil {
		return types.EditParams{}, fmt.Errorf("%s: %w", source, err)
	}
	return params, nil
}
