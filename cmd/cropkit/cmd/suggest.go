package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/internal/utils"
	"github.com/menta2k/cropkit/pkg/client"
	"github.com/menta2k/cropkit/pkg/detection"
	"github.com/menta2k/cropkit/pkg/llamacpp"
	"github.com/menta2k/cropkit/pkg/ollama"
	"github.com/menta2k/cropkit/pkg/processing"
	"github.com/menta2k/cropkit/pkg/vision"
)

var (
	suggestSave    bool
	suggestOverlay string
	suggestPadding float64
	suggestTest    bool
	suggestBackend string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [image]",
	Short: "Suggest a starting crop with a vision model",
	Long: `Ask the configured vision model (Ollama or llama.cpp) where the subject of
an image is and frame it with a valid crop. The "saliency" backend finds the
subject offline from local contrast instead. --save stores the suggestion as
the image's edit so "cropkit edit" starts from it.`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func init() {
	suggestCmd.Flags().BoolVar(&suggestSave, "save", false, "store the suggestion as the image's edit")
	suggestCmd.Flags().StringVar(&suggestOverlay, "overlay", "", "write the suggested frame over the image to this file")
	suggestCmd.Flags().Float64Var(&suggestPadding, "padding", -1, "grow the subject box by this fraction (default from config)")
	suggestCmd.Flags().BoolVar(&suggestTest, "test-vision", false, "only ask the model to describe the image")
	suggestCmd.Flags().StringVar(&suggestBackend, "backend", "", "override vision.backend (ollama, llamacpp, saliency)")
}

// newVisionClient builds the configured vision backend
func newVisionClient(vc config.VisionConfig) (client.VisionClient, error) {
	switch vc.Backend {
	case config.BackendOllama:
		return ollama.NewClient(vc.URL)
	case config.BackendLlamaCpp:
		return llamacpp.NewClient(vc.URL)
	case config.BackendSaliency:
		return vision.New(), nil
	}
	return nil, fmt.Errorf("unknown backend: %s (use %s, %s or %s)", vc.Backend, config.BackendOllama, config.BackendLlamaCpp, config.BackendSaliency)
}

func runSuggest(cmd *cobra.Command, args []string) error {
	source := args[0]
	editor, err := newEditor()
	if err != nil {
		return err
	}

	if suggestBackend != "" {
		cfg.Vision.Backend = suggestBackend
	}
	vc, err := newVisionClient(cfg.Vision)
	if err != nil {
		return err
	}
	detector := detection.NewDetector(vc, cfg.Vision.Model)
	detector.SetMaxDim(cfg.Vision.MaxDim)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Vision.Timeout)
	defer cancel()

	img, err := editor.Processor().LoadImageSmart(source)
	if err != nil {
		return err
	}
	s, err := editor.OpenImage(img)
	if err != nil {
		return err
	}

	if suggestTest {
		b64, err := editor.Processor().EncodeForModel(s.Original(), processing.FormatJPEG, cfg.Vision.MaxDim, 85)
		if err != nil {
			return err
		}
		answer, err := detector.TestVision(ctx, b64)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	}

	padding := suggestPadding
	if padding < 0 {
		padding = cfg.Vision.Padding
	}
	snap := s.Snapshot()
	color.Cyan("  Asking %s (%s)...", cfg.Vision.Model, cfg.Vision.Backend)
	sug, err := detector.SuggestRegion(ctx, s.Original(), snap.Editor, s.Config(), padding)
	if err != nil {
		return err
	}

	a := sug.Analysis
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.SetBorder(false)
	table.AppendBulk([][]string{
		{"Subject", a.Primary.Label},
		{"Confidence", fmt.Sprintf("%.2f", a.Primary.Confidence)},
		{"Box", fmt.Sprintf("x=%.3f y=%.3f w=%.3f h=%.3f", a.Primary.Box.X, a.Primary.Box.Y, a.Primary.Box.W, a.Primary.Box.H)},
		{"Description", a.Description},
		{"Tags", strings.Join(a.Tags, ", ")},
		{"Suggested crop", sug.Region.String()},
	})
	table.Render()
	if sug.Fallback {
		color.Yellow("  No usable subject found, suggesting the default crop")
	}

	if suggestOverlay != "" {
		overlay := editor.Processor().DrawOverlay(s.DisplayedImage(), sug.Region, snap.Editor, s.Config().HandleThreshold)
		if err := editor.Processor().SaveImage(overlay, suggestOverlay, utils.GetFileExtension(suggestOverlay), cfg.Output.Quality, false); err != nil {
			return err
		}
		fmt.Printf("  Overlay: %s\n", suggestOverlay)
	}

	if suggestSave {
		if processing.IsURL(source) {
			return fmt.Errorf("cannot store an edit for a URL")
		}
		params := s.Params()
		params.Crop = sug.Region
		if _, err := editor.Store().Save(source, params); err != nil {
			return err
		}
		color.Green("✓ Saved suggestion to %s", editor.Store().Path(source))
	}
	return nil
}
