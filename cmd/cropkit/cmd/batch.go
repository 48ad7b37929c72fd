package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/cropkit"
	"github.com/menta2k/cropkit/internal/store"
	"github.com/menta2k/cropkit/internal/utils"
)

var (
	batchParams  string
	batchOutput  string
	batchWorkers int
	batchFormat  string
)

var batchCmd = &cobra.Command{
	Use:   "batch [dir]",
	Short: "Apply edits to every image in a directory",
	Long: `Render every image under a directory. Each image uses its own sidecar
unless --params gives one edit to apply to all of them. Images without an
edit are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchParams, "params", "p", "", "edit file to apply to every image")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "output directory (default from config)")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "concurrent renders (default from config)")
	batchCmd.Flags().StringVar(&batchFormat, "format", "", "output format: jpg, png or webp")
}

type batchFailure struct {
	path string
	err  error
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	editor, err := newEditor()
	if err != nil {
		return err
	}

	if !utils.DirExists(dir) {
		return fmt.Errorf("%s is not a directory", dir)
	}
	files, err := utils.ListImageFiles(dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	if len(files) == 0 {
		color.Yellow("  No images found in %s", dir)
		return nil
	}

	outDir := batchOutput
	if outDir == "" {
		outDir = cfg.Output.OutputDir
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}
	format := batchFormat
	if format == "" {
		format = cfg.Output.Format
	}
	workers := batchWorkers
	if workers <= 0 {
		workers = cfg.Batch.Workers
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("  Rendering"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.GreenString("█"),
			SaucerHead:    color.GreenString("█"),
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
	)

	rep, err := renderBatch(cmd.Context(), editor, files, batchJob{
		paramsFile: batchParams,
		outDir:     outDir,
		suffix:     cfg.Output.Suffix,
		format:     format,
		workers:    workers,
	}, func() { bar.Add(1) })
	bar.Finish()
	fmt.Println()

	if err != nil {
		return fmt.Errorf("batch interrupted after %d images: %w", rep.written, err)
	}

	color.Green("✓ Rendered %d of %d images into %s", rep.written, len(files), outDir)
	if rep.skipped > 0 {
		color.Yellow("  Skipped %d without an edit", rep.skipped)
	}
	for _, f := range rep.failures {
		color.Red("  %s: %v", filepath.Base(f.path), f.err)
	}
	if len(rep.failures) > 0 {
		return fmt.Errorf("%d images failed", len(rep.failures))
	}
	return nil
}

type batchJob struct {
	paramsFile string
	outDir     string
	suffix     string
	format     string
	workers    int
}

type batchReport struct {
	written  int
	skipped  int
	failures []batchFailure
}

// renderBatch renders files with at most job.workers in flight. Per-image
// failures are collected in the report; only cancellation of ctx stops the
// batch early and is returned.
func renderBatch(ctx context.Context, editor *cropkit.Editor, files []string, job batchJob, progress func()) (batchReport, error) {
	var (
		mu  sync.Mutex
		rep batchReport
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(job.workers)
	for _, file := range files {
		g.Go(func() error {
			defer progress()
			if err := ctx.Err(); err != nil {
				return err
			}

			params, err := loadParams(editor.Store(), file, job.paramsFile)
			if errors.Is(err, store.ErrNotFound) {
				mu.Lock()
				rep.skipped++
				mu.Unlock()
				return nil
			}
			if err == nil {
				out := utils.OutputPath(file, job.outDir, job.suffix, job.format)
				err = editor.ApplyFile(file, params, out)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rep.failures = append(rep.failures, batchFailure{path: file, err: err})
			} else {
				rep.written++
			}
			return nil
		})
	}
	err := g.Wait()
	return rep, err
}
