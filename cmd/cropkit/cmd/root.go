package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/menta2k/cropkit"
	"github.com/menta2k/cropkit/internal/config"
)

var (
	configPath string
	verbose    bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cropkit",
	Short: "Interactive crop editor engine",
	Long: color.New(color.FgCyan, color.Bold).Sprint("cropkit "+cropkit.Version) + `

Crop, rotate, flip, zoom and pan images with the same validated gestures an
editor UI would use. Edits are stored beside each image so they can be
resumed, inspected and re-applied to other copies.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default "+config.GetConfigPath()+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(configCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	var err error
	cfg, err = config.LoadFromFile(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", configPath, err)
	}
	slog.Debug("config loaded", "path", configPath)
	return nil
}

func newEditor() (*cropkit.Editor, error) {
	return cropkit.NewWithConfig(cfg)
}
