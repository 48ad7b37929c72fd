package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/pkg/crop"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Initialize, view, and modify configuration settings.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default settings.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configAspectsCmd = &cobra.Command{
	Use:   "aspects",
	Short: "List aspect ratio presets",
	RunE:  runConfigAspects,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configAspectsCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	header := color.New(color.FgCyan, color.Bold)
	header.Println("\n  INITIALIZING CONFIGURATION")
	fmt.Println("  " + strings.Repeat("─", 40))

	if err := config.Init(configPath); err != nil {
		color.Yellow("  %v", err)
		return nil
	}
	color.Green("  ✓ Created %s", configPath)
	fmt.Println()
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	fmt.Println(color.CyanString("# %s", configPath))
	fmt.Print(string(data))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := cfg.Set(args[0], args[1]); err != nil {
		return err
	}
	if err := cfg.SaveToFile(configPath); err != nil {
		return err
	}
	color.Green("  ✓ %s = %s", args[0], args[1])
	return nil
}

func runConfigAspects(cmd *cobra.Command, args []string) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Ratio", "Height/Width"})
	table.SetBorder(false)
	for _, a := range crop.CommonAspectRatios() {
		table.Append([]string{a.Name, fmt.Sprintf("%d:%d", a.Width, a.Height), fmt.Sprintf("%.3f", a.HeightOverWidth())})
	}
	table.Render()
	return nil
}
