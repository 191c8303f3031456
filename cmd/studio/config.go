package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jscyril/stem_studio/internal/config"
	"github.com/spf13/cobra"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  "Commands for managing and validating studio configuration.",
}

// configValidateCmd validates the current configuration
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the current configuration file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		fmt.Println("✅ Configuration is valid")
		return nil
	},
}

// configShowCmd shows the current configuration
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the current configuration values from file and environment variables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		source := v.ConfigFileUsed()
		if source == "" {
			source = "(defaults)"
		}
		fmt.Printf("Current Configuration: %s\n", source)
		fmt.Printf("  Audio:\n")
		fmt.Printf("    Sample rate: %d\n", cfg.Audio.SampleRate)
		fmt.Printf("    Buffer frames: %d\n", cfg.Audio.BufferFrames)
		fmt.Printf("    Resample quality: %d\n", cfg.Audio.ResampleQuality)
		fmt.Printf("  Timeline:\n")
		fmt.Printf("    Tracks: %s\n", strings.Join(cfg.Timeline.Tracks, ", "))
		fmt.Printf("    Snap: %gs\n", cfg.Timeline.SnapSeconds)
		fmt.Printf("    Minimum duration: %gs\n", cfg.Timeline.MinDuration)
		fmt.Printf("    Tail padding: %gs\n", cfg.Timeline.TailPadding)
		fmt.Printf("    Seek step: %gs\n", cfg.Timeline.SeekStep)
		fmt.Printf("  Separation:\n")
		fmt.Printf("    Backend: %s\n", cfg.Separation.Backend)
		if cfg.Separation.Backend == "command" {
			fmt.Printf("    Command: %s -n %s %s\n", cfg.Separation.Command, cfg.Separation.Model, strings.Join(cfg.Separation.Args, " "))
		}
		fmt.Printf("  Project:\n")
		fmt.Printf("    Load workers: %d\n", cfg.Project.LoadWorkers)
		fmt.Printf("    Watch stems: %t\n", cfg.Project.WatchStems)
		fmt.Printf("  Logging:\n")
		fmt.Printf("    Level: %s\n", cfg.Logging.Level)
		fmt.Printf("    File: %s\n", cfg.Logging.File)
		fmt.Printf("  Data dir: %s\n", cfg.DataDir)
		return nil
	},
}

// configInitCmd writes the defaults to a config file
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(config.ConfigDir(), "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
