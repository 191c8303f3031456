package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jscyril/stem_studio/internal/audio"
	"github.com/jscyril/stem_studio/internal/config"
	"github.com/jscyril/stem_studio/internal/playback"
	"github.com/jscyril/stem_studio/internal/ui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool

	// v holds defaults, the config file, env overrides and bound flags
	v = config.New()
)

// rootCmd opens the editor when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "studio [file]",
	Short: "A terminal multi-stem audio editor",
	Long: `Stem Studio loads a mixed recording, separates it into vocals, drums,
bass and other stems, lays the stems out as clips on a multi-track timeline
and plays them back mixed in real time.

Stems are written next to the source as <name>_<stem>.wav and reused the
next time the source is opened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEditor,
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "band", "separation backend (band, command)")
	rootCmd.PersistentFlags().Int("sample-rate", 44100, "project sample rate")

	// Editor flags
	rootCmd.Flags().Int("buffer-frames", 2048, "frames per output buffer")
	rootCmd.Flags().Bool("watch-stems", true, "reload stems written by other programs")

	// Bind flags to viper
	v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("separation.backend", rootCmd.PersistentFlags().Lookup("backend"))
	v.BindPFlag("audio.sample_rate", rootCmd.PersistentFlags().Lookup("sample-rate"))
	v.BindPFlag("audio.buffer_frames", rootCmd.Flags().Lookup("buffer-frames"))
	v.BindPFlag("project.watch_stems", rootCmd.Flags().Lookup("watch-stems"))
}

// initConfig applies flags that adjust other settings
func initConfig() {
	if verbose {
		v.Set("logging.level", "debug")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runEditor starts the terminal editor
func runEditor(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal, so logs only go to the file
	s, err := newStudio(studioOptions{watch: v.GetBool("project.watch_stems")})
	if err != nil {
		return err
	}
	defer s.Close()

	engine := playback.NewEngine(s.tl, audio.OpenSpeaker, playback.Options{
		BufferFrames: s.cfg.Audio.BufferFrames,
		SeekStep:     s.cfg.Timeline.SeekStep,
	}, s.bus, s.log.Named("playback"))
	defer engine.Stop()

	opts := ui.Options{Tracks: s.cfg.Timeline.Tracks}
	if len(args) == 1 {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve %s: %w", args[0], err)
		}
		opts.OpenPath = path
		opts.StartDir = filepath.Dir(path)
	} else if wd, err := os.Getwd(); err == nil {
		opts.StartDir = wd
	}

	s.log.Info("editor started", zap.String("open", opts.OpenPath))
	if err := ui.Run(engine, s.session, s.bus, opts); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return nil
}
