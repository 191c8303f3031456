package main

import (
	"fmt"

	"github.com/jscyril/stem_studio/internal/project"
	"github.com/spf13/cobra"
)

var separateCmd = &cobra.Command{
	Use:   "separate <file>",
	Short: "Separate a recording into stem files",
	Long: `Run the configured separation backend on a recording and write the
stems next to it as <name>_<stem>.wav. Existing stem files are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeparate,
}

func init() {
	separateCmd.Flags().String("command", "demucs", "executable for the command backend")
	separateCmd.Flags().String("model", "htdemucs", "model passed to the command backend")
	v.BindPFlag("separation.command", separateCmd.Flags().Lookup("command"))
	v.BindPFlag("separation.model", separateCmd.Flags().Lookup("model"))
	rootCmd.AddCommand(separateCmd)
}

func runSeparate(cmd *cobra.Command, args []string) error {
	s, err := newStudio(studioOptions{console: verbose})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	loader := project.NewLoader(1, s.cfg.Audio.SampleRate, s.cfg.Audio.ResampleQuality)
	mix, err := loader.LoadFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Separating %s...\n", args[0])
	res := s.runner.Run(ctx, args[0], mix)
	if res.Err != nil {
		return res.Err
	}
	for _, p := range res.Paths {
		fmt.Println("  " + p)
	}
	fmt.Printf("✅ Wrote %d stems\n", len(res.Paths))
	return nil
}
