package cmd

import (
	"github.com/spf13/cobra"

	"github.com/khaledhikmat/vs-face/mode"
	"github.com/khaledhikmat/vs-face/service/config"
)

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var analyzer string

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Estimate age, gender and race for one image file and print JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []config.Option
			if cmd.Flags().Changed("analyzer") {
				opts = append(opts, config.WithAnalyzer(analyzer))
			}
			return runMode(cmd, root, mode.Analyze, mode.Needs{Analyzer: true}, args, opts...)
		},
	}

	cmd.Flags().StringVar(&analyzer, "analyzer", "", "analyzer backend: dnn, deepface, openai or fake")
	return cmd
}

func newStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print persisted stream and analyzer telemetry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, root, mode.Stats, mode.Needs{}, args)
		},
	}
}
