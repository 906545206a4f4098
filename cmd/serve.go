package cmd

import (
	"github.com/spf13/cobra"

	"github.com/khaledhikmat/vs-face/mode"
	"github.com/khaledhikmat/vs-face/service/config"
)

type serveOptions struct {
	port     int
	analyzer string
	camera   string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /video_feed and /analyze_frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, root, mode.Server, mode.Needs{Camera: true, Analyzer: true}, args, opts.configOptions(cmd)...)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "HTTP port (default 5000)")
	cmd.Flags().StringVar(&opts.analyzer, "analyzer", "", "analyzer backend: dnn, deepface, openai or fake")
	cmd.Flags().StringVar(&opts.camera, "camera", "", "camera device index, file or URL")

	return cmd
}

// configOptions turns explicitly set flags into config overrides.
func (o *serveOptions) configOptions(cmd *cobra.Command) []config.Option {
	var opts []config.Option
	if cmd.Flags().Changed("port") {
		opts = append(opts, config.WithPort(o.port))
	}
	if cmd.Flags().Changed("analyzer") {
		opts = append(opts, config.WithAnalyzer(o.analyzer))
	}
	if cmd.Flags().Changed("camera") {
		opts = append(opts, config.WithCameraDevice(o.camera))
	}
	return opts
}
