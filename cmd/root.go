// Package cmd wires the command line to the mode processors.
package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-face/mode"
	"github.com/khaledhikmat/vs-face/service/config"
	"github.com/khaledhikmat/vs-face/service/lgr"
)

// Version is the application version.
const Version = "0.1.0"

type rootOptions struct {
	configPath string
	logLevel   string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "vs-face",
		Short:         "Live face analysis over HTTP: annotated MJPEG feed and single-frame age, gender and race estimates",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadDotEnv()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default: $XDG_CONFIG_HOME/"+config.DefaultConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	serveCmd := newServeCmd(opts)
	rootCmd.AddCommand(serveCmd, newAnalyzeCmd(opts), newStatsCmd(opts))

	// Running the bare binary serves.
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.RunE = serveCmd.RunE

	return rootCmd
}

func Execute() {
	canxCtx, canxFn := context.WithCancel(context.Background())
	defer canxFn()

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			lgr.Logger.Info(
				"received kill signal",
				slog.Any("signal", sig),
			)
			canxFn()
		case <-canxCtx.Done():
		}
	}()

	if err := NewRootCmd().ExecuteContext(canxCtx); err != nil {
		lgr.Logger.Error("vs-face exited", slog.Any("error", xerrors.New(err.Error())))
		os.Exit(1)
	}
}

// loadDotEnv reads .env in development. A missing file is not an error.
func loadDotEnv() error {
	env := os.Getenv("RUN_TIME_ENV")
	if env != "dev" && env != "" {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return xerrors.Errorf("error loading .env file: %w", err)
	}

	lgr.Logger.Debug("loaded env vars from .env file")
	return nil
}

// runMode loads configuration, initialises logging, builds the services the
// processor needs and runs it.
func runMode(cmd *cobra.Command, root *rootOptions, proc mode.Processor, needs mode.Needs, args []string, cfgOpts ...config.Option) error {
	if root.logLevel != "" {
		cfgOpts = append(cfgOpts, config.WithLogLevel(root.logLevel))
	}

	cfgSvc, err := config.Load(root.configPath, cfgOpts...)
	if err != nil {
		return err
	}

	lgr.Init(lgr.Options{
		Level:      cfgSvc.GetLogLevel(),
		Production: cfgSvc.IsProduction(),
		File:       cfgSvc.GetLogFile(),
	})

	svcs, err := mode.NewServicesFactory(cfgSvc, needs)
	if err != nil {
		return err
	}
	defer func() {
		if err := svcs.Close(); err != nil {
			lgr.Logger.Warn("error closing services", slog.Any("error", err))
		}
	}()

	return proc(cmd.Context(), svcs, args)
}
