package mode

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/pipeline"
	"github.com/khaledhikmat/vs-face/service/lgr"
	"github.com/khaledhikmat/vs-face/web"
)

// Server runs the HTTP service until canxCtx is cancelled or the listener fails.
// Telemetry from streams and analyses is persisted through the data service.
func Server(canxCtx context.Context, svcs ServicesFactory, _ []string) error {
	// Buffered so handlers never wait on persistence
	errorStream := make(chan interface{}, 100)
	statsStream := make(chan interface{}, 100)

	analysisLog := pipeline.NewAnalysisLog(svcs.CfgSvc.GetAnalysisLogFile())
	defer analysisLog.Close()

	streamer := pipeline.NewVideoStreamer(svcs.CfgSvc, svcs.CameraSvc, svcs.AnalyzerSvc, analysisLog, errorStream, statsStream)
	frameAnalyzer := pipeline.NewFrameAnalyzer(svcs.AnalyzerSvc, analysisLog, errorStream, statsStream)
	srv := web.NewServer(canxCtx, svcs.CfgSvc.GetPort(), svcs.AnalyzerSvc.Name(), streamer, frameAnalyzer)

	shutdownPeriod := time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second

	g, gCtx := errgroup.WithContext(canxCtx)

	g.Go(func() error {
		return srv.Listen()
	})

	g.Go(func() error {
		<-gCtx.Done()
		lgr.Logger.Info("server shutting down", slog.Duration("timeout", shutdownPeriod))
		return srv.Shutdown(shutdownPeriod)
	})

	g.Go(func() error {
		drain(gCtx, svcs, errorStream, statsStream)
		return nil
	})

	err := g.Wait()
	if err != nil {
		procError(svcs.DataSvc, model.GenError("server",
			err,
			map[string]interface{}{
				"port": svcs.CfgSvc.GetPort(),
			},
			"server exited with error"))
	}

	// Streams report their stats as they unwind
	lgr.Logger.Info(
		"server is waiting for all go routines to exit",
	)

	timer := time.NewTimer(shutdownPeriod)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			lgr.Logger.Info(
				"server shutdown waiting period expired. Exiting now",
				slog.Duration("period", shutdownPeriod),
			)
			return err

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}

// drain persists telemetry until ctx is done.
func drain(ctx context.Context, svcs ServicesFactory, errorStream, statsStream chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Info(
				"server context cancelled",
			)
			return

		case s := <-statsStream:
			procStats(svcs.DataSvc, s)

		case e := <-errorStream:
			procError(svcs.DataSvc, e)
		}
	}
}
