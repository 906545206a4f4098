package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/analyzer"
	"github.com/khaledhikmat/vs-face/service/camera"
	"github.com/khaledhikmat/vs-face/service/config"
	"github.com/khaledhikmat/vs-face/service/data"
	"github.com/khaledhikmat/vs-face/service/lgr"
)

// ServicesFactory holds the services a processor runs with. Services a
// processor does not need may be nil.
type ServicesFactory struct {
	CfgSvc      config.IService
	DataSvc     data.IService
	CameraSvc   camera.IService
	AnalyzerSvc analyzer.IService
}

type Processor func(canxCtx context.Context, svcs ServicesFactory, args []string) error

func procStats(datasvc data.IService, stats interface{}) {
	switch stats := stats.(type) {
	case model.StreamStats:
		procStreamStats(datasvc, stats)
	case model.AnalyzerStats:
		procAnalyzerStats(datasvc, stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procStreamStats(datasvc data.IService, stats model.StreamStats) {
	lgr.Logger.Info(
		"video stream stats",
		slog.String("id", stats.ID),
		slog.Int("frames", stats.Frames),
		slog.Int("annotated", stats.Annotated),
		slog.Int("analyzeErrors", stats.AnalyzeErrors),
		slog.Int("fps", stats.FPS),
		slog.Int64("uptime", stats.Uptime),
	)

	err := datasvc.NewStreamStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store stream stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procAnalyzerStats(datasvc data.IService, stats model.AnalyzerStats) {
	err := datasvc.NewAnalyzerStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store analyzer stats",
			slog.Any("stats", stats),
			slog.Any("error", err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}
