package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/khaledhikmat/vs-face/codec"
	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/analyzer"
	"github.com/khaledhikmat/vs-face/service/lgr"
)

// FrameAnalyzer answers single-image analysis requests.
type FrameAnalyzer struct {
	analyzerSvc analyzer.IService
	analysisLog *AnalysisLog
	errorStream chan interface{}
	statsStream chan interface{}
}

func NewFrameAnalyzer(analyzerSvc analyzer.IService, analysisLog *AnalysisLog, errorStream chan interface{}, statsStream chan interface{}) *FrameAnalyzer {
	return &FrameAnalyzer{
		analyzerSvc: analyzerSvc,
		analysisLog: analysisLog,
		errorStream: errorStream,
		statsStream: statsStream,
	}
}

// AnalyzeRequest decodes the request's data URL and analyses the image.
func (a *FrameAnalyzer) AnalyzeRequest(ctx context.Context, req model.AnalyzeRequest) (model.AnalyzeResponse, error) {
	if req.Image == nil {
		return model.AnalyzeResponse{}, a.fail(ErrMissingImage, "", time.Now())
	}
	return a.AnalyzeDataURL(ctx, *req.Image)
}

func (a *FrameAnalyzer) AnalyzeDataURL(ctx context.Context, dataURL string) (model.AnalyzeResponse, error) {
	begin := time.Now()

	data, err := codec.DecodeDataURL(dataURL)
	if err != nil {
		return model.AnalyzeResponse{}, a.fail(err, "", begin)
	}
	return a.analyze(ctx, data, begin)
}

// AnalyzeBytes analyses raw encoded image bytes (JPEG, PNG and so on).
func (a *FrameAnalyzer) AnalyzeBytes(ctx context.Context, data []byte) (model.AnalyzeResponse, error) {
	return a.analyze(ctx, data, time.Now())
}

func (a *FrameAnalyzer) analyze(ctx context.Context, data []byte, begin time.Time) (model.AnalyzeResponse, error) {
	id := uuid.NewString()

	img, err := codec.Decode(data)
	if err != nil {
		return model.AnalyzeResponse{}, a.fail(err, id, begin)
	}
	defer img.Close()

	working, err := codec.ResizeWorking(img)
	if err != nil {
		return model.AnalyzeResponse{}, a.fail(err, id, begin)
	}
	defer working.Close()

	results, err := a.analyzerSvc.Analyze(ctx, working, analyzer.DefaultOptions())
	if err != nil {
		return model.AnalyzeResponse{}, a.fail(err, id, begin)
	}

	rec, err := analyzer.First(results)
	if err != nil {
		return model.AnalyzeResponse{}, a.fail(err, id, begin)
	}

	a.analysisLog.Record("analyze_frame", results)

	lgr.Logger.Info("frame analyzed",
		slog.String("id", id),
		slog.Int("faces", len(results)),
		slog.Int("age", rec.Age),
		slog.String("gender", rec.DominantGender),
		slog.String("race", rec.DominantRace),
	)

	emit(a.statsStream, model.AnalyzerStats{
		ID:        id,
		Analyzer:  a.analyzerSvc.Name(),
		Faces:     len(results),
		OK:        true,
		ProcTime:  time.Since(begin).Seconds(),
		Timestamp: time.Now().Unix(),
	})

	return model.AnalyzeResponse{
		Age:    rec.Age,
		Gender: rec.DominantGender,
		Race:   rec.DominantRace,
	}, nil
}

func (a *FrameAnalyzer) fail(err error, id string, begin time.Time) error {
	if id == "" {
		id = uuid.NewString()
	}

	emit(a.errorStream, model.GenError("frame_analyzer",
		err,
		map[string]interface{}{
			"id":       id,
			"analyzer": a.analyzerSvc.Name(),
		},
		"error analyzing frame"))

	emit(a.statsStream, model.AnalyzerStats{
		ID:        id,
		Analyzer:  a.analyzerSvc.Name(),
		OK:        false,
		Error:     err.Error(),
		ProcTime:  time.Since(begin).Seconds(),
		Timestamp: time.Now().Unix(),
	})

	return err
}
