package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/khaledhikmat/vs-face/codec"
	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/analyzer"
	"github.com/khaledhikmat/vs-face/service/camera"
	"github.com/khaledhikmat/vs-face/service/config"
	"github.com/khaledhikmat/vs-face/service/lgr"
	"gocv.io/x/gocv"
)

// VideoStreamer turns camera frames into an annotated MJPEG part stream.
type VideoStreamer struct {
	cameraSvc   camera.IService
	analyzerSvc analyzer.IService
	analysisLog *AnalysisLog
	quality     int
	errorStream chan interface{}
	statsStream chan interface{}
}

func NewVideoStreamer(cfgSvc config.IService, cameraSvc camera.IService, analyzerSvc analyzer.IService, analysisLog *AnalysisLog, errorStream chan interface{}, statsStream chan interface{}) *VideoStreamer {
	return &VideoStreamer{
		cameraSvc:   cameraSvc,
		analyzerSvc: analyzerSvc,
		analysisLog: analysisLog,
		quality:     cfgSvc.GetJPEGQuality(),
		errorStream: errorStream,
		statsStream: statsStream,
	}
}

// Open opens the camera for one stream. Each client gets its own capture.
func (s *VideoStreamer) Open(ctx context.Context) (camera.Capture, error) {
	capture, err := s.cameraSvc.Open(ctx)
	if err != nil {
		emit(s.errorStream, model.GenError("video_streamer",
			err,
			map[string]interface{}{
				"camera": s.cameraSvc.Name(),
			},
			"error opening camera"))
		return nil, err
	}
	return capture, nil
}

// Stream writes one multipart part per captured frame until the capture
// fails, a write fails or ctx is done. It closes capture on return.
// Analysis is best-effort: a frame whose analysis fails is sent unannotated.
func (s *VideoStreamer) Stream(ctx context.Context, capture camera.Capture, w FlushWriter) error {
	defer capture.Close()

	id := uuid.NewString()
	startTime := time.Now()
	frames := 0
	annotated := 0
	analyzeErrors := 0
	encodeErrors := 0

	var totalProcTime time.Duration

	lgr.Logger.Info("video stream started",
		slog.String("id", id),
		slog.String("camera", s.cameraSvc.Name()),
		slog.String("analyzer", s.analyzerSvc.Name()),
	)

	defer func() {
		uptime := time.Since(startTime)

		fps := 0
		if uptime >= time.Second {
			fps = int(float64(frames) / uptime.Seconds())
		}

		var avgProcTime float64
		if frames > 0 {
			avgProcTime = totalProcTime.Seconds() / float64(frames)
		}

		emit(s.statsStream, model.StreamStats{
			ID:            id,
			Camera:        s.cameraSvc.Name(),
			Analyzer:      s.analyzerSvc.Name(),
			Frames:        frames,
			Annotated:     annotated,
			AnalyzeErrors: analyzeErrors,
			EncodeErrors:  encodeErrors,
			FPS:           fps,
			Uptime:        int64(uptime.Seconds()),
			AvgProcTime:   avgProcTime,
			Timestamp:     time.Now().Unix(),
		})
	}()

	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Info("video stream context cancelled", slog.String("id", id))
			return ctx.Err()
		default:
		}

		if ok := capture.Read(&img); !ok || img.Empty() {
			lgr.Logger.Info("video stream capture ended", slog.String("id", id), slog.Int("frames", frames))
			emit(s.errorStream, model.GenError("video_streamer",
				ErrCaptureFailed,
				map[string]interface{}{
					"id":     id,
					"camera": s.cameraSvc.Name(),
					"frames": frames,
				},
				"error reading frame"))
			return ErrCaptureFailed
		}
		frames++

		begin := time.Now()
		if s.annotate(ctx, &img) {
			annotated++
		} else {
			analyzeErrors++
		}
		totalProcTime += time.Since(begin)

		jpeg, err := codec.EncodeJPEG(img, s.quality)
		if err != nil {
			encodeErrors++
			emit(s.errorStream, model.GenError("video_streamer",
				err,
				map[string]interface{}{
					"id":     id,
					"frames": frames,
				},
				"error encoding frame"))
			return err
		}

		if err := codec.WritePart(w, jpeg); err != nil {
			lgr.Logger.Info("video stream client disconnected", slog.String("id", id), slog.Any("error", err))
			return err
		}
		if err := w.Flush(); err != nil {
			lgr.Logger.Info("video stream client disconnected", slog.String("id", id), slog.Any("error", err))
			return err
		}
	}
}

// annotate analyses img and draws the first record onto it. It reports
// whether the frame was annotated.
func (s *VideoStreamer) annotate(ctx context.Context, img *gocv.Mat) (annotated bool) {
	// The stream writer goroutine has no recover of its own.
	defer func() {
		if r := recover(); r != nil {
			lgr.Logger.Error("panic analyzing frame", slog.Any("panic", r))
			annotated = false
		}
	}()

	results, err := s.analyzerSvc.Analyze(ctx, *img, analyzer.DefaultOptions())
	if err != nil {
		lgr.Logger.Debug("error analyzing frame", slog.Any("error", err))
		return false
	}

	rec, err := analyzer.First(results)
	if err != nil {
		lgr.Logger.Debug("error analyzing frame", slog.Any("error", err))
		return false
	}

	s.analysisLog.Record("video_feed", results)
	Annotate(img, rec)
	return true
}
