package pipeline

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/lgr"
	"github.com/natefinch/lumberjack"
)

// AnalysisLog appends every analysis result as one JSON line to a rotated file.
// A nil *AnalysisLog is valid and records nothing.
type AnalysisLog struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

type analysisEntry struct {
	Time    string               `json:"time"`
	Source  string               `json:"source"`
	Results []model.FaceAnalysis `json:"results"`
}

func NewAnalysisLog(path string) *AnalysisLog {
	if path == "" {
		return nil
	}

	return &AnalysisLog{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		},
	}
}

func (l *AnalysisLog) Record(source string, results []model.FaceAnalysis) {
	if l == nil || len(results) == 0 {
		return
	}

	data, err := json.Marshal(analysisEntry{
		Time:    time.Now().Format(time.RFC3339),
		Source:  source,
		Results: results,
	})
	if err != nil {
		lgr.Logger.Error("analysis log marshal failed", slog.Any("error", err))
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.out.Write(append(data, '\n')); err != nil {
		lgr.Logger.Error("analysis log write failed", slog.Any("error", err))
	}
}

func (l *AnalysisLog) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
