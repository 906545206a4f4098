package analyzer

import (
	"context"
	"sync/atomic"

	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/config"
	"gocv.io/x/gocv"
)

type fakeService struct {
	results []model.FaceAnalysis
	err     error
	calls   atomic.Int64
}

// NewFake returns results (or err) for every call. With no results and no
// error it answers with a single fixed record.
func NewFake(results []model.FaceAnalysis, err error) IService {
	if len(results) == 0 && err == nil {
		results = []model.FaceAnalysis{{
			Age:            30,
			Gender:         map[string]float64{"Woman": 5, "Man": 95},
			DominantGender: "Man",
			Race:           map[string]float64{"white": 80, "asian": 20},
			DominantRace:   "white",
			FaceConfidence: 0.9,
		}}
	}

	return &fakeService{
		results: results,
		err:     err,
	}
}

func (svc *fakeService) Name() string {
	return config.AnalyzerFake
}

func (svc *fakeService) Analyze(ctx context.Context, img gocv.Mat, opts Options) ([]model.FaceAnalysis, error) {
	svc.calls.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, ErrEmptyImage
	}
	if svc.err != nil {
		return nil, svc.err
	}

	out := make([]model.FaceAnalysis, len(svc.results))
	copy(out, svc.results)
	return out, nil
}

// Calls reports how many times Analyze ran.
func (svc *fakeService) Calls() int64 {
	return svc.calls.Load()
}

func (svc *fakeService) Close() error {
	return nil
}
