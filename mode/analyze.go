package mode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/pipeline"
	"github.com/khaledhikmat/vs-face/service/data"
)

// output receives the JSON printed by the one-shot processors.
var output io.Writer = os.Stdout

// Analyze analyses the image file named by args[0] and prints the result as JSON.
func Analyze(canxCtx context.Context, svcs ServicesFactory, args []string) error {
	if len(args) == 0 {
		return xerrors.New("analyze requires an image path")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	statsStream := make(chan interface{}, 1)
	errorStream := make(chan interface{}, 1)

	analysisLog := pipeline.NewAnalysisLog(svcs.CfgSvc.GetAnalysisLogFile())
	defer analysisLog.Close()

	frameAnalyzer := pipeline.NewFrameAnalyzer(svcs.AnalyzerSvc, analysisLog, errorStream, statsStream)
	resp, analyzeErr := frameAnalyzer.AnalyzeBytes(canxCtx, data)

	// Persist what the analysis reported before returning
	select {
	case s := <-statsStream:
		procStats(svcs.DataSvc, s)
	default:
	}
	select {
	case e := <-errorStream:
		procError(svcs.DataSvc, e)
	default:
	}

	if analyzeErr != nil {
		return analyzeErr
	}

	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

type statsReport struct {
	Errors        []data.ErrorRecord    `json:"errors"`
	StreamStats   []model.StreamStats   `json:"streamStats"`
	AnalyzerStats []model.AnalyzerStats `json:"analyzerStats"`
}

// Stats prints the persisted telemetry as JSON.
func Stats(_ context.Context, svcs ServicesFactory, _ []string) error {
	errs, err := svcs.DataSvc.RetrieveErrors()
	if err != nil {
		return err
	}

	streamStats, err := svcs.DataSvc.RetrieveStreamStats()
	if err != nil {
		return err
	}

	analyzerStats, err := svcs.DataSvc.RetrieveAnalyzerStats()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(statsReport{
		Errors:        errs,
		StreamStats:   streamStats,
		AnalyzerStats: analyzerStats,
	})
}
