package data

import "github.com/khaledhikmat/vs-face/model"

// ErrorRecord is the persisted form of a telemetry error.
type ErrorRecord struct {
	Timestamp  int64                  `json:"timestamp"`
	Processor  string                 `json:"processor"`
	Inner      string                 `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

// IService stores operational telemetry. Analysis results are never persisted.
type IService interface {
	NewError(err interface{}) error
	NewStreamStats(stats model.StreamStats) error
	NewAnalyzerStats(stats model.AnalyzerStats) error

	RetrieveErrors() ([]ErrorRecord, error)
	RetrieveStreamStats() ([]model.StreamStats, error)
	RetrieveAnalyzerStats() ([]model.AnalyzerStats, error)

	Close() error
}

func newErrorRecord(err interface{}, now int64) ErrorRecord {
	// Determine if the error is custom
	if custom, ok := err.(model.CustomError); ok {
		inner := ""
		if custom.Inner != nil {
			inner = custom.Inner.Error()
		}
		return ErrorRecord{
			Timestamp:  now,
			Processor:  custom.Processor,
			Inner:      inner,
			Message:    custom.Message,
			StackTrace: custom.StackTrace,
			Misc:       custom.Misc,
		}
	}

	msg := "N/A"
	if e, ok := err.(error); ok && e != nil {
		msg = e.Error()
	}
	return ErrorRecord{
		Timestamp:  now,
		Processor:  "N/A",
		Inner:      msg,
		Message:    msg,
		StackTrace: "N/A",
	}
}
