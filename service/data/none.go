package data

import "github.com/khaledhikmat/vs-face/model"

type noneDBService struct{}

// NewNoneDB discards all telemetry.
func NewNoneDB() IService {
	return noneDBService{}
}

func (noneDBService) NewError(_ interface{}) error { return nil }

func (noneDBService) NewStreamStats(_ model.StreamStats) error { return nil }

func (noneDBService) NewAnalyzerStats(_ model.AnalyzerStats) error { return nil }

func (noneDBService) RetrieveErrors() ([]ErrorRecord, error) {
	return []ErrorRecord{}, nil
}

func (noneDBService) RetrieveStreamStats() ([]model.StreamStats, error) {
	return []model.StreamStats{}, nil
}

func (noneDBService) RetrieveAnalyzerStats() ([]model.AnalyzerStats, error) {
	return []model.AnalyzerStats{}, nil
}

func (noneDBService) Close() error { return nil }
