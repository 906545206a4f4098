package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/config"
)

const (
	errorsFile        = "errors"
	streamStatsFile   = "stream-stats"
	analyzerStatsFile = "analyzer-stats"
)

// filesDBService keeps one JSON array file per entity under the data folder.
type filesDBService struct {
	mu     sync.Mutex
	folder string
}

func NewFilesDB(cfgsvc config.IService) (IService, error) {
	folder := cfgsvc.GetDataFolder()
	if err := os.MkdirAll(folder, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data folder: %w", err)
	}

	return &filesDBService{
		folder: folder,
	}, nil
}

func (svc *filesDBService) NewError(err interface{}) error {
	return newEntity(svc, newErrorRecord(err, time.Now().Unix()), errorsFile)
}

func (svc *filesDBService) NewStreamStats(stats model.StreamStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(svc, stats, streamStatsFile)
}

func (svc *filesDBService) NewAnalyzerStats(stats model.AnalyzerStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(svc, stats, analyzerStatsFile)
}

func (svc *filesDBService) RetrieveErrors() ([]ErrorRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return retrieveEntities[ErrorRecord](svc.path(errorsFile))
}

func (svc *filesDBService) RetrieveStreamStats() ([]model.StreamStats, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return retrieveEntities[model.StreamStats](svc.path(streamStatsFile))
}

func (svc *filesDBService) RetrieveAnalyzerStats() ([]model.AnalyzerStats, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return retrieveEntities[model.AnalyzerStats](svc.path(analyzerStatsFile))
}

func (svc *filesDBService) Close() error {
	return nil
}

func (svc *filesDBService) path(filename string) string {
	return filepath.Join(svc.folder, filename+".json")
}

func newEntity[T any](svc *filesDBService, entity T, filename string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	output := svc.path(filename)
	entities, err := retrieveEntities[T](output)
	if err != nil {
		return err
	}

	entities = append(entities, entity)

	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}

	// Write the JSON data to the file (with truncation)
	return os.WriteFile(output, data, 0644)
}

func retrieveEntities[T any](path string) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// Nothing persisted yet
		return entities, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("corrupt %s: %w", filepath.Base(path), err)
	}

	return entities, nil
}
