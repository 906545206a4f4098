package data

import (
	"fmt"

	"github.com/khaledhikmat/vs-face/service/config"
)

// New returns the telemetry store selected by configuration.
func New(cfgsvc config.IService) (IService, error) {
	switch cfgsvc.GetDataStore() {
	case config.DataStoreFiles:
		return NewFilesDB(cfgsvc)
	case config.DataStoreSQLite:
		return NewSQLiteDB(cfgsvc)
	case config.DataStoreNone:
		return NewNoneDB(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownDataStore, cfgsvc.GetDataStore())
	}
}
