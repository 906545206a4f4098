package mode

import (
	"errors"

	"github.com/khaledhikmat/vs-face/service/analyzer"
	"github.com/khaledhikmat/vs-face/service/camera"
	"github.com/khaledhikmat/vs-face/service/config"
	"github.com/khaledhikmat/vs-face/service/data"
)

// Needs selects the optional services a processor requires.
type Needs struct {
	Camera   bool
	Analyzer bool
}

// NewServicesFactory builds the configured services. The data service is always
// created so that every processor can report telemetry.
func NewServicesFactory(cfgSvc config.IService, needs Needs) (ServicesFactory, error) {
	svcs := ServicesFactory{
		CfgSvc: cfgSvc,
	}

	dataSvc, err := data.New(cfgSvc)
	if err != nil {
		return svcs, err
	}
	svcs.DataSvc = dataSvc

	if needs.Camera {
		cameraSvc, err := camera.New(cfgSvc)
		if err != nil {
			svcs.Close()
			return svcs, err
		}
		svcs.CameraSvc = cameraSvc
	}

	if needs.Analyzer {
		analyzerSvc, err := analyzer.New(cfgSvc)
		if err != nil {
			svcs.Close()
			return svcs, err
		}
		svcs.AnalyzerSvc = analyzerSvc
	}

	return svcs, nil
}

// Close releases the analyzer and the data store.
func (svcs ServicesFactory) Close() error {
	var errs []error
	if svcs.AnalyzerSvc != nil {
		errs = append(errs, svcs.AnalyzerSvc.Close())
	}
	if svcs.DataSvc != nil {
		errs = append(errs, svcs.DataSvc.Close())
	}
	return errors.Join(errs...)
}
