package analyzer

import (
	"fmt"

	"github.com/khaledhikmat/vs-face/service/config"
)

// New builds the backend selected by configuration, wrapped with tracing.
func New(cfgSvc config.IService) (IService, error) {
	var (
		svc IService
		err error
	)

	switch cfgSvc.GetAnalyzerBackend() {
	case config.AnalyzerDNN:
		svc, err = NewDNN(cfgSvc)
	case config.AnalyzerDeepFace:
		svc, err = NewDeepFace(cfgSvc)
	case config.AnalyzerOpenAI:
		svc, err = NewOpenAI(cfgSvc)
	case config.AnalyzerFake:
		svc = NewFake(nil, nil)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfgSvc.GetAnalyzerBackend())
	}
	if err != nil {
		return nil, err
	}

	return WithTracing(svc), nil
}
