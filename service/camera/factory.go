package camera

import (
	"fmt"

	"github.com/khaledhikmat/vs-face/service/config"
)

// New returns the camera source selected by configuration.
func New(cfgSvc config.IService) (IService, error) {
	switch cfgSvc.GetCameraType() {
	case config.CameraDevice:
		return NewDevice(cfgSvc), nil
	case config.CameraRandom:
		return NewRandom(0), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownCameraType, cfgSvc.GetCameraType())
	}
}
