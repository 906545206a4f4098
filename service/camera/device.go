package camera

import (
	"context"
	"fmt"

	"github.com/khaledhikmat/vs-face/service/config"
	"gocv.io/x/gocv"
)

type deviceService struct {
	CfgSvc config.IService
}

// NewDevice opens the configured device for each stream. The device may be a
// numeric index, a file path or an RTSP/HTTP URL.
func NewDevice(cfgSvc config.IService) IService {
	return &deviceService{
		CfgSvc: cfgSvc,
	}
}

func (svc *deviceService) Name() string {
	return svc.CfgSvc.GetCameraDevice()
}

func (svc *deviceService) Open(_ context.Context) (Capture, error) {
	webcam, err := gocv.OpenVideoCapture(svc.CfgSvc.GetCameraDevice())
	if err != nil {
		return nil, fmt.Errorf("open camera %s: %w", svc.CfgSvc.GetCameraDevice(), err)
	}

	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("open camera %s: device not available", svc.CfgSvc.GetCameraDevice())
	}

	return &deviceCapture{webcam: webcam}, nil
}

type deviceCapture struct {
	webcam *gocv.VideoCapture
}

func (c *deviceCapture) Read(img *gocv.Mat) bool {
	if ok := c.webcam.Read(img); !ok || img.Empty() {
		return false
	}
	return true
}

func (c *deviceCapture) Close() error {
	return c.webcam.Close()
}
