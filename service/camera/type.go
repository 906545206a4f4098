package camera

import (
	"context"

	"gocv.io/x/gocv"
)

// Capture is an open frame source. It is owned by a single stream.
type Capture interface {
	// Read fills img with the next frame. False means the source is exhausted or failed.
	Read(img *gocv.Mat) bool
	Close() error
}

type IService interface {
	// Name identifies the source in logs and stats.
	Name() string
	Open(ctx context.Context) (Capture, error)
}
