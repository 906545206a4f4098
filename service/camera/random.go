package camera

import (
	"context"
	"image"
	"image/color"
	"math/rand"

	"gocv.io/x/gocv"
)

const (
	randomWidth  = 640
	randomHeight = 480
)

type randomService struct {
	maxFrames int
}

// NewRandom produces synthetic 640x480 BGR frames. A positive maxFrames ends the
// capture after that many frames; zero means unbounded.
func NewRandom(maxFrames int) IService {
	return &randomService{
		maxFrames: maxFrames,
	}
}

func (svc *randomService) Name() string {
	return "random"
}

func (svc *randomService) Open(_ context.Context) (Capture, error) {
	return &randomCapture{maxFrames: svc.maxFrames}, nil
}

type randomCapture struct {
	maxFrames int
	frames    int
	closed    bool
}

func (c *randomCapture) Read(img *gocv.Mat) bool {
	if c.closed || (c.maxFrames > 0 && c.frames >= c.maxFrames) {
		return false
	}
	c.frames++

	frame := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(rand.Intn(256)), float64(rand.Intn(256)), float64(rand.Intn(256)), 0),
		randomHeight, randomWidth, gocv.MatTypeCV8UC3)
	defer frame.Close()

	// A moving block so consecutive frames differ visibly.
	x := (c.frames * 10) % (randomWidth - 100)
	gocv.Rectangle(&frame, image.Rect(x, 190, x+100, 290), color.RGBA{255, 255, 255, 0}, -1)

	frame.CopyTo(img)
	return true
}

func (c *randomCapture) Close() error {
	c.closed = true
	return nil
}
