// Package codec wraps the image operations the service needs: data-URL
// decoding, JPEG decode/encode, the fixed working resize and MJPEG part framing.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"gocv.io/x/gocv"
)

const (
	WorkingWidth  = 640
	WorkingHeight = 480

	// Boundary is the multipart boundary used by the video feed.
	Boundary = "frame"

	// ContentType is the response type of the video feed.
	ContentType = "multipart/x-mixed-replace; boundary=" + Boundary
)

var (
	ErrInvalidDataURL = errors.New("invalid data url: missing ',' separator")
	ErrUndecodable    = errors.New("image could not be decoded")
)

// DecodeDataURL drops everything up to the first comma and base64-decodes the rest.
func DecodeDataURL(dataURL string) ([]byte, error) {
	_, payload, ok := strings.Cut(dataURL, ",")
	if !ok {
		return nil, ErrInvalidDataURL
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return data, nil
}

// Decode turns encoded image bytes into a 3-channel BGR Mat. The caller closes it.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), ErrUndecodable
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return img, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if img.Empty() {
		return img, ErrUndecodable
	}
	return img, nil
}

// ResizeWorking scales img to exactly 640x480. The aspect ratio is not kept.
func ResizeWorking(img gocv.Mat) (gocv.Mat, error) {
	resized := gocv.NewMat()
	if err := gocv.Resize(img, &resized, image.Pt(WorkingWidth, WorkingHeight), 0, 0, gocv.InterpolationLinear); err != nil {
		resized.Close()
		return gocv.NewMat(), fmt.Errorf("resize: %w", err)
	}
	return resized, nil
}

func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close.
	return append([]byte(nil), buf.GetBytes()...), nil
}

// WritePart writes one multipart/x-mixed-replace part holding a JPEG.
func WritePart(w io.Writer, jpeg []byte) error {
	if _, err := io.WriteString(w, "--"+Boundary+"\r\nContent-Type: image/jpeg\r\n\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
