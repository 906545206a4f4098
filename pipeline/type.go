package pipeline

import (
	"errors"
	"io"
	"log/slog"

	"github.com/khaledhikmat/vs-face/service/lgr"
)

var (
	ErrCaptureFailed = errors.New("frame capture failed")
	ErrMissingImage  = errors.New("missing image field")
)

// FlushWriter is a streamed response body. Each multipart part is flushed
// so the client renders it immediately.
type FlushWriter interface {
	io.Writer
	Flush() error
}

// emit never blocks the caller. A nil stream discards the item.
func emit(stream chan interface{}, item interface{}) {
	if stream == nil {
		return
	}

	select {
	case stream <- item:
	default:
		lgr.Logger.Warn("telemetry stream full, dropping item",
			slog.String("type", typeName(item)),
		)
	}
}

func typeName(item interface{}) string {
	switch item.(type) {
	case error:
		return "error"
	default:
		return "stats"
	}
}
