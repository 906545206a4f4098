package lgr

import (
	"log/slog"
	"path/filepath"

	goxerrors "github.com/mdobak/go-xerrors"
)

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

// Trace attaches the caller's stack to err so it is printed when logged.
func Trace(err error) error {
	if err == nil {
		return nil
	}
	return goxerrors.WithStackTrace(err, 1)
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}

	if err, ok := a.Value.Any().(error); ok {
		a.Value = fmtErr(err)
	}
	return a
}

func fmtErr(err error) slog.Value {
	values := []slog.Attr{slog.String("msg", err.Error())}

	if frames := marshalStack(err); len(frames) > 0 {
		values = append(values, slog.Any("trace", frames))
	}

	return slog.GroupValue(values...)
}

func marshalStack(err error) []stackFrame {
	trace := goxerrors.StackTrace(err)
	if len(trace) == 0 {
		return nil
	}

	frames := trace.Frames()
	s := make([]stackFrame, len(frames))
	for i, f := range frames {
		s[i] = stackFrame{
			Source: filepath.Join(filepath.Base(filepath.Dir(f.File)), filepath.Base(f.File)),
			Func:   filepath.Base(f.Function),
			Line:   f.Line,
		}
	}
	return s
}
