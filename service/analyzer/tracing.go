package analyzer

import (
	"context"

	"github.com/khaledhikmat/vs-face/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocv.io/x/gocv"
)

const tracerName = "github.com/khaledhikmat/vs-face/service/analyzer"

type tracedService struct {
	inner  IService
	tracer trace.Tracer
}

// WithTracing wraps svc so every Analyze call produces a span. Without a
// registered tracer provider the global no-op provider is used.
func WithTracing(svc IService) IService {
	return &tracedService{
		inner:  svc,
		tracer: otel.Tracer(tracerName),
	}
}

func (svc *tracedService) Name() string {
	return svc.inner.Name()
}

func (svc *tracedService) Analyze(ctx context.Context, img gocv.Mat, opts Options) ([]model.FaceAnalysis, error) {
	actions := make([]string, 0, len(opts.Actions))
	for _, a := range opts.Actions {
		actions = append(actions, string(a))
	}

	ctx, span := svc.tracer.Start(ctx, "analyzer.Analyze",
		trace.WithAttributes(
			attribute.String("analyzer.backend", svc.inner.Name()),
			attribute.StringSlice("analyzer.actions", actions),
			attribute.Bool("analyzer.enforce_detection", opts.EnforceDetection),
			attribute.Int("image.width", img.Cols()),
			attribute.Int("image.height", img.Rows()),
		),
	)
	defer span.End()

	results, err := svc.inner.Analyze(ctx, img, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("analyzer.faces", len(results)))
	if len(results) > 0 {
		span.SetAttributes(
			attribute.Int("face.age", results[0].Age),
			attribute.String("face.gender", results[0].DominantGender),
			attribute.String("face.race", results[0].DominantRace),
		)
	}
	span.SetStatus(codes.Ok, "")
	return results, nil
}

func (svc *tracedService) Close() error {
	return svc.inner.Close()
}
