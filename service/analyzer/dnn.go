package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/config"
	"github.com/khaledhikmat/vs-face/service/lgr"
	"gocv.io/x/gocv"
)

const (
	detectorScoreThreshold = 0.6
	detectorNMSThreshold   = 0.3
	detectorTopK           = 5000
)

// Midpoints of the Levi-Hassner age buckets:
// (0-2) (4-6) (8-12) (15-20) (25-32) (38-43) (48-53) (60-100)
var ageBucketMidpoints = []float64{1, 5, 10, 17.5, 28.5, 40.5, 50.5, 80}

var caffeFaceMean = gocv.NewScalar(78.4263377603, 87.7689143744, 114.895847746, 0)

type detectedFace struct {
	rect  image.Rectangle
	score float64
}

// dnnService runs YuNet for detection and OpenCV DNN classifiers for age,
// gender and race. gocv nets are not thread-safe, so calls are serialised.
type dnnService struct {
	mu        sync.Mutex
	detector  gocv.FaceDetectorYN
	ageNet    *gocv.Net
	genderNet *gocv.Net
	raceNet   *gocv.Net
}

func NewDNN(cfgSvc config.IService) (IService, error) {
	paths := cfgSvc.GetModelPaths()

	for _, p := range []string{paths.FaceModel, paths.AgeModel, paths.AgeProto, paths.GenderModel, paths.GenderProto, paths.RaceModel} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, fmt.Errorf("model file not found: %s", p)
		}
	}

	lgr.Logger.Info("dnn analyzer loading models",
		slog.String("face", paths.FaceModel),
		slog.String("age", paths.AgeModel),
		slog.String("gender", paths.GenderModel),
		slog.String("race", paths.RaceModel),
		slog.String("openCV", gocv.Version()),
	)

	svc := &dnnService{
		detector: gocv.NewFaceDetectorYNWithParams(
			paths.FaceModel,
			"",
			image.Pt(320, 320),
			detectorScoreThreshold,
			detectorNMSThreshold,
			detectorTopK,
			int(gocv.NetBackendDefault),
			int(gocv.NetTargetCPU),
		),
	}

	var err error
	if svc.ageNet, err = readNet(paths.AgeModel, paths.AgeProto); err != nil {
		svc.Close()
		return nil, err
	}
	if svc.genderNet, err = readNet(paths.GenderModel, paths.GenderProto); err != nil {
		svc.Close()
		return nil, err
	}
	if svc.raceNet, err = readNet(paths.RaceModel, ""); err != nil {
		svc.Close()
		return nil, err
	}

	return svc, nil
}

func readNet(modelPath, configPath string) (*gocv.Net, error) {
	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("error reading model %s", modelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("error setting backend for %s: %w", modelPath, err)
	}

	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("error setting target for %s: %w", modelPath, err)
	}

	return &net, nil
}

func (svc *dnnService) Name() string {
	return config.AnalyzerDNN
}

func (svc *dnnService) Analyze(ctx context.Context, img gocv.Mat, opts Options) ([]model.FaceAnalysis, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, ErrEmptyImage
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	faces := svc.detect(img)
	if len(faces) == 0 {
		if opts.EnforceDetection {
			return nil, ErrNoFace
		}
		faces = []detectedFace{{rect: image.Rect(0, 0, img.Cols(), img.Rows())}}
	}

	results := make([]model.FaceAnalysis, 0, len(faces))
	for _, face := range faces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		crop := img.Region(face.rect)
		result, err := svc.classify(crop, opts)
		crop.Close()
		if err != nil {
			return nil, err
		}

		result.Region = model.Region{
			X: face.rect.Min.X,
			Y: face.rect.Min.Y,
			W: face.rect.Dx(),
			H: face.rect.Dy(),
		}
		result.FaceConfidence = face.score
		results = append(results, result)
	}

	return results, nil
}

func (svc *dnnService) detect(img gocv.Mat) []detectedFace {
	svc.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()

	svc.detector.Detect(img, &out)

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	var faces []detectedFace
	for r := 0; r < out.Rows(); r++ {
		// YuNet rows: x, y, w, h, 5 landmark pairs, score.
		rect := clampRect(
			int(out.GetFloatAt(r, 0)),
			int(out.GetFloatAt(r, 1)),
			int(out.GetFloatAt(r, 2)),
			int(out.GetFloatAt(r, 3)),
			bounds,
		)
		if rect.Empty() {
			continue
		}

		faces = append(faces, detectedFace{
			rect:  rect,
			score: float64(out.GetFloatAt(r, 14)),
		})
	}

	return faces
}

func (svc *dnnService) classify(face gocv.Mat, opts Options) (model.FaceAnalysis, error) {
	var result model.FaceAnalysis

	if opts.Has(ActionAge) {
		probs, err := forward(svc.ageNet, face, 1.0, image.Pt(227, 227), caffeFaceMean, false)
		if err != nil {
			return result, fmt.Errorf("age: %w", err)
		}
		result.Age = expectedAge(probs)
	}

	if opts.Has(ActionGender) {
		probs, err := forward(svc.genderNet, face, 1.0, image.Pt(227, 227), caffeFaceMean, false)
		if err != nil {
			return result, fmt.Errorf("gender: %w", err)
		}
		// The Caffe gender net outputs [male, female].
		if len(probs) < 2 {
			return result, fmt.Errorf("gender: unexpected output size %d", len(probs))
		}
		result.Gender = toPercent([]string{"Man", "Woman"}, probs[:2])
		result.DominantGender = dominant(result.Gender)
	}

	if opts.Has(ActionRace) {
		output, err := forward(svc.raceNet, face, 1.0/255.0, image.Pt(224, 224), gocv.NewScalar(0, 0, 0, 0), false)
		if err != nil {
			return result, fmt.Errorf("race: %w", err)
		}
		if result.Race, err = raceScores(output); err != nil {
			return result, err
		}
		result.DominantRace = dominant(result.Race)
	}

	return result, nil
}

// ErrRaceModelShape is returned when the race model does not output one score
// per entry of RaceLabels.
var ErrRaceModelShape = errors.New("race model output does not match the race labels")

// raceScores maps the race model output onto RaceLabels by position. The model
// is DeepFace's race classifier exported to ONNX: 224x224 BGR input scaled to
// [0,1] with no mean subtraction, six softmax scores in RaceLabels order.
// Raw logits are normalised with softmax first.
func raceScores(output []float32) (map[string]float64, error) {
	if len(output) != len(RaceLabels) {
		return nil, fmt.Errorf("%w: got %d scores, want %d", ErrRaceModelShape, len(output), len(RaceLabels))
	}

	probs := output
	if !isDistribution(output) {
		probs = softmax(output)
	}
	return toPercent(RaceLabels, probs), nil
}

func isDistribution(scores []float32) bool {
	var sum float64
	for _, s := range scores {
		if s < 0 {
			return false
		}
		sum += float64(s)
	}
	return math.Abs(sum-1) < 1e-3
}

func forward(net *gocv.Net, img gocv.Mat, scale float64, size image.Point, mean gocv.Scalar, swapRB bool) ([]float32, error) {
	blob := gocv.BlobFromImage(img, scale, size, mean, swapRB, false)
	defer blob.Close()

	net.SetInput(blob, "")

	output := net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, err
	}

	// data aliases the output Mat, which is released on return.
	return append([]float32(nil), data...), nil
}

func (svc *dnnService) Close() error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.detector.Close()
	for _, net := range []*gocv.Net{svc.ageNet, svc.genderNet, svc.raceNet} {
		if net != nil {
			net.Close()
		}
	}
	return nil
}

func clampRect(x, y, w, h int, bounds image.Rectangle) image.Rectangle {
	return image.Rect(x, y, x+w, y+h).Intersect(bounds)
}

// expectedAge weights each bucket midpoint by its probability.
func expectedAge(probs []float32) int {
	var sum, weighted float64
	for i, p := range probs {
		if i >= len(ageBucketMidpoints) {
			break
		}
		sum += float64(p)
		weighted += float64(p) * ageBucketMidpoints[i]
	}

	if sum <= 0 {
		return 0
	}
	return int(math.Round(weighted / sum))
}

func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	out := make([]float32, len(logits))
	var sum float64
	for i, l := range logits {
		e := math.Exp(float64(l - maxLogit))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// toPercent maps probabilities onto labels, scaled to 0-100 like DeepFace.
func toPercent(labels []string, probs []float32) map[string]float64 {
	out := make(map[string]float64, len(labels))
	for i, label := range labels {
		if i < len(probs) {
			out[label] = float64(probs[i]) * 100
		}
	}
	return out
}
