package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/khaledhikmat/vs-face/service/config"
)

// findModelPaths looks for the model bundle relative to the test location.
func findModelPaths() (config.ModelPaths, bool) {
	for _, dir := range []string{"models", "../models", "../../models"} {
		paths := config.ModelPaths{
			FaceModel:   filepath.Join(dir, "face_detection_yunet_2023mar.onnx"),
			AgeModel:    filepath.Join(dir, "age_net.caffemodel"),
			AgeProto:    filepath.Join(dir, "age_deploy.prototxt"),
			GenderModel: filepath.Join(dir, "gender_net.caffemodel"),
			GenderProto: filepath.Join(dir, "gender_deploy.prototxt"),
			RaceModel:   filepath.Join(dir, "race_deepface.onnx"),
		}

		complete := true
		for _, p := range []string{paths.FaceModel, paths.AgeModel, paths.AgeProto, paths.GenderModel, paths.GenderProto, paths.RaceModel} {
			if _, err := os.Stat(p); err != nil {
				complete = false
				break
			}
		}
		if complete {
			return paths, true
		}
	}
	return config.ModelPaths{}, false
}

func TestNewDNNMissingModels(t *testing.T) {
	cfg := newTestConfig()
	cfg.models.FaceModel = "/nonexistent/path/model.onnx"

	if _, err := NewDNN(cfg); err == nil {
		t.Error("expected error for missing model files")
	}
}

func TestDNNAnalyzeWholeImageFallback(t *testing.T) {
	paths, ok := findModelPaths()
	if !ok {
		t.Skip("model files not found, skipping test")
	}

	cfg := newTestConfig()
	cfg.models = paths

	svc, err := NewDNN(cfg)
	if err != nil {
		t.Fatalf("NewDNN failed: %v", err)
	}
	defer svc.Close()

	// A flat image has no face.
	img := newTestImage(t)

	enforce := DefaultOptions()
	enforce.EnforceDetection = true
	if _, err := svc.Analyze(context.Background(), img, enforce); !errors.Is(err, ErrNoFace) {
		t.Errorf("Analyze(enforce) error = %v, want ErrNoFace", err)
	}

	results, err := svc.Analyze(context.Background(), img, DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}

	got := results[0]
	if got.Region.W != img.Cols() || got.Region.H != img.Rows() {
		t.Errorf("Region = %+v, want whole image", got.Region)
	}
	if got.FaceConfidence != 0 {
		t.Errorf("FaceConfidence = %f, want 0", got.FaceConfidence)
	}
	if got.DominantGender == "" || got.DominantRace == "" {
		t.Errorf("missing dominant labels: %+v", got)
	}
	if got.Age < 0 || got.Age > 100 {
		t.Errorf("Age = %d out of range", got.Age)
	}
}
