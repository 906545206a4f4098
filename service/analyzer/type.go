package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/khaledhikmat/vs-face/model"
	"gocv.io/x/gocv"
)

type Action string

const (
	ActionAge    Action = "age"
	ActionGender Action = "gender"
	ActionRace   Action = "race"
)

// Labels follow DeepFace so downstream clients see the same vocabulary
// whichever backend is configured.
var (
	GenderLabels = []string{"Woman", "Man"}
	RaceLabels   = []string{"asian", "indian", "black", "white", "middle eastern", "latino hispanic"}
)

var (
	ErrNoFace        = errors.New("face could not be detected")
	ErrNoResult      = errors.New("analyzer returned no result")
	ErrEmptyImage    = errors.New("empty image")
	ErrUnknownAction = errors.New("unknown analysis action")
	ErrNoActions     = errors.New("no analysis actions requested")
)

type Options struct {
	Actions []Action
	// EnforceDetection fails the call with ErrNoFace when no face is found.
	// When false the whole image is analysed as a single region instead.
	EnforceDetection bool
}

// DefaultOptions requests age, gender and race without enforcing detection.
func DefaultOptions() Options {
	return Options{
		Actions:          []Action{ActionAge, ActionGender, ActionRace},
		EnforceDetection: false,
	}
}

func (o Options) Has(a Action) bool {
	for _, action := range o.Actions {
		if action == a {
			return true
		}
	}
	return false
}

func (o Options) Validate() error {
	if len(o.Actions) == 0 {
		return ErrNoActions
	}

	for _, a := range o.Actions {
		switch a {
		case ActionAge, ActionGender, ActionRace:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownAction, a)
		}
	}
	return nil
}

type IService interface {
	Name() string
	// Analyze returns one record per detected face. img is not modified or closed.
	Analyze(ctx context.Context, img gocv.Mat, opts Options) ([]model.FaceAnalysis, error)
	Close() error
}

// First returns the first record. Additional faces are discarded.
func First(results []model.FaceAnalysis) (model.FaceAnalysis, error) {
	if len(results) == 0 {
		return model.FaceAnalysis{}, ErrNoResult
	}
	return results[0], nil
}

// dominant returns the label with the highest score. Ties go to the
// alphabetically first label so the outcome is deterministic.
func dominant(scores map[string]float64) string {
	labels := make([]string, 0, len(scores))
	for label := range scores {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	best := ""
	bestScore := -1.0
	for _, label := range labels {
		if scores[label] > bestScore {
			best = label
			bestScore = scores[label]
		}
	}
	return best
}
