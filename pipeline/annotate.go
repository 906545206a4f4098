package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"github.com/khaledhikmat/vs-face/model"
	"gocv.io/x/gocv"
)

const (
	annotationScale     = 1.0
	annotationThickness = 2
	annotationLeft      = 50
	annotationTop       = 50
	annotationSpacing   = 50
)

var annotationColor = color.RGBA{0, 255, 0, 0}

// AnnotationLines returns the overlay text for a record, top to bottom.
func AnnotationLines(rec model.FaceAnalysis) []string {
	return []string{
		fmt.Sprintf("Age: %d", rec.Age),
		fmt.Sprintf("Gender: %s", rec.DominantGender),
		fmt.Sprintf("Race: %s", rec.DominantRace),
	}
}

// Annotate draws the record's age, gender and race onto img in place.
func Annotate(img *gocv.Mat, rec model.FaceAnalysis) {
	for i, line := range AnnotationLines(rec) {
		gocv.PutTextWithParams(img,
			line,
			image.Pt(annotationLeft, annotationTop+i*annotationSpacing),
			gocv.FontHersheySimplex,
			annotationScale,
			annotationColor,
			annotationThickness,
			gocv.LineAA,
			false,
		)
	}
}
