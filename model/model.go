package model

import (
	"fmt"
	"runtime/debug"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return fmt.Sprintf("%s: %s", e.Processor, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Processor, e.Message, e.Inner)
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// Region is a face bounding box in pixels of the analysed image.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// FaceAnalysis is one analyser record. Analysers return one per detected face.
type FaceAnalysis struct {
	Age            int                `json:"age"`
	Gender         map[string]float64 `json:"gender"`
	DominantGender string             `json:"dominant_gender"`
	Race           map[string]float64 `json:"race"`
	DominantRace   string             `json:"dominant_race"`
	Region         Region             `json:"region"`
	FaceConfidence float64            `json:"face_confidence"`
}

type AnalyzeRequest struct {
	Image *string `json:"image"`
}

type AnalyzeResponse struct {
	Age    int    `json:"age"`
	Gender string `json:"gender"`
	Race   string `json:"race"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type StreamStats struct {
	ID            string  `json:"id"`
	Camera        string  `json:"camera"`
	Analyzer      string  `json:"analyzer"`
	Frames        int     `json:"frames"`
	Annotated     int     `json:"annotated"`
	AnalyzeErrors int     `json:"analyzeErrors"`
	EncodeErrors  int     `json:"encodeErrors"`
	FPS           int     `json:"fps"`
	Uptime        int64   `json:"uptime"`
	AvgProcTime   float64 `json:"avgProcTime"`
	Timestamp     int64   `json:"timestamp"`
}

type AnalyzerStats struct {
	ID        string  `json:"id"`
	Analyzer  string  `json:"analyzer"`
	Faces     int     `json:"faces"`
	OK        bool    `json:"ok"`
	Error     string  `json:"error,omitempty"`
	ProcTime  float64 `json:"procTime"`
	Timestamp int64   `json:"timestamp"`
}
