package types

import (
	"image"
	"time"
)

// FaceRegion is a detected face rectangle in image pixel coordinates
type FaceRegion struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	W     int     `json:"w"`
	H     int     `json:"h"`
	Score float64 `json:"score"`
}

// Center returns the integer center point of the region
func (f FaceRegion) Center() (int, int) {
	return f.X + f.W/2, f.Y + f.H/2
}

// Rect returns the region as an image.Rectangle
func (f FaceRegion) Rect() image.Rectangle {
	return image.Rect(f.X, f.Y, f.X+f.W, f.Y+f.H)
}

// CropBox is a square crop region, always contained in the source image
type CropBox struct {
	Left int `json:"left"`
	Top  int `json:"top"`
	Side int `json:"side"`
}

// Rect returns the box as an image.Rectangle
func (b CropBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Left+b.Side, b.Top+b.Side)
}

// CropPlan is the outcome of crop planning for one image
type CropPlan struct {
	Box     CropBox     `json:"box"`
	CenterX int         `json:"cx"`
	CenterY int         `json:"cy"`
	Face    *FaceRegion `json:"face,omitempty"`
	// FaceFound is false when the plan fell back to the image center
	FaceFound bool `json:"face_found"`
}

// Result is the outcome of processing a single input image
type Result struct {
	Input     string        `json:"input"`
	Output    string        `json:"output,omitempty"`
	Err       error         `json:"-"`
	FaceFound bool          `json:"face_found"`
	Faces     int           `json:"faces"`
	Duration  time.Duration `json:"duration"`
}

// Succeeded reports whether the image was written
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Failure describes one image that could not be processed
type Failure struct {
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

// Report aggregates the results of a batch run
type Report struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	NoFace    int           `json:"no_face"`
	Outputs   []string      `json:"outputs"`
	Failures  []Failure     `json:"failures"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Add records a result. reason converts an error into its report form.
func (r *Report) Add(res Result, reason func(error) string) {
	r.Total++
	if res.Succeeded() {
		r.Succeeded++
		r.Outputs = append(r.Outputs, res.Output)
		if !res.FaceFound {
			r.NoFace++
		}
		return
	}
	r.Failed++
	r.Failures = append(r.Failures, Failure{Input: res.Input, Reason: reason(res.Err)})
}

// OK reports whether every image succeeded
func (r *Report) OK() bool {
	return r.Failed == 0
}
