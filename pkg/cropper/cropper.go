package cropper

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	apperrors "github.com/menta2k/facecrop/pkg/errors"
	"github.com/menta2k/facecrop/pkg/types"
)

// Output size bounds, in pixels
const (
	MinSize     = 64
	MaxSize     = 4096
	DefaultSize = 224
)

// SquareCropper crops images to a face-centered square and scales them
type SquareCropper struct {
	config CropConfig
	filter imaging.ResampleFilter
}

// CropConfig holds configuration for square cropping
type CropConfig struct {
	Size   int
	Filter string
}

// CropResult contains the result of a cropping operation
type CropResult struct {
	Image *image.NRGBA
	Plan  types.CropPlan
}

var filters = map[string]imaging.ResampleFilter{
	"lanczos":    imaging.Lanczos,
	"catmullrom": imaging.CatmullRom,
	"linear":     imaging.Linear,
	"box":        imaging.Box,
	"nearest":    imaging.NearestNeighbor,
}

// New creates a new SquareCropper with default configuration
func New() *SquareCropper {
	return &SquareCropper{
		config: CropConfig{Size: DefaultSize, Filter: "lanczos"},
		filter: imaging.Lanczos,
	}
}

// NewWithConfig creates a new SquareCropper with custom configuration
func NewWithConfig(config CropConfig) (*SquareCropper, error) {
	if err := ValidateSize(config.Size); err != nil {
		return nil, err
	}
	if config.Filter == "" {
		config.Filter = "lanczos"
	}
	filter, ok := filters[strings.ToLower(config.Filter)]
	if !ok {
		return nil, apperrors.NewInvalidParameter(fmt.Sprintf("unknown resample filter %q", config.Filter))
	}
	return &SquareCropper{config: config, filter: filter}, nil
}

// Size returns the output side length in pixels
func (c *SquareCropper) Size() int {
	return c.config.Size
}

// ValidateSize checks that size is an acceptable output side length
func ValidateSize(size int) error {
	if size < MinSize || size > MaxSize {
		return apperrors.NewInvalidParameter(fmt.Sprintf("size must be %d-%d, got %d", MinSize, MaxSize, size))
	}
	return nil
}

// PlanCrop computes the square crop box for a w x h image.
//
// The box is anchored on the center of the first face, in the detector's
// order, or on the image center when faces is empty. It is then clamped so
// it always lies inside the image; a face closer than side/2 to an edge is
// therefore not exactly centered.
func PlanCrop(w, h int, faces []types.FaceRegion) (types.CropPlan, error) {
	if w <= 0 || h <= 0 {
		return types.CropPlan{}, apperrors.NewInvalidImage(w, h)
	}

	side := min(w, h)

	plan := types.CropPlan{}
	if len(faces) > 0 {
		face := faces[0]
		plan.Face = &face
		plan.FaceFound = true
		plan.CenterX, plan.CenterY = face.Center()
	} else {
		plan.CenterX, plan.CenterY = w/2, h/2
	}

	left := clamp(plan.CenterX-side/2, 0, w-side)
	top := clamp(plan.CenterY-side/2, 0, h-side)

	plan.Box = types.CropBox{Left: left, Top: top, Side: side}
	return plan, nil
}

// Crop plans the crop for img and returns the resized square
func (c *SquareCropper) Crop(img image.Image, faces []types.FaceRegion) (CropResult, error) {
	bounds := img.Bounds()
	plan, err := PlanCrop(bounds.Dx(), bounds.Dy(), faces)
	if err != nil {
		return CropResult{}, err
	}

	out, err := c.CropAndResize(img, plan.Box)
	if err != nil {
		return CropResult{}, err
	}

	return CropResult{Image: out, Plan: plan}, nil
}

// CropAndResize extracts box from img and scales it to Size x Size
func (c *SquareCropper) CropAndResize(img image.Image, box types.CropBox) (*image.NRGBA, error) {
	bounds := img.Bounds()
	rect := box.Rect().Add(bounds.Min)
	if box.Side <= 0 || !rect.In(bounds) {
		return nil, fmt.Errorf("crop box %v outside image bounds %v", rect, bounds)
	}

	cropped := imaging.Crop(img, rect)
	return imaging.Resize(cropped, c.config.Size, c.config.Size, c.filter), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
