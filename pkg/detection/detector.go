package detection

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/menta2k/facecrop/pkg/types"
)

// Detector finds faces in an image. Implementations must be safe for
// concurrent use; one instance is shared by every batch worker.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error)
}

// DetectorFunc adapts a plain function to the Detector interface
type DetectorFunc func(ctx context.Context, img image.Image) ([]types.FaceRegion, error)

// Detect calls f(ctx, img)
func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	return f(ctx, img)
}

// NoopDetector never finds a face, so every image is center-cropped
type NoopDetector struct{}

// Detect returns no faces
func (NoopDetector) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	return nil, ctx.Err()
}

// Config holds the pigo cascade parameters
type Config struct {
	CascadePath string
	// MinSize and MaxSize bound the searched face size in pixels; MaxSize 0
	// means the shorter image side.
	MinSize        int
	MaxSize        int
	ShiftFactor    float64
	ScaleFactor    float64
	IoUThreshold   float64
	ScoreThreshold float64
	Angle          float64
}

// DefaultConfig returns the default cascade parameters
func DefaultConfig() Config {
	return Config{
		MinSize:        20,
		MaxSize:        0,
		ShiftFactor:    0.1,
		ScaleFactor:    1.1,
		IoUThreshold:   0.2,
		ScoreThreshold: 5.0,
		Angle:          0.0,
	}
}

// Validate checks the cascade parameters
func (c Config) Validate() error {
	if c.MinSize < 1 {
		return fmt.Errorf("detector min size must be positive, got %d", c.MinSize)
	}
	if c.MaxSize != 0 && c.MaxSize < c.MinSize {
		return fmt.Errorf("detector max size %d is smaller than min size %d", c.MaxSize, c.MinSize)
	}
	if c.ShiftFactor <= 0 || c.ShiftFactor > 1 {
		return fmt.Errorf("detector shift factor must be in (0, 1], got %g", c.ShiftFactor)
	}
	if c.ScaleFactor <= 1 {
		return fmt.Errorf("detector scale factor must be greater than 1, got %g", c.ScaleFactor)
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return fmt.Errorf("detector IoU threshold must be between 0 and 1, got %g", c.IoUThreshold)
	}
	if c.Angle < 0 || c.Angle > 1 {
		return fmt.Errorf("detector angle must be between 0 and 1, got %g", c.Angle)
	}
	return nil
}

// PigoDetector detects frontal faces with a pigo cascade classifier.
// The classifier is unpacked once and only read afterwards.
type PigoDetector struct {
	classifier *pigo.Pigo
	config     Config
}

// Cascade layout: 8 reserved bytes, tree depth and tree count as little-endian
// uint32, then per tree 4*2^depth-4 code bytes, 2^depth leaf predictions and
// one threshold, each 4 bytes.
const (
	cascadeHeaderSize = 16
	maxTreeDepth      = 16
)

// checkCascade rejects cascade data whose header promises more trees than the
// data holds. Unpack sizes its buffers from the header and trusts it.
func checkCascade(data []byte) error {
	if len(data) < cascadeHeaderSize {
		return fmt.Errorf("cascade data too short (%d bytes)", len(data))
	}
	depth := binary.LittleEndian.Uint32(data[8:])
	trees := binary.LittleEndian.Uint32(data[12:])
	if depth > maxTreeDepth {
		return fmt.Errorf("invalid cascade data: tree depth %d", depth)
	}
	perTree := uint64(8) << depth
	if need := cascadeHeaderSize + uint64(trees)*perTree; need > uint64(len(data)) {
		return fmt.Errorf("invalid cascade data: %d trees of depth %d need %d bytes, have %d", trees, depth, need, len(data))
	}
	return nil
}

// NewPigoDetector creates a detector from raw cascade bytes
func NewPigoDetector(cascade []byte, config Config) (d *PigoDetector, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := checkCascade(cascade); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("invalid cascade data: %v", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}

	return &PigoDetector{classifier: classifier, config: config}, nil
}

// LoadPigoDetector reads the cascade file named by config.CascadePath
func LoadPigoDetector(config Config) (*PigoDetector, error) {
	if config.CascadePath == "" {
		return nil, fmt.Errorf("cascade path required")
	}
	data, err := os.ReadFile(config.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w", err)
	}
	return NewPigoDetector(data, config)
}

// Detect returns face regions in the order produced by the classifier
func (d *PigoDetector) Detect(ctx context.Context, img image.Image) ([]types.FaceRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// pigo expects grayscale pixels with the origin at (0, 0)
	src := imaging.Clone(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	maxSize := d.config.MaxSize
	if maxSize == 0 {
		maxSize = min(cols, rows)
	}

	params := pigo.CascadeParams{
		MinSize:     d.config.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, d.config.Angle)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	return toRegions(dets, cols, rows, d.config.ScoreThreshold), nil
}

// toRegions converts pigo's (row, col, scale) detections into rectangles
// clipped to the image, dropping those scoring below threshold.
func toRegions(dets []pigo.Detection, cols, rows int, threshold float64) []types.FaceRegion {
	var regions []types.FaceRegion
	for _, det := range dets {
		if float64(det.Q) < threshold {
			continue
		}
		half := det.Scale / 2
		x0 := clamp(det.Col-half, 0, cols)
		y0 := clamp(det.Row-half, 0, rows)
		x1 := clamp(det.Col+half, 0, cols)
		y1 := clamp(det.Row+half, 0, rows)
		if x1 <= x0 || y1 <= y0 {
			continue
		}
		regions = append(regions, types.FaceRegion{
			X:     x0,
			Y:     y0,
			W:     x1 - x0,
			H:     y1 - y0,
			Score: float64(det.Q),
		})
	}
	return regions
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
