// Package facecrop turns folders of photos into uniform square thumbnails
// centered on the first detected face.
//
// Each image is decoded, scanned for faces, cropped to the largest square that
// fits inside it (anchored on the first face, or on the image center when no
// face is found), scaled to the requested side length and written next to
// the others in an output directory as {stem}.out{ext}.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/menta2k/facecrop"
//		"github.com/menta2k/facecrop/pkg/batch"
//		"github.com/menta2k/facecrop/pkg/detection"
//	)
//
//	func main() {
//		cfg := detection.DefaultConfig()
//		cfg.CascadePath = "facefinder"
//		detector, err := detection.LoadPigoDetector(cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		fc := facecrop.New(detector)
//		report, err := fc.ProcessImages(context.Background(), "photos", batch.Options{Size: 224})
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%d/%d cropped, %d without a face\n", report.Succeeded, report.Total, report.NoFace)
//	}
//
// The package consists of four main components:
//
// 1. Detection (pkg/detection): finds face regions with a pigo cascade
// 2. Cropper (pkg/cropper): plans and applies the square crop
// 3. Processing (pkg/processing): decodes and encodes images
// 4. Batch (pkg/batch): runs the pipeline over many images in parallel
package facecrop

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/facecrop/internal/config"
	"github.com/menta2k/facecrop/internal/logger"
	"github.com/menta2k/facecrop/internal/utils"
	"github.com/menta2k/facecrop/pkg/batch"
	"github.com/menta2k/facecrop/pkg/detection"
	apperrors "github.com/menta2k/facecrop/pkg/errors"
	"github.com/menta2k/facecrop/pkg/processing"
	"github.com/menta2k/facecrop/pkg/types"
)

// Version of the facecrop tool
const Version = "0.1.0"

// FaceCrop provides a high-level interface for batch face cropping
type FaceCrop struct {
	runner *batch.Runner
}

// New creates a FaceCrop around detector with default codec settings.
// A nil detector center-crops every image.
func New(detector detection.Detector, opts ...batch.Option) *FaceCrop {
	opts = append([]batch.Option{batch.WithLogger(logger.Logger)}, opts...)
	return &FaceCrop{runner: batch.NewRunner(detector, opts...)}
}

// NewWithConfig creates a FaceCrop from application configuration. Without a
// cascade every image is center-cropped and a warning is logged.
func NewWithConfig(cfg *config.Config, opts ...batch.Option) (*FaceCrop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.New(apperrors.KindInvalidParameter, "invalid configuration", err)
	}

	var detector detection.Detector
	detCfg := cfg.DetectionConfig()
	if detCfg.CascadePath == "" {
		logger.WithField("env", config.EnvCascade).Warn("no face cascade configured, images will be center-cropped")
		detector = detection.NoopDetector{}
	} else {
		pigo, err := detection.LoadPigoDetector(detCfg)
		if err != nil {
			return nil, apperrors.NewSetupError("cannot load face detector", err)
		}
		logger.WithField("cascade", detCfg.CascadePath).Debug("face detector loaded")
		detector = pigo
	}

	base := []batch.Option{
		batch.WithProcessor(processing.NewProcessorWithConfig(cfg.ProcessingConfig())),
		batch.WithFilter(cfg.Crop.Filter),
	}
	return New(detector, append(base, opts...)...), nil
}

// ResolveInputs expands input into the list of images to process. A
// directory yields its supported images, sorted; a file must itself be a
// supported image.
func ResolveInputs(input string) (paths []string, isDir bool, err error) {
	switch {
	case input == "":
		return nil, false, apperrors.NewInvalidParameter("no input given")
	case utils.DirExists(input):
		files, err := utils.ListImageFiles(input)
		if err != nil {
			return nil, true, apperrors.New(apperrors.KindInvalidParameter, "cannot read input directory", err).WithPath(input)
		}
		if len(files) == 0 {
			return nil, true, apperrors.NewInvalidParameter(fmt.Sprintf("no supported images found in %s", input))
		}
		return files, true, nil
	case utils.FileExists(input):
		if !utils.IsImageFile(input) {
			return nil, false, apperrors.NewInvalidParameter(fmt.Sprintf("unsupported file type: %s", input))
		}
		return []string{input}, false, nil
	default:
		return nil, false, apperrors.NewInvalidParameter(fmt.Sprintf("input does not exist: %s", input))
	}
}

// ProcessImages crops every image named by input, a file or a directory.
// An empty opts.OutputDir defaults to an "output" directory beside the input.
func (fc *FaceCrop) ProcessImages(ctx context.Context, input string, opts batch.Options) (*types.Report, error) {
	paths, isDir, err := ResolveInputs(input)
	if err != nil {
		return nil, err
	}
	if opts.OutputDir == "" {
		opts.OutputDir = utils.DefaultOutputDir(input, isDir)
	}

	logger.WithFields(logrus.Fields{
		"input":  input,
		"images": len(paths),
	}).Debug("resolved inputs")

	return fc.runner.Run(ctx, paths, opts)
}

// ProcessPaths crops an explicit list of images
func (fc *FaceCrop) ProcessPaths(ctx context.Context, paths []string, opts batch.Options) (*types.Report, error) {
	return fc.runner.Run(ctx, paths, opts)
}

// GetVersion returns the version of the library
func GetVersion() string {
	return Version
}
