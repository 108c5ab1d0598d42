package batch

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/facecrop/internal/utils"
	"github.com/menta2k/facecrop/pkg/cropper"
	"github.com/menta2k/facecrop/pkg/detection"
	apperrors "github.com/menta2k/facecrop/pkg/errors"
	"github.com/menta2k/facecrop/pkg/processing"
	"github.com/menta2k/facecrop/pkg/types"
)

// Options controls a batch run
type Options struct {
	// Size is the output side length in pixels
	Size      int
	OutputDir string
	// Workers is the pool size; 0 means one per CPU core
	Workers int
	// ImageTimeout bounds each image's pipeline; 0 disables it. The deadline
	// is checked between stages, so a stage already running is not interrupted.
	ImageTimeout time.Duration
	// Debug also writes a {stem}.debug.png overlay per image
	Debug bool
}

// Runner processes images independently, isolating per-image failures
type Runner struct {
	detector  detection.Detector
	processor *processing.Processor
	filter    string
	log       logrus.FieldLogger
	progress  func(types.Result)
}

// Option configures a Runner
type Option func(*Runner)

// WithProcessor sets the codec used to load and save images
func WithProcessor(p *processing.Processor) Option {
	return func(r *Runner) { r.processor = p }
}

// WithFilter sets the resampling filter name used for resizing
func WithFilter(name string) Option {
	return func(r *Runner) { r.filter = name }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Runner) { r.log = log }
}

// WithProgress registers fn to be called once per finished image.
// Calls are serialized.
func WithProgress(fn func(types.Result)) Option {
	return func(r *Runner) { r.progress = fn }
}

// NewRunner creates a runner around a shared detector
func NewRunner(detector detection.Detector, opts ...Option) *Runner {
	r := &Runner{
		detector:  detector,
		processor: processing.NewProcessor(),
		filter:    "lanczos",
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.detector == nil {
		r.detector = detection.NoopDetector{}
	}
	return r
}

// Run processes every input and reports the outcome. It fails only for
// setup problems (bad parameters, unusable output directory), before any
// image is touched; per-image problems end up in the report.
func (r *Runner) Run(ctx context.Context, inputs []string, opts Options) (*types.Report, error) {
	crop, err := r.setup(opts)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	workers = max(1, min(workers, len(inputs)))

	r.log.WithFields(logrus.Fields{
		"images":  len(inputs),
		"workers": workers,
		"size":    opts.Size,
		"output":  opts.OutputDir,
	}).Info("processing batch")

	start := time.Now()
	c := &collector{report: &types.Report{}, progress: r.progress}

	pool := NewWorkerPool(workers)
	pool.Start()
	for _, path := range inputs {
		pool.Submit(func() {
			c.add(r.process(ctx, path, crop, opts))
		})
	}
	pool.Wait()
	pool.Close()

	report := c.report
	report.Elapsed = time.Since(start)

	r.log.WithFields(logrus.Fields{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"no_face":   report.NoFace,
		"elapsed":   report.Elapsed.Round(time.Millisecond),
	}).Infof("processed %d/%d", report.Succeeded, report.Total)

	return report, nil
}

// ProcessFile runs the single-image pipeline for path
func (r *Runner) ProcessFile(ctx context.Context, path string, opts Options) (types.Result, error) {
	crop, err := r.setup(opts)
	if err != nil {
		return types.Result{Input: path}, err
	}
	return r.process(ctx, path, crop, opts), nil
}

func (r *Runner) setup(opts Options) (*cropper.SquareCropper, error) {
	crop, err := cropper.NewWithConfig(cropper.CropConfig{Size: opts.Size, Filter: r.filter})
	if err != nil {
		return nil, err
	}
	if opts.Workers < 0 {
		return nil, apperrors.NewInvalidParameter(fmt.Sprintf("workers must be >= 1, got %d", opts.Workers))
	}
	if opts.ImageTimeout < 0 {
		return nil, apperrors.NewInvalidParameter("image timeout must not be negative")
	}
	if opts.OutputDir == "" {
		return nil, apperrors.NewInvalidParameter("output directory required")
	}
	if err := utils.EnsureDir(opts.OutputDir); err != nil {
		return nil, apperrors.NewSetupError("cannot create output directory", err)
	}
	return crop, nil
}

// process applies the per-image timeout around the pipeline and logs the outcome
func (r *Runner) process(ctx context.Context, path string, crop *cropper.SquareCropper, opts Options) types.Result {
	start := time.Now()

	if opts.ImageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ImageTimeout)
		defer cancel()
	}
	res := r.pipeline(ctx, path, crop, opts)

	res.Duration = time.Since(start)
	r.logResult(res)
	return res
}

// pipeline runs decode, detect, plan, crop/resize and encode for one image.
// It never panics and never returns without a Result.
func (r *Runner) pipeline(ctx context.Context, path string, crop *cropper.SquareCropper, opts Options) (res types.Result) {
	res.Input = path
	defer func() {
		if p := recover(); p != nil {
			res.Output = ""
			res.Err = apperrors.New(apperrors.KindInternal, "unexpected failure", fmt.Errorf("%v", p)).WithPath(path)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = contextError(err, path)
		return res
	}

	img, err := r.processor.LoadImage(path)
	if err != nil {
		res.Err = err
		return res
	}
	if err := r.processor.ValidateImage(img); err != nil {
		res.Err = withPath(err, path)
		return res
	}

	faces, err := r.detector.Detect(ctx, img)
	if err != nil {
		if ctx.Err() != nil {
			res.Err = contextError(ctx.Err(), path)
		} else {
			res.Err = apperrors.New(apperrors.KindDetect, "face detection failed", err).WithPath(path)
		}
		return res
	}
	res.Faces = len(faces)

	cropped, err := crop.Crop(img, faces)
	if err != nil {
		res.Err = withPath(err, path)
		return res
	}
	res.FaceFound = cropped.Plan.FaceFound

	// Nothing is written once the image has run out of time.
	if err := ctx.Err(); err != nil {
		res.Err = contextError(err, path)
		return res
	}

	out := utils.OutputPath(path, opts.OutputDir)
	if err := r.processor.SaveImage(cropped.Image, out); err != nil {
		res.Err = err
		return res
	}

	// A write that finished past the deadline is undone, so a timed-out image
	// never leaves an output behind.
	if err := ctx.Err(); err != nil {
		if rmErr := os.Remove(out); rmErr != nil && !os.IsNotExist(rmErr) {
			r.log.WithError(rmErr).WithField("file", path).Warn("failed to remove late output")
		}
		res.Err = contextError(err, path)
		return res
	}
	res.Output = out

	if opts.Debug {
		dbg := utils.DebugPath(path, opts.OutputDir)
		overlay := r.processor.CreateDebugOverlay(img, cropped.Plan)
		if err := r.processor.SaveImage(overlay, dbg); err != nil {
			r.log.WithError(err).WithField("file", path).Warn("debug overlay save failed")
		}
	}

	return res
}

func (r *Runner) logResult(res types.Result) {
	entry := r.log.WithField("file", res.Input)
	switch {
	case !res.Succeeded():
		entry.WithField("kind", apperrors.KindOf(res.Err)).Errorf("failed: %s", apperrors.Reason(res.Err))
	case !res.FaceFound:
		entry.WithField("output", res.Output).Warn("no faces found, using center crop")
	default:
		entry.WithFields(logrus.Fields{
			"faces":    res.Faces,
			"output":   res.Output,
			"duration": res.Duration.Round(time.Millisecond),
		}).Info("saved")
	}
}

// collector aggregates results from concurrent workers
type collector struct {
	mu       sync.Mutex
	report   *types.Report
	progress func(types.Result)
}

func (c *collector) add(res types.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Add(res, apperrors.Reason)
	if c.progress != nil {
		c.progress(res)
	}
}

func contextError(err error, path string) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return (&apperrors.AppError{Kind: apperrors.KindTimeout, Message: "timed out", Cause: err}).WithPath(path)
	}
	return (&apperrors.AppError{Kind: apperrors.KindCanceled, Message: "canceled", Cause: err}).WithPath(path)
}

func withPath(err error, path string) error {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.WithPath(path)
	}
	return apperrors.New(apperrors.KindInternal, "processing failed", err).WithPath(path)
}
