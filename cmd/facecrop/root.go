package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/menta2k/facecrop"
	"github.com/menta2k/facecrop/internal/config"
	"github.com/menta2k/facecrop/internal/logger"
	"github.com/menta2k/facecrop/internal/utils"
	"github.com/menta2k/facecrop/pkg/batch"
	apperrors "github.com/menta2k/facecrop/pkg/errors"
	"github.com/menta2k/facecrop/pkg/types"
)

// Process exit codes
const (
	exitOK          = 0
	exitFailures    = 1
	exitSetup       = 2
	exitInterrupted = 130
)

// errInterrupted marks a batch stopped by SIGINT or SIGTERM
var errInterrupted = stderrors.New("interrupted")

// errFailures marks a batch in which at least one image failed
var errFailures = stderrors.New("some images failed")

type cliOptions struct {
	dir        string
	file       string
	output     string
	size       int
	workers    int
	quiet      bool
	cascade    string
	timeout    time.Duration
	debug      bool
	configPath string
	logLevel   string
	logFile    string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   "facecrop [input]",
		Short: "Crop photos to face-centered square thumbnails",
		Long: "facecrop detects the first face in every image and writes a square crop\n" +
			"centered on it, scaled to a fixed size. Images without a face are\n" +
			"center-cropped. Input is a single image or a directory of images.",
		Version:       facecrop.Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrop(cmd, opts, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&opts.dir, "dir", "", "directory of images to process")
	flags.StringVar(&opts.file, "file", "", "single image to process")
	flags.StringVarP(&opts.output, "output", "o", "", "output directory (default: \"output\" beside the input)")
	flags.IntVarP(&opts.size, "size", "s", 224, "output side length in pixels (64-4096)")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "parallel workers (default: one per CPU core)")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "hide the progress bar")
	flags.StringVar(&opts.cascade, "cascade", "", "pigo face cascade file (env "+config.EnvCascade+")")
	flags.DurationVar(&opts.timeout, "timeout", 0, "per-image time limit, e.g. 30s (0 disables)")
	flags.BoolVar(&opts.debug, "debug", false, "also write a debug overlay per image")
	flags.StringVar(&opts.configPath, "config", "", "JSON configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFile, "log-file", "", "rotating log file, empty to disable (default \"facecrop.log\")")
	cmd.MarkFlagsMutuallyExclusive("dir", "file")

	return cmd
}

// loadConfig layers defaults, the config file, the environment and finally
// any flag the user set explicitly.
func loadConfig(cmd *cobra.Command, opts *cliOptions) (*config.Config, error) {
	cfg := config.Default()

	path := opts.configPath
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, apperrors.New(apperrors.KindInvalidParameter, "cannot load configuration", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("size") {
		cfg.Crop.Size = opts.size
	}
	if flags.Changed("workers") {
		if opts.workers < 1 {
			return nil, apperrors.NewInvalidParameter(fmt.Sprintf("workers must be >= 1, got %d", opts.workers))
		}
		cfg.Batch.Workers = opts.workers
	}
	if flags.Changed("output") {
		cfg.Output.Dir = opts.output
	}
	if flags.Changed("cascade") {
		cfg.Detector.Cascade = opts.cascade
	}
	if flags.Changed("timeout") {
		cfg.Batch.ImageTimeout = opts.timeout.String()
	}
	if flags.Changed("debug") {
		cfg.Output.Debug = opts.debug
	}
	if flags.Changed("quiet") {
		cfg.Log.Quiet = opts.quiet
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.New(apperrors.KindInvalidParameter, "invalid configuration", err)
	}
	return cfg, nil
}

func inputSource(opts *cliOptions, args []string) (string, error) {
	var sources []string
	if len(args) == 1 {
		sources = append(sources, args[0])
	}
	if opts.dir != "" {
		sources = append(sources, opts.dir)
	}
	if opts.file != "" {
		sources = append(sources, opts.file)
	}

	switch len(sources) {
	case 0:
		return "", apperrors.NewInvalidParameter("an input is required: give a path, --dir or --file")
	case 1:
	default:
		return "", apperrors.NewInvalidParameter("give exactly one input: a path, --dir or --file")
	}

	if opts.dir != "" && !utils.DirExists(opts.dir) {
		return "", apperrors.NewInvalidParameter(fmt.Sprintf("not a directory: %s", opts.dir))
	}
	if opts.file != "" && !utils.FileExists(opts.file) {
		return "", apperrors.NewInvalidParameter(fmt.Sprintf("not a file: %s", opts.file))
	}
	return sources[0], nil
}

func runCrop(cmd *cobra.Command, opts *cliOptions, args []string, stdout, stderr io.Writer) error {
	input, err := inputSource(opts, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	closer, err := logger.Setup(logger.Options{
		Level:     cfg.Log.Level,
		File:      cfg.Log.File,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Output:    stderr,
	})
	if err != nil {
		return apperrors.New(apperrors.KindSetup, "cannot set up logging", err)
	}
	defer closer.Close()

	paths, isDir, err := facecrop.ResolveInputs(input)
	if err != nil {
		return err
	}
	outDir := cfg.Output.Dir
	if outDir == "" {
		outDir = utils.DefaultOutputDir(input, isDir)
	}
	timeout, _ := cfg.ImageTimeout()

	var extra []batch.Option
	var bar *progressbar.ProgressBar
	if !cfg.Log.Quiet {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("cropping"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		extra = append(extra, batch.WithProgress(func(types.Result) { _ = bar.Add(1) }))
	}

	fc, err := facecrop.NewWithConfig(cfg, extra...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := fc.ProcessPaths(ctx, paths, batch.Options{
		Size:         cfg.Crop.Size,
		OutputDir:    outDir,
		Workers:      cfg.Batch.Workers,
		ImageTimeout: timeout,
		Debug:        cfg.Output.Debug,
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	printSummary(stdout, report, outDir)

	switch {
	case ctx.Err() != nil:
		return errInterrupted
	case !report.OK():
		return errFailures
	}
	return nil
}

func printSummary(w io.Writer, report *types.Report, outDir string) {
	fmt.Fprintf(w, "Processed: %d/%d in %s\n", report.Succeeded, report.Total, report.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Failed: %d\n", report.Failed)
	fmt.Fprintf(w, "No face (center crop): %d\n", report.NoFace)
	fmt.Fprintf(w, "Output: %s\n", outDir)
	if len(report.Failures) > 0 {
		fmt.Fprintln(w, "Failures:")
		for _, f := range report.Failures {
			fmt.Fprintf(w, "  %s: %s\n", f.Input, f.Reason)
		}
	}
}

// exitCode maps the outcome of the root command to a process exit code
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case stderrors.Is(err, errInterrupted):
		return exitInterrupted
	case stderrors.Is(err, errFailures):
		return exitFailures
	default:
		return exitSetup
	}
}

// run executes the CLI with args and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err != nil && !stderrors.Is(err, errFailures) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}
