package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/facecrop/internal/logger"
	"github.com/menta2k/facecrop/pkg/cropper"
	"github.com/menta2k/facecrop/pkg/detection"
	"github.com/menta2k/facecrop/pkg/processing"
)

// Environment variables that override file settings
const (
	EnvCascade  = "FACECROP_CASCADE"
	EnvLogLevel = "LOG_LEVEL"
)

// Config holds the application configuration
type Config struct {
	Crop     CropConfig     `json:"crop"`
	Detector DetectorConfig `json:"detector"`
	Batch    BatchConfig    `json:"batch"`
	Output   OutputConfig   `json:"output"`
	Log      LogConfig      `json:"log"`
}

// CropConfig holds configuration for the square crop
type CropConfig struct {
	Size   int    `json:"size"`
	Filter string `json:"filter"`
}

// DetectorConfig holds the face cascade parameters
type DetectorConfig struct {
	Cascade        string  `json:"cascade"`
	MinFaceSize    int     `json:"min_face_size"`
	MaxFaceSize    int     `json:"max_face_size"`
	ShiftFactor    float64 `json:"shift_factor"`
	ScaleFactor    float64 `json:"scale_factor"`
	IoUThreshold   float64 `json:"iou_threshold"`
	ScoreThreshold float64 `json:"score_threshold"`
}

// BatchConfig holds configuration for parallel processing
type BatchConfig struct {
	Workers      int    `json:"workers"`
	ImageTimeout string `json:"image_timeout"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir          string  `json:"dir"`
	JPEGQuality  int     `json:"jpeg_quality"`
	WebPQuality  float32 `json:"webp_quality"`
	WebPLossless bool    `json:"webp_lossless"`
	Debug        bool    `json:"debug"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level     string `json:"level"`
	File      string `json:"file"`
	MaxSizeMB int    `json:"max_size_mb"`
	Quiet     bool   `json:"quiet"`
}

// Default returns a configuration with default values
func Default() *Config {
	det := detection.DefaultConfig()
	enc := processing.DefaultConfig()
	return &Config{
		Crop: CropConfig{
			Size:   cropper.DefaultSize,
			Filter: "lanczos",
		},
		Detector: DetectorConfig{
			MinFaceSize:    det.MinSize,
			MaxFaceSize:    det.MaxSize,
			ShiftFactor:    det.ShiftFactor,
			ScaleFactor:    det.ScaleFactor,
			IoUThreshold:   det.IoUThreshold,
			ScoreThreshold: det.ScoreThreshold,
		},
		Batch: BatchConfig{
			Workers: 0,
		},
		Output: OutputConfig{
			JPEGQuality:  enc.JPEGQuality,
			WebPQuality:  enc.WebPQuality,
			WebPLossless: enc.WebPLossless,
		},
		Log: LogConfig{
			Level:     "info",
			File:      "facecrop.log",
			MaxSizeMB: 10,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Keys missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings from the environment
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvCascade)); v != "" {
		c.Detector.Cascade = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := cropper.ValidateSize(c.Crop.Size); err != nil {
		return err
	}

	if _, err := cropper.NewWithConfig(cropper.CropConfig{Size: c.Crop.Size, Filter: c.Crop.Filter}); err != nil {
		return err
	}

	if err := c.DetectionConfig().Validate(); err != nil {
		return err
	}

	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must be >= 1, got %d", c.Batch.Workers)
	}

	if _, err := c.ImageTimeout(); err != nil {
		return err
	}

	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpeg_quality must be between 1 and 100")
	}

	if c.Output.WebPQuality < 0 || c.Output.WebPQuality > 100 {
		return fmt.Errorf("output.webp_quality must be between 0 and 100")
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if c.Log.MaxSizeMB < 0 {
		return fmt.Errorf("log.max_size_mb must not be negative")
	}

	return nil
}

// ImageTimeout parses Batch.ImageTimeout. An empty value disables the timeout.
func (c *Config) ImageTimeout() (time.Duration, error) {
	if c.Batch.ImageTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Batch.ImageTimeout)
	if err != nil {
		return 0, fmt.Errorf("batch.image_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("batch.image_timeout must not be negative")
	}
	return d, nil
}

// DetectionConfig converts the detector section for the detection package
func (c *Config) DetectionConfig() detection.Config {
	cfg := detection.DefaultConfig()
	cfg.CascadePath = c.Detector.Cascade
	cfg.MinSize = c.Detector.MinFaceSize
	cfg.MaxSize = c.Detector.MaxFaceSize
	cfg.ShiftFactor = c.Detector.ShiftFactor
	cfg.ScaleFactor = c.Detector.ScaleFactor
	cfg.IoUThreshold = c.Detector.IoUThreshold
	cfg.ScoreThreshold = c.Detector.ScoreThreshold
	return cfg
}

// ProcessingConfig converts the output section for the processing package
func (c *Config) ProcessingConfig() processing.Config {
	cfg := processing.DefaultConfig()
	cfg.JPEGQuality = c.Output.JPEGQuality
	cfg.WebPQuality = c.Output.WebPQuality
	cfg.WebPLossless = c.Output.WebPLossless
	return cfg
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "facecrop", "config.json")
}
