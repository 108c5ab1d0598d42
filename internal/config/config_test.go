package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Crop.Size != 224 {
		t.Errorf("Expected default size 224, got %d", cfg.Crop.Size)
	}
	if cfg.Log.File != "facecrop.log" || cfg.Log.MaxSizeMB != 10 {
		t.Errorf("unexpected log defaults: %+v", cfg.Log)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"size below minimum", func(c *Config) { c.Crop.Size = 63 }},
		{"size above maximum", func(c *Config) { c.Crop.Size = 4097 }},
		{"unknown filter", func(c *Config) { c.Crop.Filter = "bicubic-ish" }},
		{"negative workers", func(c *Config) { c.Batch.Workers = -2 }},
		{"bad timeout", func(c *Config) { c.Batch.ImageTimeout = "soon" }},
		{"negative timeout", func(c *Config) { c.Batch.ImageTimeout = "-1s" }},
		{"jpeg quality", func(c *Config) { c.Output.JPEGQuality = 0 }},
		{"webp quality", func(c *Config) { c.Output.WebPQuality = 101 }},
		{"log level", func(c *Config) { c.Log.Level = "chatty" }},
		{"scale factor", func(c *Config) { c.Detector.ScaleFactor = 1 }},
	}

	for _, test := range tests {
		cfg := Default()
		test.modify(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", test.name)
		}
	}

	cfg := Default()
	cfg.Crop.Size = 64
	cfg.Batch.Workers = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("boundary values should be valid: %v", err)
	}
	cfg.Crop.Size = 4096
	if err := cfg.Validate(); err != nil {
		t.Errorf("boundary values should be valid: %v", err)
	}
}

func TestImageTimeout(t *testing.T) {
	cfg := Default()
	if d, err := cfg.ImageTimeout(); err != nil || d != 0 {
		t.Errorf("Expected no timeout, got %v (%v)", d, err)
	}
	cfg.Batch.ImageTimeout = "1500ms"
	if d, err := cfg.ImageTimeout(); err != nil || d != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s, got %v (%v)", d, err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Crop.Size = 512
	cfg.Detector.Cascade = "/opt/cascade/facefinder"
	cfg.Batch.ImageTimeout = "30s"

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Crop.Size != 512 || loaded.Detector.Cascade != "/opt/cascade/facefinder" || loaded.Batch.ImageTimeout != "30s" {
		t.Errorf("unexpected loaded config: %+v", loaded)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"crop": {"size": 128}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Crop.Size != 128 {
		t.Errorf("Expected size 128, got %d", cfg.Crop.Size)
	}
	if cfg.Crop.Filter != "lanczos" || cfg.Output.JPEGQuality != 95 {
		t.Errorf("Expected defaults to survive, got %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("partial config should be valid: %v", err)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvCascade, "/tmp/facefinder")
	t.Setenv(EnvLogLevel, "debug")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Detector.Cascade != "/tmp/facefinder" {
		t.Errorf("Expected cascade from env, got %q", cfg.Detector.Cascade)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug level from env, got %q", cfg.Log.Level)
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Detector.Cascade = "cascade.bin"
	cfg.Detector.MinFaceSize = 40
	cfg.Output.JPEGQuality = 80
	cfg.Output.WebPLossless = true

	det := cfg.DetectionConfig()
	if det.CascadePath != "cascade.bin" || det.MinSize != 40 {
		t.Errorf("unexpected detection config: %+v", det)
	}
	if err := det.Validate(); err != nil {
		t.Errorf("converted detection config should be valid: %v", err)
	}

	enc := cfg.ProcessingConfig()
	if enc.JPEGQuality != 80 || !enc.WebPLossless {
		t.Errorf("unexpected processing config: %+v", enc)
	}
}

func TestGetConfigPath(t *testing.T) {
	if filepath.Base(GetConfigPath()) != "config.json" {
		t.Errorf("unexpected config path %s", GetConfigPath())
	}
}
