package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"", logrus.InfoLevel},
		{"debug", logrus.DebugLevel},
		{"WARN", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
	}

	for _, test := range tests {
		got, err := ParseLevel(test.input)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", test.input, err)
		}
		if got != test.expected {
			t.Errorf("ParseLevel(%q) = %s, expected %s", test.input, got, test.expected)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestSetupWritesToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "facecrop.log")

	closer, err := Setup(Options{Level: "debug", File: path, Output: &buf})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	WithField("file", "a.jpg").Debug("processing")

	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(data), "file=a.jpg") {
		t.Errorf("log file does not contain the entry: %s", data)
	}
	if !strings.Contains(buf.String(), "processing") {
		t.Errorf("output does not contain the entry: %s", buf.String())
	}

	t.Cleanup(func() { Setup(Options{}) })
}

func TestSetupRejectsBadLevel(t *testing.T) {
	if _, err := Setup(Options{Level: "verbose-ish"}); err == nil {
		t.Error("Expected error for bad level")
	}
}
