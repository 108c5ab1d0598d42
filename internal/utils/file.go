package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// OutputMarker is inserted between an input file's stem and its extension
const OutputMarker = ".out"

// SupportedExtensions lists the accepted input extensions, lower case
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp", ".tiff", ".tif"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if !DirExists(dir) {
		return fmt.Errorf("%s exists and is not a directory", dir)
	}
	return nil
}

// IsImageFile checks if a file has a supported image extension
func IsImageFile(filename string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(filename)))
}

// OutputPath derives the output file for input: {stem}.out{ext} in outputDir.
// Two inputs with the same name map to the same output; the later write wins.
func OutputPath(input, outputDir string) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(outputDir, stem+OutputMarker+ext)
}

// DebugPath derives the debug overlay file for input
func DebugPath(input, outputDir string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+".debug.png")
}

// DefaultOutputDir is input/output for a directory and the sibling
// output directory for a single file
func DefaultOutputDir(input string, isDir bool) string {
	if isDir {
		return filepath.Join(input, "output")
	}
	return filepath.Join(filepath.Dir(input), "output")
}

// ListImageFiles lists the image files directly inside dir, sorted by name.
// Subdirectories are not descended into.
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsImageFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	return files, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}
