// Package mediafile validates transcription inputs and derives output
// file paths. Validation happens before any backend call so unusable
// inputs fail fast without touching a model.
package mediafile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound reports a missing input media file.
var ErrNotFound = errors.New("input file not found")

// ErrUnsupportedFormat reports a media extension outside the supported set.
var ErrUnsupportedFormat = errors.New("unsupported media format")

// supportedExtensions lists the media types accepted for transcription,
// lowercase with leading dot.
var supportedExtensions = map[string]bool{
	".m4a": true,
	".mp4": true,
	".mp3": true,
	".wav": true,
}

// SupportedExtensions returns the accepted extensions in no particular order.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	return exts
}

// Supported reports whether path has a supported media extension.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Validate checks that path exists, is a regular file, and carries a
// supported extension. Returned errors match ErrNotFound and
// ErrUnsupportedFormat via errors.Is.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}
	if !Supported(path) {
		return fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat,
			filepath.Ext(path), strings.Join(SupportedExtensions(), " "))
	}
	return nil
}

// DeriveOutputPath replaces the media extension of inputPath with ext
// (which must include the leading dot).
func DeriveOutputPath(inputPath, ext string) string {
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	return base + ext
}

// UniquePath returns path unchanged when nothing exists there, otherwise
// the first free variant with a _2.._99 suffix before the extension.
func UniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 2; i < 100; i++ {
		try := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(try); os.IsNotExist(err) {
			return try
		}
	}
	return path
}
