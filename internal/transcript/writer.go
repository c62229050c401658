package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ajornet/scriber/internal/asr"
)

// WriteText writes an already-rendered transcript string to path. The file
// is written atomically (temp file + rename) so a failure never leaves a
// partially written transcript. A trailing newline is appended when the
// content is non-empty and does not already end with one.
func WriteText(path, content string) error {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return atomicWrite(path, []byte(content))
}

// WriteSRT writes a SubRip (.srt) subtitle file from the transcript's
// segments: sequential numbering and HH:MM:SS,mmm start/end timestamps.
func WriteSRT(path string, t *asr.Transcript) error {
	var b strings.Builder
	n := 0
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if n > 0 {
			b.WriteByte('\n')
		}
		n++
		fmt.Fprintf(&b, "%d\n", n)
		fmt.Fprintf(&b, "%s --> %s\n", srtTimestamp(seg.Start), srtTimestamp(seg.End))
		fmt.Fprintf(&b, "%s\n", text)
	}
	return atomicWrite(path, []byte(b.String()))
}

// WriteVTT writes a WebVTT (.vtt) subtitle file from the transcript's
// segments, preceded by the WEBVTT header.
func WriteVTT(path string, t *asr.Transcript) error {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%s --> %s\n", vttTimestamp(seg.Start), vttTimestamp(seg.End))
		fmt.Fprintf(&b, "%s\n", text)
	}
	return atomicWrite(path, []byte(b.String()))
}

// WriteAll writes the transcript in every requested format. basePath is
// the output path without extension. Supported formats: "txt" (rendered
// with opts), "srt", "vtt". Nil or empty formats defaults to txt only.
// All failures are collected into one combined error.
func WriteAll(basePath string, t *asr.Transcript, formats []string, opts RenderOptions) error {
	if len(formats) == 0 {
		formats = []string{"txt"}
	}
	var errs []string
	for _, f := range formats {
		var err error
		switch f {
		case "txt":
			var content string
			content, err = Render(t, opts)
			if err == nil {
				err = WriteText(basePath+".txt", content)
			}
		case "srt":
			err = WriteSRT(basePath+".srt", t)
		case "vtt":
			err = WriteVTT(basePath+".vtt", t)
		default:
			errs = append(errs, fmt.Sprintf("unknown format %q", f))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", f, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("transcript write errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// srtTimestamp formats a duration as HH:MM:SS,mmm.
func srtTimestamp(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// vttTimestamp formats a duration as HH:MM:SS.mmm.
func vttTimestamp(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by a rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, "transcript-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing transcript: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing transcript: %w", err)
	}
	tmpFile = nil // rename took over; skip the deferred cleanup

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming transcript: %w", err)
	}
	return nil
}
