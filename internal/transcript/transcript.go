// Package transcript renders transcription results into their final text
// form and persists them without leaving partial files behind.
package transcript

import (
	"fmt"

	"github.com/ajornet/scriber/internal/asr"
	"github.com/ajornet/scriber/internal/bucket"
)

// TimestampMode selects how (and whether) timing annotations appear in
// the rendered transcript.
type TimestampMode string

const (
	// TimestampsNone renders the recognized text as one unbroken string.
	TimestampsNone TimestampMode = "none"
	// TimestampsSecond renders one "[M:SS]" line per non-silent second.
	TimestampsSecond TimestampMode = "second"
	// TimestampsSnippet renders one "[M:SS - M:SS]" line per non-silent
	// window of RenderOptions.BucketWidth seconds.
	TimestampsSnippet TimestampMode = "snippet"
)

// DefaultBucketWidth is the snippet window width when none is configured.
const DefaultBucketWidth = 5

// RenderOptions configures Render.
type RenderOptions struct {
	Timestamps  TimestampMode
	BucketWidth int // snippet window width in seconds; ignored by the other modes
}

// Render produces the final transcript string for t.
//
// Timestamped modes bucket the transcript's words. When the backend
// produced no word-level timings the segment fallback is used: one line
// per segment with the segment's own times, untouched by the window
// width. A transcript that ran in word-timing mode but recognized zero
// words renders as an empty string; it does not fall back to segments.
func Render(t *asr.Transcript, opts RenderOptions) (string, error) {
	width := 0
	switch opts.Timestamps {
	case "", TimestampsNone:
		return t.PlainText(), nil
	case TimestampsSecond:
		width = 1
	case TimestampsSnippet:
		width = opts.BucketWidth
		if width == 0 {
			width = DefaultBucketWidth
		}
		if width < 1 {
			return "", fmt.Errorf("transcript: bucket width must be at least 1, got %d", width)
		}
	default:
		return "", fmt.Errorf("transcript: unknown timestamp mode %q", opts.Timestamps)
	}

	if !t.WordTimestamps {
		return bucket.Render(bucket.SegmentLines(t.Segments, width > 1)), nil
	}
	return bucket.Render(bucket.Lines(t.AllWords(), width)), nil
}
