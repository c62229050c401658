// Package asr defines the transcription contract shared by all speech
// recognition backends. The rest of the program treats a backend as an
// opaque producer of timestamped segments and words.
package asr

import (
	"strings"
	"time"
)

// Word is a single recognized word with timing.
type Word struct {
	Text  string
	Start time.Duration
	End   time.Duration
	Score float64 // confidence 0.0–1.0, 0 when the backend reports none
}

// Segment is a phrase-level recognition unit. Words is populated only when
// the backend produced word-level timestamps for this segment.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
	Score float64
	Words []Word
}

// Transcript is a complete transcription result.
//
// WordTimestamps reports whether the backend ran in word-timing mode, not
// whether any words were actually recognized: a silent recording
// transcribed with word timings enabled has WordTimestamps true and zero
// words. Renderers rely on this distinction to decide between the
// word-bucketing path and the segment fallback path.
type Transcript struct {
	Segments       []Segment
	WordTimestamps bool
	Language       string
	Duration       time.Duration
	Model          string
	Backend        string
}

// AllWords returns every word of every segment in input order.
func (t *Transcript) AllWords() []Word {
	var words []Word
	for _, seg := range t.Segments {
		words = append(words, seg.Words...)
	}
	return words
}

// PlainText returns the full recognized text: trimmed segment texts joined
// by single spaces, with no line breaks inserted for timing.
func (t *Transcript) PlainText() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if s := strings.TrimSpace(seg.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// TranscribeOptions configures a transcription request.
type TranscribeOptions struct {
	Model          string // model size hint (tiny, base, small, medium, large)
	Language       string // "" = auto-detect
	WordTimestamps bool   // request per-word timings where the backend supports them
}

// HealthStatus reports backend health.
type HealthStatus struct {
	OK      bool
	Backend string
	Message string
	Latency time.Duration
}

// Backend is the interface transcription backends must implement.
type Backend interface {
	Name() string
	TranscribeFile(filePath string, opts TranscribeOptions) (*Transcript, error)
	HealthCheck() (*HealthStatus, error)
}
