package mediafile

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Metadata is the optional sidecar JSON written alongside a transcript,
// recording how it was produced.
type Metadata struct {
	Version       string    `json:"version"`
	SessionID     string    `json:"session_id,omitempty"`
	Input         string    `json:"input"`
	Outputs       []string  `json:"outputs"`
	Backend       string    `json:"backend"`
	Model         string    `json:"model"`
	Language      string    `json:"language,omitempty"`
	Duration      string    `json:"duration,omitempty"`
	Timestamps    string    `json:"timestamps"`
	BucketWidth   int       `json:"bucket_width_seconds,omitempty"`
	FromCache     bool      `json:"from_cache"`
	TranscribedAt time.Time `json:"transcribed_at"`
}

// WriteMetadata writes meta as pretty-printed JSON to <basePath>.meta.json
// and returns the written path.
func WriteMetadata(basePath string, meta Metadata) (string, error) {
	if meta.TranscribedAt.IsZero() {
		meta.TranscribedAt = time.Now()
	}
	path := basePath + ".meta.json"
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("writing metadata: %w", err)
	}
	return path, nil
}
