// Package openaiwhisper transcribes audio through the OpenAI
// audio/transcriptions API.
package openaiwhisper

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ajornet/scriber/internal/asr"
	"github.com/ajornet/scriber/internal/diaglog"
)

// Config configures the OpenAI transcription backend.
type Config struct {
	APIKey         string
	BaseURL        string // optional override, e.g. an API-compatible proxy
	Model          string // default whisper-1; the API ignores local size hints
	TimeoutSeconds int    // default 600
}

// Backend calls the hosted Whisper API with verbose JSON output so
// segment and word timings come back alongside the text.
type Backend struct {
	cfg    Config
	client *openai.Client
	logger *diaglog.Logger
}

// Compile-time interface check.
var _ asr.Backend = (*Backend)(nil)

// NewBackend creates an OpenAI transcription backend.
func NewBackend(cfg Config) *Backend {
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 600
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Backend{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}
}

// SetLogger injects a diaglog.Logger for debug event logging.
func (b *Backend) SetLogger(l *diaglog.Logger) {
	b.logger = l
}

func (b *Backend) log(event string, payload map[string]interface{}) {
	if b.logger == nil {
		return
	}
	b.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentOpenAIWhisper,
		Event:     event,
		Payload:   payload,
	})
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "openai_whisper"
}

// TranscribeFile uploads the audio file and converts the verbose JSON
// response. The local model size hint is not forwarded: the API exposes a
// single hosted whisper model.
func (b *Backend) TranscribeFile(filePath string, opts asr.TranscribeOptions) (*asr.Transcript, error) {
	if b.cfg.APIKey == "" {
		return nil, fmt.Errorf("openaiwhisper: API key is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(b.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	granularities := []openai.TranscriptionTimestampGranularity{
		openai.TranscriptionTimestampGranularitySegment,
	}
	if opts.WordTimestamps {
		granularities = append(granularities, openai.TranscriptionTimestampGranularityWord)
	}

	b.log(diaglog.EventTranscribeStart, map[string]interface{}{
		"file": filePath, "model": b.cfg.Model, "word_timestamps": opts.WordTimestamps,
	})

	resp, err := b.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:                  b.cfg.Model,
		FilePath:               filePath,
		Language:               opts.Language,
		Format:                 openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: granularities,
	})
	if err != nil {
		return nil, fmt.Errorf("openaiwhisper: transcription request failed: %w", err)
	}

	transcript := &asr.Transcript{
		Language:       resp.Language,
		Duration:       floatSecToDuration(resp.Duration),
		Model:          b.cfg.Model,
		Backend:        b.Name(),
		WordTimestamps: opts.WordTimestamps,
	}

	for _, s := range resp.Segments {
		transcript.Segments = append(transcript.Segments, asr.Segment{
			Start: floatSecToDuration(s.Start),
			End:   floatSecToDuration(s.End),
			Text:  s.Text,
		})
	}

	// Word timings arrive as one flat list; fold them back into the
	// segment that covers them so the transcript shape matches the other
	// backends.
	if opts.WordTimestamps {
		words := make([]asr.Word, len(resp.Words))
		for i, w := range resp.Words {
			words[i] = asr.Word{
				Text:  w.Word,
				Start: floatSecToDuration(w.Start),
				End:   floatSecToDuration(w.End),
			}
		}
		attachWords(transcript, words, resp.Text)
	}

	b.log(diaglog.EventTranscribeDone, map[string]interface{}{
		"file": filePath, "segments": len(transcript.Segments),
	})
	return transcript, nil
}

// HealthCheck verifies the API is reachable with the configured key.
func (b *Backend) HealthCheck() (*asr.HealthStatus, error) {
	status := &asr.HealthStatus{Backend: b.Name()}
	if b.cfg.APIKey == "" {
		status.Message = "API key is not configured"
		return status, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	_, err := b.client.ListModels(ctx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Message = fmt.Sprintf("API unreachable: %v", err)
		return status, nil
	}

	status.OK = true
	status.Message = "API reachable"
	return status, nil
}

// attachWords distributes words into the segments whose time span covers
// them. Words past the final segment end up in the last segment. When the
// response carried words but no segments, a single synthetic segment is
// created from the full text.
func attachWords(t *asr.Transcript, words []asr.Word, fullText string) {
	if len(words) == 0 {
		return
	}
	if len(t.Segments) == 0 {
		t.Segments = []asr.Segment{{
			Start: words[0].Start,
			End:   words[len(words)-1].End,
			Text:  fullText,
			Words: words,
		}}
		return
	}
	i := 0
	for si := range t.Segments {
		seg := &t.Segments[si]
		for i < len(words) && (words[i].Start < seg.End || si == len(t.Segments)-1) {
			seg.Words = append(seg.Words, words[i])
			i++
		}
	}
}

// floatSecToDuration converts fractional seconds to time.Duration.
func floatSecToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
