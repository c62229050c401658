// Package localwhisper shells out to a whisper CLI binary (whisper.cpp or
// faster-whisper style) for on-device transcription.
package localwhisper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajornet/scriber/internal/asr"
	"github.com/ajornet/scriber/internal/diaglog"
)

// Config configures the local whisper CLI backend.
type Config struct {
	BinaryPath     string // path to the whisper CLI
	ModelPath      string // path to a .bin model file, optional
	Model          string // model size name (tiny, base, small, medium, large)
	Threads        int    // CPU threads (0 = auto)
	TimeoutSeconds int    // default 300 (long recordings take a while)
}

// Backend runs a whisper CLI subprocess and parses its JSON output.
type Backend struct {
	cfg    Config
	logger *diaglog.Logger
}

// Compile-time interface check.
var _ asr.Backend = (*Backend)(nil)

// NewBackend creates a local whisper backend with the given config.
func NewBackend(cfg Config) *Backend {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}
	return &Backend{cfg: cfg}
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
		Component: diaglog.ComponentLocalWhisper,
		Event:     event,
		Payload:   payload,
	})
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "local_whisper"
}

// Timestamps in the CLI's JSON are fractional seconds. They are parsed as
// decimals and converted through milliseconds so 4.9 stays in second 4
// instead of drifting across the boundary through float arithmetic.
type whisperWord struct {
	Word  string           `json:"word"`
	Start *decimal.Decimal `json:"start"`
	End   *decimal.Decimal `json:"end"`
	Score float64          `json:"score"`
}

type whisperSegment struct {
	Start decimal.Decimal `json:"start"`
	End   decimal.Decimal `json:"end"`
	Text  string          `json:"text"`
	Score float64         `json:"score"`
	Words []whisperWord   `json:"words"`
}

type whisperOutput struct {
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

// TranscribeFile invokes the whisper CLI subprocess to transcribe an
// audio file.
func (b *Backend) TranscribeFile(filePath string, opts asr.TranscribeOptions) (*asr.Transcript, error) {
	if _, err := os.Stat(b.cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("localwhisper: binary not found at %q: %w", b.cfg.BinaryPath, err)
	}

	args := b.buildArgs(filePath, opts)
	cmd := exec.Command(b.cfg.BinaryPath, args...)

	// Use a process group so the entire tree dies on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	b.log(diaglog.EventTranscribeStart, map[string]interface{}{
		"file": filePath, "model": b.resolveModel(opts), "word_timestamps": opts.WordTimestamps,
	})

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("localwhisper: failed to start subprocess: %w", err)
	}
	b.log(diaglog.EventModelLoaded, map[string]interface{}{"model": b.resolveModel(opts)})

	var mu sync.Mutex
	var killed bool
	timer := time.AfterFunc(time.Duration(b.cfg.TimeoutSeconds)*time.Second, func() {
		mu.Lock()
		killed = true
		mu.Unlock()
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	})

	err := cmd.Wait()
	timer.Stop()

	if err != nil {
		mu.Lock()
		wasKilled := killed
		mu.Unlock()
		if wasKilled {
			return nil, fmt.Errorf("localwhisper: transcription timed out after %d seconds", b.cfg.TimeoutSeconds)
		}
		return nil, fmt.Errorf("localwhisper: subprocess failed: %w", err)
	}

	var output whisperOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, fmt.Errorf("localwhisper: failed to parse JSON output: %w", err)
	}

	transcript := &asr.Transcript{
		Language:       output.Language,
		Model:          b.resolveModel(opts),
		Backend:        b.Name(),
		WordTimestamps: opts.WordTimestamps,
	}

	for _, seg := range output.Segments {
		s := asr.Segment{
			Start: decimalToDuration(seg.Start),
			End:   decimalToDuration(seg.End),
			Text:  seg.Text,
			Score: seg.Score,
		}
		for _, w := range seg.Words {
			// The aligner can fail to time individual words (digits,
			// punctuation-heavy tokens); those carry null start/end and
			// inherit the segment boundaries.
			word := asr.Word{Text: w.Word, Start: s.Start, End: s.End, Score: w.Score}
			if w.Start != nil {
				word.Start = decimalToDuration(*w.Start)
			}
			if w.End != nil {
				word.End = decimalToDuration(*w.End)
			}
			s.Words = append(s.Words, word)
		}
		transcript.Segments = append(transcript.Segments, s)
	}

	if len(transcript.Segments) > 0 {
		transcript.Duration = transcript.Segments[len(transcript.Segments)-1].End
	}

	b.log(diaglog.EventTranscribeDone, map[string]interface{}{
		"file": filePath, "segments": len(transcript.Segments),
	})
	return transcript, nil
}

// HealthCheck verifies the whisper binary exists, is executable, and runs.
func (b *Backend) HealthCheck() (*asr.HealthStatus, error) {
	status := &asr.HealthStatus{
		Backend: b.Name(),
	}

	info, err := os.Stat(b.cfg.BinaryPath)
	if err != nil {
		status.Message = fmt.Sprintf("binary not found at %q: %v", b.cfg.BinaryPath, err)
		return status, nil
	}
	if info.Mode()&0111 == 0 {
		status.Message = fmt.Sprintf("binary at %q is not executable", b.cfg.BinaryPath)
		return status, nil
	}

	if b.cfg.ModelPath != "" {
		if _, err := os.Stat(b.cfg.ModelPath); err != nil {
			status.Message = fmt.Sprintf("model not found at %q: %v", b.cfg.ModelPath, err)
			return status, nil
		}
	}

	start := time.Now()
	cmd := exec.Command(b.cfg.BinaryPath, "--help")
	err = cmd.Run()
	status.Latency = time.Since(start)

	// --help may exit non-zero on some binaries; it only has to execute.
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			status.Message = fmt.Sprintf("binary failed to execute: %v", err)
			return status, nil
		}
	}

	status.OK = true
	status.Message = "binary is available and executable"
	return status, nil
}

// buildArgs constructs the CLI arguments for the whisper binary.
func (b *Backend) buildArgs(filePath string, opts asr.TranscribeOptions) []string {
	var args []string

	if b.cfg.ModelPath != "" {
		args = append(args, "--model", b.cfg.ModelPath)
	} else if m := b.resolveModel(opts); m != "" {
		args = append(args, "--model", m)
	}

	args = append(args, "--output-json")

	if opts.WordTimestamps {
		args = append(args, "--word-timestamps")
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if b.cfg.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(b.cfg.Threads))
	}

	args = append(args, filePath)
	return args
}

// resolveModel returns the model name, preferring opts over config.
func (b *Backend) resolveModel(opts asr.TranscribeOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return b.cfg.Model
}

// decimalToDuration converts fractional seconds to a duration with
// millisecond precision.
func decimalToDuration(d decimal.Decimal) time.Duration {
	ms := d.Mul(decimal.NewFromInt(1000)).IntPart()
	return time.Duration(ms) * time.Millisecond
}
