// Package diaglog provides structured NDJSON diagnostic logging for
// scriber. Activated by SCRIBER_DEBUG=true. When the env var is absent,
// all Log calls are no-ops and no file is created.
package diaglog

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ── Component labels ─────────────────────────────────────────────────────────

const (
	ComponentCore          = "scriber-core"
	ComponentLocalWhisper  = "local-whisper"
	ComponentOpenAIWhisper = "openai-whisper"
	ComponentRemoteWhisper = "remote-whisper"
	ComponentCache         = "transcript-cache"
	ComponentWatcher       = "dir-watcher"
	ComponentDiagExport    = "diag-export"
)

// ── Event names ──────────────────────────────────────────────────────────────

const (
	EventModelLoaded        = "model_loaded"
	EventTranscribeStart    = "transcribe_start"
	EventTranscribeDone     = "transcribe_done"
	EventTranscribeRetry    = "transcribe_retry"
	EventRemoteProgress     = "remote_progress"
	EventCacheHit           = "cache_hit"
	EventCacheMiss          = "cache_miss"
	EventCacheStore         = "cache_store"
	EventCacheError         = "cache_error"
	EventOutputSaved        = "output_saved"
	EventWatchFile          = "watch_file"
	EventWatchError         = "watch_error"
	EventWatchPollFallback  = "watch_poll_fallback"
)

// ── LogEntry ─────────────────────────────────────────────────────────────────

// LogEntry is one structured event record written as a single JSON line.
type LogEntry struct {
	Timestamp string      `json:"ts"`                   // RFC3339Nano
	Component string      `json:"component"`            // see Component* constants
	Event     string      `json:"event"`                // see Event* constants
	SessionID string      `json:"session_id,omitempty"` // one id per process run
	Reason    string      `json:"reason,omitempty"`
	Payload   interface{} `json:"payload,omitempty"` // redacted before write
}

// ── Logger ───────────────────────────────────────────────────────────────────

// Logger writes LogEntry values to a rolling NDJSON file. When debug mode
// is disabled every Log call is a no-op. Each logger carries a session id
// stamped on entries that do not set their own.
type Logger struct {
	rw      *rollingWriter
	mu      sync.Mutex
	session string
	enabled bool
}

// New opens (or creates) the NDJSON log file at path. If debug mode is
// disabled, path is ignored and a no-op logger is returned.
func New(path string) (*Logger, error) {
	if !IsDebugEnabled() {
		return &Logger{enabled: false}, nil
	}
	rw, err := newRollingWriter(path, 10*1024*1024)
	if err != nil {
		return nil, err
	}
	return &Logger{rw: rw, session: uuid.NewString(), enabled: true}, nil
}

// SessionID returns the id stamped on this logger's entries. Empty for a
// disabled logger.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.session
}

// Log serialises entry to JSON, appends a newline, and writes to the
// rolling file. Sensitive payload fields are redacted before
// serialisation.
func (l *Logger) Log(entry LogEntry) {
	if l == nil || !l.enabled {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if entry.SessionID == "" {
		entry.SessionID = l.session
	}
	if entry.Payload != nil {
		entry.Payload = Redact(entry.Payload)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.rw.Write(data)
}

// Close flushes and closes the underlying file. Safe on nil/disabled logger.
func (l *Logger) Close() error {
	if l == nil || !l.enabled || l.rw == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rw.close()
}

// IsDebugEnabled reports whether SCRIBER_DEBUG is set to "true".
func IsDebugEnabled() bool {
	return os.Getenv("SCRIBER_DEBUG") == "true"
}

// NewNoOp returns a logger where every Log call is a no-op. Use as a safe
// fallback when New fails (e.g., disk full, permissions error).
func NewNoOp() *Logger {
	return &Logger{enabled: false}
}
