// Package remotewhisper transcribes audio through a self-hosted Whisper
// HTTP API.
package remotewhisper

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ajornet/scriber/internal/asr"
	"github.com/ajornet/scriber/internal/diaglog"
)

// Config configures the remote Whisper API client.
type Config struct {
	BaseURL        string
	Token          string // optional auth token, sent as Bearer
	TimeoutSeconds int    // default 120
	Retries        int    // default 3
	Model          string // default "base"
	Progress       bool   // subscribe to the websocket progress stream
}

// Client is an asr.Backend that calls a remote Whisper HTTP API.
type Client struct {
	cfg         Config
	client      *http.Client
	backoffBase time.Duration // default time.Second; tests override to 1ms

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// Compile-time interface check.
var _ asr.Backend = (*Client)(nil)

// NewClient creates a new remote Whisper API client.
func NewClient(cfg Config) *Client {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 120
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Model == "" {
		cfg.Model = "base"
	}
	return &Client{
		cfg:         cfg,
		backoffBase: time.Second,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (c *Client) SetLogger(l *diaglog.Logger) {
	c.loggerMu.Lock()
	c.logger = l
	c.loggerMu.Unlock()
}

func (c *Client) log(entry diaglog.LogEntry) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l == nil {
		return
	}
	if entry.Component == "" {
		entry.Component = diaglog.ComponentRemoteWhisper
	}
	l.Log(entry)
}

// Name returns the backend identifier.
func (c *Client) Name() string {
	return "remote_whisper"
}

// transcribeResponse mirrors the JSON shape returned by the remote API.
type transcribeResponse struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Score float64 `json:"score"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Score float64 `json:"score"`
		} `json:"words"`
	} `json:"segments"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Model    string  `json:"model"`
}

// TranscribeFile sends the audio file to the remote Whisper API and returns
// a parsed Transcript. Retries on transient errors (5xx, network).
func (c *Client) TranscribeFile(filePath string, opts asr.TranscribeOptions) (*asr.Transcript, error) {
	model := opts.Model
	if model == "" {
		model = c.cfg.Model
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff(attempt)
			c.log(diaglog.LogEntry{
				Event:   diaglog.EventTranscribeRetry,
				Payload: map[string]interface{}{"attempt": attempt, "backoff_ms": backoff.Milliseconds()},
			})
			time.Sleep(backoff)
		}

		result, err := c.doTranscribe(filePath, model, opts)
		if err == nil {
			return result, nil
		}

		if !isRetryable(err) {
			return nil, fmt.Errorf("transcribe %s: %w", filepath.Base(filePath), err)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("transcribe %s: all %d retries exhausted: %w", filepath.Base(filePath), c.cfg.Retries, lastErr)
}

// doTranscribe performs a single multipart POST to the transcription endpoint.
func (c *Client) doTranscribe(filePath, model string, opts asr.TranscribeOptions) (*asr.Transcript, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	jobID := uuid.New().String()

	// Build multipart body through a pipe so large recordings stream
	// instead of buffering in memory.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()

		part, err := writer.CreateFormFile("file", filepath.Base(filePath))
		if err != nil {
			errCh <- fmt.Errorf("create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			errCh <- fmt.Errorf("copy audio data: %w", err)
			return
		}
		_ = writer.WriteField("job_id", jobID)
		_ = writer.WriteField("model", model)
		_ = writer.WriteField("language", opts.Language)
		if opts.WordTimestamps {
			_ = writer.WriteField("word_timestamps", "true")
		} else {
			_ = writer.WriteField("word_timestamps", "false")
		}

		errCh <- writer.Close()
	}()

	endpoint := c.cfg.BaseURL + "/v1/transcribe"
	req, err := http.NewRequest(http.MethodPost, endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	stopProgress := c.subscribeProgress(jobID)
	defer stopProgress()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	// Drain the multipart writer goroutine.
	if writeErr := <-errCh; writeErr != nil {
		return nil, fmt.Errorf("multipart write: %w", writeErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return nil, &retryableError{err: fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(body, 200))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	segments := make([]asr.Segment, len(parsed.Segments))
	for i, s := range parsed.Segments {
		seg := asr.Segment{
			Start: floatSecToDuration(s.Start),
			End:   floatSecToDuration(s.End),
			Text:  s.Text,
			Score: s.Score,
		}
		for _, w := range s.Words {
			seg.Words = append(seg.Words, asr.Word{
				Text:  w.Word,
				Start: floatSecToDuration(w.Start),
				End:   floatSecToDuration(w.End),
				Score: w.Score,
			})
		}
		segments[i] = seg
	}

	return &asr.Transcript{
		Segments:       segments,
		WordTimestamps: opts.WordTimestamps,
		Language:       parsed.Language,
		Duration:       floatSecToDuration(parsed.Duration),
		Model:          parsed.Model,
		Backend:        c.Name(),
	}, nil
}

// subscribeProgress dials the websocket progress stream for the given job
// and logs progress messages until the stream closes or stop is called.
// Progress is best effort: a failed dial never fails the transcription.
func (c *Client) subscribeProgress(jobID string) (stop func()) {
	if !c.cfg.Progress {
		return func() {}
	}

	wsURL, err := progressURL(c.cfg.BaseURL, jobID)
	if err != nil {
		return func() {}
	}

	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		c.log(diaglog.LogEntry{
			Event:   diaglog.EventRemoteProgress,
			Payload: map[string]interface{}{"job_id": jobID, "error": fmt.Sprintf("progress stream unavailable: %v", err)},
		})
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg struct {
				Stage   string  `json:"stage"`
				Percent float64 `json:"percent"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			c.log(diaglog.LogEntry{
				Event:   diaglog.EventRemoteProgress,
				Payload: map[string]interface{}{"job_id": jobID, "stage": msg.Stage, "percent": msg.Percent},
			})
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = conn.Close()
			<-done
		})
	}
}

// progressURL converts the HTTP base URL into the websocket progress URL.
func progressURL(baseURL, jobID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/progress"
	u.RawQuery = "job=" + jobID
	return u.String(), nil
}

// HealthCheck queries the remote API health endpoint.
func (c *Client) HealthCheck() (*asr.HealthStatus, error) {
	start := time.Now()
	endpoint := c.cfg.BaseURL + "/v1/health"

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return &asr.HealthStatus{
			Backend: c.Name(),
			Message: fmt.Sprintf("health check failed: %v", err),
			Latency: latency,
		}, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &asr.HealthStatus{
			Backend: c.Name(),
			Message: fmt.Sprintf("unhealthy: http %d: %s", resp.StatusCode, truncate(body, 200)),
			Latency: latency,
		}, nil
	}

	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &asr.HealthStatus{
			Backend: c.Name(),
			Message: fmt.Sprintf("invalid health response: %v", err),
			Latency: latency,
		}, nil
	}

	msg := "healthy"
	if !parsed.OK {
		msg = "service reports not ok"
	}

	return &asr.HealthStatus{
		OK:      parsed.OK,
		Backend: c.Name(),
		Message: msg,
		Latency: latency,
	}, nil
}

// retryableError wraps errors that should trigger a retry.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*retryableError)
	return ok
}

// backoff returns exponential backoff duration: base * 2^(attempt-1) + jitter.
func (c *Client) backoff(attempt int) time.Duration {
	base := c.backoffBase
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	// Jitter: 0–25% of delay.
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}

// floatSecToDuration converts fractional seconds to time.Duration.
func floatSecToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// truncate returns the first n bytes of body as a string.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
