package testutil

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Failure modes for the mock remote Whisper server.
const (
	ModeNormal     = "normal"
	ModeServerErr  = "server_error"
	ModeBadRequest = "bad_request"
	ModeTimeout    = "timeout"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MockWhisperServer simulates a remote Whisper transcription API:
// POST /v1/transcribe, GET /v1/health, and a websocket progress stream
// on /v1/progress.
type MockWhisperServer struct {
	listener net.Listener
	server   *http.Server

	mu             sync.Mutex
	mode           string
	response       string
	healthy        bool
	requests       int
	lastJobID      string
	progressStages []string
}

// NewMockWhisper creates a mock server with a canned single-segment
// response and a healthy health endpoint.
func NewMockWhisper() *MockWhisperServer {
	return &MockWhisperServer{
		mode:    ModeNormal,
		healthy: true,
		response: `{
			"segments": [{"start": 0.0, "end": 1.0, "text": " Hello world", "score": 0.95}],
			"language": "en",
			"duration": 1.0,
			"model": "base"
		}`,
		progressStages: []string{"upload", "decode", "transcribe"},
	}
}

// Start begins listening on a dynamic local port.
func (m *MockWhisperServer) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("mock whisper: listen: %w", err)
	}
	m.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/transcribe", m.handleTranscribe)
	mux.HandleFunc("/v1/health", m.handleHealth)
	mux.HandleFunc("/v1/progress", m.handleProgress)
	m.server = &http.Server{Handler: mux}

	go func() {
		_ = m.server.Serve(m.listener)
	}()
	return nil
}

// Stop shuts the server down.
func (m *MockWhisperServer) Stop() {
	if m.server != nil {
		_ = m.server.Close()
	}
	if m.listener != nil {
		_ = m.listener.Close()
	}
}

// URL returns the server's HTTP base URL.
func (m *MockWhisperServer) URL() string {
	if m.listener == nil {
		return ""
	}
	return "http://" + m.listener.Addr().String()
}

// SetFailureMode configures how /v1/transcribe responds.
func (m *MockWhisperServer) SetFailureMode(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// SetResponse replaces the canned transcription response body.
func (m *MockWhisperServer) SetResponse(body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = body
}

// SetHealthy controls the /v1/health answer.
func (m *MockWhisperServer) SetHealthy(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = ok
}

// Requests returns the number of transcribe calls seen so far.
func (m *MockWhisperServer) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// LastJobID returns the job_id field of the most recent transcribe call.
func (m *MockWhisperServer) LastJobID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastJobID
}

func (m *MockWhisperServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	_ = r.ParseMultipartForm(32 << 20)

	m.mu.Lock()
	m.requests++
	m.lastJobID = r.FormValue("job_id")
	mode := m.mode
	body := m.response
	m.mu.Unlock()

	switch mode {
	case ModeServerErr:
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": "internal failure"}`)
	case ModeBadRequest:
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "unsupported audio"}`)
	case ModeTimeout:
		time.Sleep(7 * time.Second)
		fallthrough
	default:
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func (m *MockWhisperServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	healthy := m.healthy
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		fmt.Fprint(w, `{"ok": true}`)
		return
	}
	fmt.Fprint(w, `{"ok": false}`)
}

// handleProgress streams one message per configured stage, then closes.
func (m *MockWhisperServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	m.mu.Lock()
	stages := append([]string(nil), m.progressStages...)
	m.mu.Unlock()

	for i, stage := range stages {
		msg := map[string]interface{}{
			"stage":   stage,
			"percent": float64(i+1) / float64(len(stages)) * 100,
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
