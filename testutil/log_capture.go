// Package testutil holds shared test doubles: a mock remote Whisper
// server and log/stdout capture helpers.
package testutil

import (
	"bytes"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogCapture redirects the standard logger into a buffer.
type LogCapture struct {
	buf      bytes.Buffer
	mu       sync.Mutex
	original io.Writer
}

// NewLogCapture creates a capture that remembers the current log writer.
func NewLogCapture() *LogCapture {
	return &LogCapture{original: log.Writer()}
}

// Start begins capturing log output.
func (lc *LogCapture) Start() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	log.SetOutput(&lc.buf)
}

// Stop restores the original log writer.
func (lc *LogCapture) Stop() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	log.SetOutput(lc.original)
}

// String returns everything captured so far.
func (lc *LogCapture) String() string {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.buf.String()
}

// Contains reports whether the captured output contains substr.
func (lc *LogCapture) Contains(substr string) bool {
	return strings.Contains(lc.String(), substr)
}

// Lines returns the captured output split into lines.
func (lc *LogCapture) Lines() []string {
	content := strings.TrimSpace(lc.String())
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

// StdoutCapture temporarily redirects os.Stdout through a pipe.
type StdoutCapture struct {
	buf      bytes.Buffer
	mu       sync.Mutex
	original *os.File
	r, w     *os.File
	done     chan struct{}
}

// NewStdoutCapture creates a stdout capture instance.
func NewStdoutCapture() *StdoutCapture {
	return &StdoutCapture{original: os.Stdout}
}

// Start begins capturing stdout.
func (sc *StdoutCapture) Start() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var err error
	sc.r, sc.w, err = os.Pipe()
	if err != nil {
		return err
	}
	os.Stdout = sc.w

	sc.done = make(chan struct{})
	go func() {
		defer close(sc.done)
		_, _ = io.Copy(&sc.buf, sc.r)
	}()
	return nil
}

// Stop restores stdout and returns the captured content.
func (sc *StdoutCapture) Stop() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.w != nil {
		_ = sc.w.Close()
	}
	os.Stdout = sc.original
	if sc.done != nil {
		<-sc.done
	}
	if sc.r != nil {
		_ = sc.r.Close()
	}
	return sc.buf.String()
}
