// Package watcher monitors a directory for newly finished recordings and
// hands them to a handler for transcription.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ajornet/scriber/internal/diaglog"
	"github.com/ajornet/scriber/internal/mediafile"
)

// Handler receives the path of a media file once it has settled.
type Handler func(path string)

// Config configures a directory watcher.
type Config struct {
	Dir          string
	SettleDelay  time.Duration // wait after the last write before handling; default 500ms
	PollInterval time.Duration // fallback scan interval; default 2s
}

// Watcher watches a directory for new media files. It prefers fsnotify
// events and falls back to modtime polling when the notifier is
// unavailable. Recorders write files incrementally, so a file is handled
// only after no write has been seen for SettleDelay.
type Watcher struct {
	cfg     Config
	handler Handler
	logger  *diaglog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	handled map[string]time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a watcher for cfg.Dir. The handler is invoked from the
// watcher goroutine, one file at a time.
func New(cfg Config, handler Handler) (*Watcher, error) {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watcher: %s is not a directory", cfg.Dir)
	}
	if handler == nil {
		return nil, fmt.Errorf("watcher: handler is required")
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Watcher{
		cfg:     cfg,
		handler: handler,
		pending: make(map[string]*time.Timer),
		handled: make(map[string]time.Time),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// SetLogger injects a diaglog.Logger for debug event logging.
func (w *Watcher) SetLogger(l *diaglog.Logger) {
	w.logger = l
}

func (w *Watcher) log(event string, payload map[string]interface{}) {
	if w.logger == nil {
		return
	}
	w.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentWatcher,
		Event:     event,
		Payload:   payload,
	})
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.run()
}

// Stop shuts the watcher down and waits for the goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done

	w.mu.Lock()
	for _, timer := range w.pending {
		timer.Stop()
	}
	w.pending = make(map[string]*time.Timer)
	w.mu.Unlock()
}

func (w *Watcher) run() {
	defer close(w.done)

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		w.log(diaglog.EventWatchPollFallback, map[string]interface{}{"error": err.Error()})
		w.runPolling()
		return
	}
	defer notifier.Close()

	if err := notifier.Add(w.cfg.Dir); err != nil {
		w.log(diaglog.EventWatchPollFallback, map[string]interface{}{"error": err.Error()})
		w.runPolling()
		return
	}

	for {
		select {
		case event, ok := <-notifier.Events:
			if !ok {
				w.runPolling()
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-notifier.Errors:
			if !ok {
				w.runPolling()
				return
			}
			w.log(diaglog.EventWatchError, map[string]interface{}{"error": err.Error()})

		case <-w.stop:
			return
		}
	}
}

// runPolling scans the directory on a ticker, picking up files whose
// modtime is newer than the last handling.
func (w *Watcher) runPolling() {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			entries, err := os.ReadDir(w.cfg.Dir)
			if err != nil {
				w.log(diaglog.EventWatchError, map[string]interface{}{"error": err.Error()})
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				path := filepath.Join(w.cfg.Dir, entry.Name())
				info, err := entry.Info()
				if err != nil {
					continue
				}
				w.mu.Lock()
				_, isPending := w.pending[path]
				last, seen := w.handled[path]
				w.mu.Unlock()
				// A pending timer must not be reset from the poll loop or a
				// tick interval at or below the settle delay starves it.
				if isPending || (seen && !info.ModTime().After(last)) {
					continue
				}
				w.schedule(path)
			}

		case <-w.stop:
			return
		}
	}
}

// schedule queues path for handling after the settle delay. Another write
// before the delay elapses resets the timer, so a file still being
// recorded is not picked up mid-write.
func (w *Watcher) schedule(path string) {
	if !mediafile.Supported(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.cfg.SettleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.SettleDelay, func() {
		w.settle(path)
	})
}

func (w *Watcher) settle(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	select {
	case <-w.stop:
		return
	default:
	}

	info, err := os.Stat(path)
	if err != nil {
		// Deleted before it settled.
		return
	}

	w.mu.Lock()
	w.handled[path] = info.ModTime()
	w.mu.Unlock()

	w.log(diaglog.EventWatchFile, map[string]interface{}{"file": path, "size": info.Size()})
	w.handler(path)
}
