package asr

import (
	"fmt"
	"sync"
)

// Registry manages the configured transcription backends and routes a
// request through the primary backend with an optional fallback.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	primary  string
	fallback string
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend under name. The first registered backend becomes
// the primary until SetPrimary says otherwise.
func (r *Registry) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
	if r.primary == "" {
		r.primary = name
	}
}

// SetPrimary selects the primary backend by name.
func (r *Registry) SetPrimary(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = name
}

// SetFallback selects the fallback backend by name. An empty name disables
// fallback.
func (r *Registry) SetFallback(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = name
}

// Get returns a backend by name, or false if it was never registered.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Primary returns the primary backend, or nil if none is configured.
func (r *Registry) Primary() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backends[r.primary]
}

// Fallback returns the fallback backend, or nil if none is configured.
func (r *Registry) Fallback() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fallback == "" {
		return nil
	}
	return r.backends[r.fallback]
}

// Backends returns the names of all registered backends.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}

// Transcribe runs the primary backend and, if it fails and a fallback is
// configured, the fallback. The first error is preserved in the wrapped
// message so the cause of the failover remains visible.
func (r *Registry) Transcribe(filePath string, opts TranscribeOptions) (*Transcript, error) {
	primary := r.Primary()
	if primary == nil {
		return nil, fmt.Errorf("asr: no primary backend configured")
	}

	transcript, err := primary.TranscribeFile(filePath, opts)
	if err == nil {
		return transcript, nil
	}

	fallback := r.Fallback()
	if fallback == nil {
		return nil, fmt.Errorf("asr: backend %q failed: %w", r.primary, err)
	}

	transcript, fbErr := fallback.TranscribeFile(filePath, opts)
	if fbErr != nil {
		return nil, fmt.Errorf("asr: backend %q failed (%v), fallback %q also failed: %w", r.primary, err, r.fallback, fbErr)
	}
	return transcript, nil
}
