// Package pidfile guards watch mode against concurrent instances
// fighting over the same recordings directory.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Lock is a held PID file.
type Lock struct {
	path string
	pid  int
}

// Acquire writes the current PID to path. Fails when another live
// process already holds the file; a stale file from a dead process is
// removed and replaced.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("pidfile: create directory: %w", err)
	}

	if data, err := os.ReadFile(path); err == nil {
		if existing, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil {
			if alive(existing) {
				return nil, fmt.Errorf("pidfile: another instance is already running (PID %d)", existing)
			}
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("pidfile: remove stale file: %w", err)
			}
		}
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("pidfile: write: %w", err)
	}

	return &Lock{path: path, pid: pid}, nil
}

// Release removes the PID file, but only if it still holds our PID.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil
	}
	if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid == l.pid {
		return os.Remove(l.path)
	}
	return nil
}

// DefaultPath returns the conventional PID file location for app.
func DefaultPath(app string) string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "scriber", app+".pid")
}

// alive reports whether a process with the given PID exists. Signal 0
// probes without delivering anything.
func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists under another user.
	return err == syscall.EPERM
}
