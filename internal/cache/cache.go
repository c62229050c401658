// Package cache stores finished transcripts in a local SQLite database,
// keyed by a BLAKE3 digest of the audio content plus the transcription
// parameters, so repeat runs over the same recording skip the backend.
package cache

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"lukechampine.com/blake3"

	"github.com/ajornet/scriber/internal/asr"
	"github.com/ajornet/scriber/internal/diaglog"
)

// ErrMiss is returned by Get when no entry exists for the key.
var ErrMiss = errors.New("cache: miss")

// Store is a SQLite-backed transcript cache.
type Store struct {
	db     *sql.DB
	logger *diaglog.Logger
}

// Open opens (or creates) the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cache: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	_, err = db.Exec(`
	PRAGMA busy_timeout  = 10000;
	PRAGMA journal_mode  = WAL;
	PRAGMA synchronous   = NORMAL;
	PRAGMA temp_store    = MEMORY;

	create table if not exists transcripts (
		key        text primary key not null,
		backend    text not null,
		model      text not null,
		created_at text not null,
		payload    text not null
	);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SetLogger injects a diaglog.Logger for debug event logging.
func (s *Store) SetLogger(l *diaglog.Logger) {
	s.logger = l
}

func (s *Store) log(event string, payload map[string]interface{}) {
	if s.logger == nil {
		return
	}
	s.logger.Log(diaglog.LogEntry{
		Component: diaglog.ComponentCache,
		Event:     event,
		Payload:   payload,
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key derives the cache key for a media file transcribed with the given
// parameters. The file content is hashed, not its path, so moved or
// renamed recordings still hit.
func Key(mediaPath, backend, model string, wordTimestamps bool) (string, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return "", fmt.Errorf("cache: open media file: %w", err)
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cache: hash media file: %w", err)
	}
	digest := hex.EncodeToString(h.Sum(nil))

	wt := "plain"
	if wordTimestamps {
		wt = "words"
	}
	return strings.Join([]string{digest, backend, model, wt}, ":"), nil
}

// Get returns the cached transcript for key, or ErrMiss.
func (s *Store) Get(key string) (*asr.Transcript, error) {
	var payload string
	err := s.db.QueryRow("select payload from transcripts where key = $1", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		s.log(diaglog.EventCacheMiss, map[string]interface{}{"key": key})
		return nil, ErrMiss
	}
	if err != nil {
		s.log(diaglog.EventCacheError, map[string]interface{}{"key": key, "error": err.Error()})
		return nil, fmt.Errorf("cache: get: %w", err)
	}

	var t asr.Transcript
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		s.log(diaglog.EventCacheError, map[string]interface{}{"key": key, "error": err.Error()})
		return nil, fmt.Errorf("cache: decode payload: %w", err)
	}

	s.log(diaglog.EventCacheHit, map[string]interface{}{"key": key, "backend": t.Backend})
	return &t, nil
}

// Put stores a transcript under key, replacing any previous entry.
func (s *Store) Put(key string, t *asr.Transcript) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("cache: encode payload: %w", err)
	}

	_, err = s.db.Exec(
		"insert into transcripts (key, backend, model, created_at, payload) values ($1, $2, $3, $4, $5) on conflict (key) do update set payload = excluded.payload, created_at = excluded.created_at",
		key, t.Backend, t.Model, time.Now().UTC().Format(time.RFC3339), string(payload),
	)
	if err != nil {
		s.log(diaglog.EventCacheError, map[string]interface{}{"key": key, "error": err.Error()})
		return fmt.Errorf("cache: put: %w", err)
	}

	s.log(diaglog.EventCacheStore, map[string]interface{}{"key": key, "backend": t.Backend})
	return nil
}
