package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ajornet/scriber/internal/asr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTranscript() *asr.Transcript {
	return &asr.Transcript{
		Segments: []asr.Segment{
			{Start: 0, End: time.Second, Text: " Hello world", Words: []asr.Word{
				{Text: "Hello", Start: 200 * time.Millisecond, End: 500 * time.Millisecond},
				{Text: "world", Start: 800 * time.Millisecond, End: time.Second},
			}},
		},
		WordTimestamps: true,
		Language:       "en",
		Duration:       time.Second,
		Model:          "base",
		Backend:        "local_whisper",
	}
}

func TestKeyContentNotPath(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.m4a")
	b := filepath.Join(dir, "b.m4a")
	if err := os.WriteFile(a, []byte("same audio"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("same audio"), 0644); err != nil {
		t.Fatal(err)
	}

	ka, err := Key(a, "local_whisper", "base", true)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	kb, err := Key(b, "local_whisper", "base", true)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if ka != kb {
		t.Error("identical content should produce identical keys")
	}
	if !strings.HasSuffix(ka, ":local_whisper:base:words") {
		t.Errorf("key should embed parameters: %q", ka)
	}
}

func TestKeyVariesWithParameters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.m4a")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	base, _ := Key(path, "local_whisper", "base", true)
	otherModel, _ := Key(path, "local_whisper", "small", true)
	noWords, _ := Key(path, "local_whisper", "base", false)

	if base == otherModel {
		t.Error("model should be part of the key")
	}
	if base == noWords {
		t.Error("word timestamp flag should be part of the key")
	}
}

func TestKeyMissingFile(t *testing.T) {
	_, err := Key(filepath.Join(t.TempDir(), "nope.m4a"), "local_whisper", "base", false)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestGetMiss(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get("nope")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("want ErrMiss, got %v", err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := sampleTranscript()

	if err := s.Put("k1", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get("k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Backend != want.Backend || got.Model != want.Model {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if !got.WordTimestamps {
		t.Error("WordTimestamps flag lost")
	}
	if len(got.AllWords()) != 2 {
		t.Errorf("expected 2 words, got %d", len(got.AllWords()))
	}
	if got.Segments[0].Words[0].Start != 200*time.Millisecond {
		t.Errorf("word timing lost: %v", got.Segments[0].Words[0].Start)
	}
}

func TestPutReplacesExisting(t *testing.T) {
	s := openTestStore(t)

	first := sampleTranscript()
	if err := s.Put("k1", first); err != nil {
		t.Fatal(err)
	}

	second := sampleTranscript()
	second.Model = "small"
	if err := s.Put("k1", second); err != nil {
		t.Fatalf("Put over existing key: %v", err)
	}

	got, err := s.Get("k1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != "small" {
		t.Errorf("expected replacement to win, got model %q", got.Model)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Put("k", sampleTranscript()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("k1", sampleTranscript()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.Get("k1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Backend != "local_whisper" {
		t.Errorf("unexpected backend %q", got.Backend)
	}
}
