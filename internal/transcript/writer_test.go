package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ajornet/scriber/internal/asr"
)

func subtitleTranscript() *asr.Transcript {
	return &asr.Transcript{
		Segments: []asr.Segment{
			{Start: 0, End: 5*time.Second + 230*time.Millisecond, Text: "Hello, welcome back."},
			{Start: 5*time.Second + 500*time.Millisecond, End: 10*time.Second + 100*time.Millisecond, Text: "Today we cover bucketing."},
		},
		Language: "en",
		Duration: 10*time.Second + 100*time.Millisecond,
		Model:    "base",
		Backend:  "local_whisper",
	}
}

func tmpPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

func TestWriteText(t *testing.T) {
	path := tmpPath(t, "out.txt")

	if err := WriteText(path, "[0:00] Hello world\n[0:02] there"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)
	want := "[0:00] Hello world\n[0:02] there\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestWriteTextEmptyContent(t *testing.T) {
	path := tmpPath(t, "empty.txt")

	if err := WriteText(path, ""); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty file, got %q", string(data))
	}
}

func TestWriteTextLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	if err := WriteText(path, "content"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteSRT(t *testing.T) {
	path := tmpPath(t, "out.srt")

	if err := WriteSRT(path, subtitleTranscript()); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)

	if !strings.HasPrefix(got, "1\n") {
		t.Errorf("SRT should start with cue number 1; got:\n%s", got)
	}
	if !strings.Contains(got, "00:00:00,000 --> 00:00:05,230") {
		t.Errorf("missing first SRT timestamp; got:\n%s", got)
	}
	if !strings.Contains(got, "00:00:05,500 --> 00:00:10,100") {
		t.Errorf("missing second SRT timestamp; got:\n%s", got)
	}
	if !strings.Contains(got, "\n2\n") {
		t.Errorf("missing cue number 2; got:\n%s", got)
	}
	if !strings.Contains(got, "Today we cover bucketing.") {
		t.Errorf("missing second cue text; got:\n%s", got)
	}
}

func TestWriteSRTSkipsEmptySegments(t *testing.T) {
	path := tmpPath(t, "out.srt")
	tr := subtitleTranscript()
	tr.Segments = append([]asr.Segment{{Start: 0, End: time.Second, Text: "  "}}, tr.Segments...)

	if err := WriteSRT(path, tr); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "1\n00:00:00,000") {
		t.Errorf("cue numbering should skip the blank segment; got:\n%s", string(data))
	}
}

func TestWriteVTT(t *testing.T) {
	path := tmpPath(t, "out.vtt")

	if err := WriteVTT(path, subtitleTranscript()); err != nil {
		t.Fatalf("WriteVTT: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)

	if !strings.HasPrefix(got, "WEBVTT\n") {
		t.Errorf("VTT should start with WEBVTT header; got:\n%s", got)
	}
	if !strings.Contains(got, "00:00:00.000 --> 00:00:05.230") {
		t.Errorf("missing first VTT timestamp; got:\n%s", got)
	}
	if !strings.Contains(got, "Hello, welcome back.") {
		t.Errorf("missing first cue text; got:\n%s", got)
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "talk")
	tr := subtitleTranscript()

	err := WriteAll(base, tr, []string{"txt", "srt", "vtt"}, RenderOptions{Timestamps: TimestampsNone})
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	for _, ext := range []string{".txt", ".srt", ".vtt"} {
		if _, err := os.Stat(base + ext); err != nil {
			t.Errorf("expected %s to exist: %v", base+ext, err)
		}
	}

	data, _ := os.ReadFile(base + ".txt")
	if !strings.Contains(string(data), "Hello, welcome back. Today we cover bucketing.") {
		t.Errorf("txt output not rendered in plain mode: %q", string(data))
	}
}

func TestWriteAllDefaultsToText(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "talk")

	if err := WriteAll(base, subtitleTranscript(), nil, RenderOptions{}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if _, err := os.Stat(base + ".txt"); err != nil {
		t.Errorf("expected default txt output: %v", err)
	}
	if _, err := os.Stat(base + ".srt"); err == nil {
		t.Error("srt should not be written by default")
	}
}

func TestWriteAllUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "talk")

	err := WriteAll(base, subtitleTranscript(), []string{"pdf"}, RenderOptions{})
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), "pdf") {
		t.Errorf("error should name the offending format: %v", err)
	}
}
