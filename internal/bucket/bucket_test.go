package bucket

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ajornet/scriber/internal/asr"
)

// w builds a word from fractional start/end seconds.
func w(text string, start, end float64) asr.Word {
	return asr.Word{
		Text:  text,
		Start: time.Duration(start * float64(time.Second)),
		End:   time.Duration(end * float64(time.Second)),
	}
}

func TestLinesPerSecond(t *testing.T) {
	words := []asr.Word{
		w("Hello", 0.2, 0.5),
		w("world", 0.8, 1.0),
		w("there", 2.3, 2.6),
	}

	got := Render(Lines(words, 1))
	want := "[0:00] Hello world\n[0:02] there"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestLinesSnippetWidth(t *testing.T) {
	words := []asr.Word{
		w("one", 0, 0.37),
		w("two", 4.9, 5.1),
		w("three", 6, 6.2),
	}

	got := Render(Lines(words, 5))
	want := "[0:00 - 0:04] one two\n[0:05 - 0:09] three"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestLinesBoundaryWordOpensNewWindow(t *testing.T) {
	// A word starting exactly on a window boundary belongs to the window
	// beginning there, not the preceding one.
	words := []asr.Word{
		w("before", 0.5, 0.9),
		w("after", 1.0, 1.4),
	}

	got := Render(Lines(words, 1))
	want := "[0:00] before\n[0:01] after"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestLinesGapSpansMultipleWindows(t *testing.T) {
	// Seconds 1 through 59 are silent; no empty lines in between, and the
	// later window keeps its absolute position.
	words := []asr.Word{
		w("start", 0.1, 0.3),
		w("end", 60.0, 60.4),
	}

	got := Render(Lines(words, 1))
	want := "[0:00] start\n[1:00] end"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestLinesMinutesRollover(t *testing.T) {
	words := []asr.Word{w("late", 125.0, 125.5)}

	got := Render(Lines(words, 5))
	want := "[2:05 - 2:09] late"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestLinesWindowStartsAreMultiplesOfWidth(t *testing.T) {
	words := []asr.Word{
		w("a", 1.2, 1.4),
		w("b", 7.7, 7.9),
		w("c", 23.0, 23.5),
		w("d", 23.9, 24.1),
	}

	for _, width := range []int{1, 2, 3, 5, 7, 10} {
		prev := -1
		for _, line := range Lines(words, width) {
			start := parseLabelStart(t, line.Label)
			if start%width != 0 {
				t.Errorf("width %d: label start %d is not a multiple of the width", width, start)
			}
			if start <= prev {
				t.Errorf("width %d: window starts not strictly increasing: %d after %d", width, start, prev)
			}
			prev = start
		}
	}
}

func TestLinesIdempotent(t *testing.T) {
	words := []asr.Word{
		w("alpha", 0.5, 0.8),
		w("beta", 3.2, 3.6),
		w("gamma", 11.0, 11.3),
	}

	first := Render(Lines(words, 5))
	second := Render(Lines(words, 5))
	if first != second {
		t.Errorf("renders differ:\n%q\n%q", first, second)
	}
}

func TestLinesWhitespaceOnlyWindowDropped(t *testing.T) {
	words := []asr.Word{
		w("  ", 0.1, 0.2),
		w("\t", 0.5, 0.6),
		w("spoken", 2.0, 2.4),
	}

	lines := Lines(words, 1)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Label != "[0:02]" || lines[0].Text != "spoken" {
		t.Errorf("unexpected line: %q", lines[0].String())
	}
	for _, l := range lines {
		if strings.TrimSpace(l.Text) == "" {
			t.Errorf("emitted line with empty text: %q", l.String())
		}
	}
}

func TestLinesEmptyInput(t *testing.T) {
	if got := Lines(nil, 1); len(got) != 0 {
		t.Errorf("expected no lines for empty input, got %d", len(got))
	}
	if got := Render(Lines(nil, 5)); got != "" {
		t.Errorf("expected empty render, got %q", got)
	}
}

func TestLinesNegativeStartClampedToFirstWindow(t *testing.T) {
	words := []asr.Word{
		w("early", -1.2, -0.8),
		w("ontime", 0.3, 0.6),
	}

	got := Render(Lines(words, 1))
	want := "[0:00] early ontime"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestLinesOutOfOrderWordDoesNotCrash(t *testing.T) {
	// A word behind the cursor is dropped; everything else stays put.
	words := []asr.Word{
		w("first", 0.2, 0.4),
		w("third", 10.0, 10.3),
		w("second", 4.0, 4.2),
		w("fourth", 10.5, 10.8),
	}

	got := Render(Lines(words, 1))
	want := "[0:00] first\n[0:10] third fourth"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestLinesWidthBelowOneTreatedAsOne(t *testing.T) {
	words := []asr.Word{w("hi", 0.1, 0.2)}

	got := Render(Lines(words, 0))
	want := "[0:00] hi"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSegmentLinesRanged(t *testing.T) {
	segs := []asr.Segment{
		{Start: 0, End: 3 * time.Second, Text: "Hi there"},
	}

	got := Render(SegmentLines(segs, true))
	want := "[0:00 - 0:02] Hi there"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSegmentLinesPlain(t *testing.T) {
	segs := []asr.Segment{
		{Start: 1200 * time.Millisecond, End: 4 * time.Second, Text: " Welcome back. "},
		{Start: 65 * time.Second, End: 68 * time.Second, Text: "Moving on."},
	}

	got := Render(SegmentLines(segs, false))
	want := "[0:01] Welcome back.\n[1:05] Moving on."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSegmentLinesFractionalEnd(t *testing.T) {
	segs := []asr.Segment{
		{Start: 0, End: 2500 * time.Millisecond, Text: "short"},
	}

	got := Render(SegmentLines(segs, true))
	want := "[0:00 - 0:02] short"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSegmentLinesEndBeforeStartClamped(t *testing.T) {
	segs := []asr.Segment{
		{Start: 5 * time.Second, End: 5 * time.Second, Text: "blip"},
	}

	got := Render(SegmentLines(segs, true))
	want := "[0:05 - 0:05] blip"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSegmentLinesSkipsEmptySegments(t *testing.T) {
	segs := []asr.Segment{
		{Start: 0, End: time.Second, Text: "   "},
		{Start: 2 * time.Second, End: 3 * time.Second, Text: "kept"},
	}

	lines := SegmentLines(segs, false)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].Text != "kept" {
		t.Errorf("expected %q, got %q", "kept", lines[0].Text)
	}
}

// parseLabelStart extracts the first timestamp of a label as whole seconds.
func parseLabelStart(t *testing.T, lbl string) int {
	t.Helper()
	trimmed := strings.TrimPrefix(lbl, "[")
	if i := strings.IndexAny(trimmed, " ]"); i >= 0 {
		trimmed = trimmed[:i]
	}
	parts := strings.SplitN(trimmed, ":", 2)
	if len(parts) != 2 {
		t.Fatalf("malformed label %q", lbl)
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil {
		t.Fatalf("malformed minutes in label %q: %v", lbl, err)
	}
	s, err := strconv.Atoi(parts[1])
	if err != nil {
		t.Fatalf("malformed seconds in label %q: %v", lbl, err)
	}
	return m*60 + s
}
