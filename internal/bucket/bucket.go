// Package bucket groups timestamped words into fixed-width time windows
// and renders one transcript line per non-empty window.
//
// The timeline is partitioned into consecutive half-open intervals
// [k*width, (k+1)*width) starting at zero. A word belongs to the interval
// containing its floored start second. Intervals without words produce no
// output line; the cursor still advances past them, so a long silence
// never shifts later windows.
package bucket

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ajornet/scriber/internal/asr"
)

// Line is one rendered transcript line: a timestamp label and the joined
// text of a single non-empty window.
type Line struct {
	Label string
	Text  string
}

func (l Line) String() string {
	return l.Label + " " + l.Text
}

// Lines partitions words into windows of width seconds and returns one
// line per non-empty window, in window order.
//
// Words are expected in non-decreasing start order. The function never
// re-sorts and never fails: a word whose floored start lies behind the
// advancing cursor is dropped rather than re-opening a flushed window,
// and negative start times are clamped to the first second. A width
// below one is treated as one.
func Lines(words []asr.Word, width int) []Line {
	if width < 1 {
		width = 1
	}

	var (
		out     []Line
		current []string
		start   int // first second of the open window
	)
	flush := func() {
		text := strings.TrimSpace(strings.Join(current, " "))
		current = current[:0]
		if text == "" {
			// Whitespace-only windows are dropped, same as empty ones.
			return
		}
		out = append(out, Line{Label: label(start, width), Text: text})
	}

	for _, w := range words {
		sec := floorSec(w.Start)
		// A silent gap can span several windows; every empty one is
		// skipped without emitting a line, and the cursor must land on
		// the window containing this word before it is appended.
		for sec >= start+width {
			flush()
			start += width
		}
		if sec >= start {
			current = append(current, strings.TrimSpace(w.Text))
		}
	}
	flush()
	return out
}

// SegmentLines renders one line per segment using the segment's own
// timestamps. This is the degraded-precision path for transcripts without
// word-level timings; the window width plays no part here. With ranged
// set, each label shows the segment's first and last whole second,
// otherwise only the start.
func SegmentLines(segs []asr.Segment, ranged bool) []Line {
	var out []Line
	for _, s := range segs {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		first := floorSec(s.Start)
		lbl := "[" + clock(first) + "]"
		if ranged {
			lbl = "[" + clock(first) + " - " + clock(lastSec(first, s.End)) + "]"
		}
		out = append(out, Line{Label: lbl, Text: text})
	}
	return out
}

// Render joins lines with newlines. No trailing newline is added.
func Render(lines []Line) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n")
}

// label renders a window label: "[M:SS]" for width one, "[M:SS - M:SS]"
// otherwise. The displayed end is the last second inside the window, not
// the exclusive boundary.
func label(start, width int) string {
	if width == 1 {
		return "[" + clock(start) + "]"
	}
	return "[" + clock(start) + " - " + clock(start+width-1) + "]"
}

// clock formats whole seconds as minutes:seconds, minutes unbounded.
func clock(sec int) string {
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}

// floorSec returns the whole second containing d, clamping negative
// timestamps to zero.
func floorSec(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// lastSec returns the last whole second strictly before end, never
// earlier than first. A segment ending exactly on a boundary displays the
// second before it: end 3.0s renders as 0:02.
func lastSec(first int, end time.Duration) int {
	last := int(math.Ceil(end.Seconds())) - 1
	if last < first {
		return first
	}
	return last
}
