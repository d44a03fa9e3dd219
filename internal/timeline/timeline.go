// Package timeline reads scene lists back from their text form.
package timeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/kikiluvv/shortreel/pkg/timecode"
)

// ErrMalformedTimelineLine marks a scene line that could not be parsed.
var ErrMalformedTimelineLine = errors.New("malformed timeline line")

// ErrUnknownScene is returned by Select for an index that is not present.
var ErrUnknownScene = errors.New("unknown scene")

const marker = "Scene "

// Scene is one parsed range. Start and End are kept exactly as written.
type Scene struct {
	Index int
	Start string
	End   string
	Line  int
}

// LineError describes a skipped scene line.
type LineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

func (e *LineError) Unwrap() error { return ErrMalformedTimelineLine }

// Timeline is the result of parsing a scene list.
type Timeline struct {
	Scenes    []Scene
	Malformed []*LineError
}

// Err joins every malformed-line error, or returns nil.
func (t Timeline) Err() error {
	errs := make([]error, len(t.Malformed))
	for i, e := range t.Malformed {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Parse extracts scene ranges from text. Lines that do not start with the
// scene marker are ignored. Marker lines take the fifth token as the start
// timecode and the last token as the end; lines lacking either, or whose
// tokens are not timecodes, are recorded in Malformed and skipped. Parsed
// scenes are numbered by their position among the parsed lines.
func Parse(text string) Timeline {
	t, _ := ParseReader(strings.NewReader(text))
	return t
}

// ParseReader is Parse over a stream.
func ParseReader(r io.Reader) (Timeline, error) {
	var t Timeline
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, marker) {
			continue
		}
		scene, lerr := parseLine(lineNo, line)
		if lerr != nil {
			t.Malformed = append(t.Malformed, lerr)
			continue
		}
		scene.Index = len(t.Scenes) + 1
		t.Scenes = append(t.Scenes, scene)
	}
	if err := scanner.Err(); err != nil {
		return t, fmt.Errorf("read timeline: %w", err)
	}
	return t, nil
}

func parseLine(lineNo int, line string) (Scene, *LineError) {
	tokens := strings.Fields(line)
	if len(tokens) < 6 {
		return Scene{}, &LineError{Line: lineNo, Text: line, Reason: "missing start or end timecode"}
	}
	start, end := tokens[4], tokens[len(tokens)-1]
	if _, err := timecode.Parse(start); err != nil {
		return Scene{}, &LineError{Line: lineNo, Text: line, Reason: "bad start: " + err.Error()}
	}
	if _, err := timecode.Parse(end); err != nil {
		return Scene{}, &LineError{Line: lineNo, Text: line, Reason: "bad end: " + err.Error()}
	}
	return Scene{Start: start, End: end, Line: lineNo}, nil
}

// Select returns the scenes with the given 1-based indices in ascending
// order. An empty selection returns every scene.
func Select(scenes []Scene, indices []int) ([]Scene, error) {
	if len(indices) == 0 {
		return scenes, nil
	}
	byIndex := make(map[int]Scene, len(scenes))
	for _, s := range scenes {
		byIndex[s.Index] = s
	}

	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	out := make([]Scene, 0, len(sorted))
	for i, idx := range sorted {
		if i > 0 && sorted[i-1] == idx {
			continue
		}
		s, ok := byIndex[idx]
		if !ok {
			return nil, fmt.Errorf("%w: %d (have %d scenes)", ErrUnknownScene, idx, len(scenes))
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseSelection parses a comma-separated list of scene indices such as
// "1,3,4".
func ParseSelection(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid scene index %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}
