package filter

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/kikiluvv/shortreel/internal/predicate"
	"github.com/kikiluvv/shortreel/pkg/timecode"
)

// ExclusionRecord is the decision made for one input frame.
type ExclusionRecord struct {
	FrameIndex int
	Timestamp  float64
	Kept       bool
	Reasons    []predicate.Reason
}

const (
	deletedPrefix = "Deleted frame at time "
	savedPrefix   = "Saved frame at time "
	reasonsLabel  = "Reasons: "
	keptReason    = "Reason: Quality above threshold."
	reasonSep     = ", "
)

// Line renders rec as an exclusion-log line without the trailing newline.
// Kept frames only produce a line when logKept is set.
func (rec ExclusionRecord) Line(logKept bool) (string, bool) {
	if rec.Kept {
		if !logKept {
			return "", false
		}
		return fmt.Sprintf("%s%.2f seconds. %s", savedPrefix, rec.Timestamp, keptReason), true
	}
	msgs := make([]string, len(rec.Reasons))
	for i, r := range rec.Reasons {
		msgs[i] = r.Message()
	}
	return fmt.Sprintf("%s%.2f seconds. %s%s", deletedPrefix, rec.Timestamp, reasonsLabel, strings.Join(msgs, reasonSep)), true
}

// LogWriter writes exclusion records as they are decided, one complete line
// per underlying Write.
type LogWriter struct {
	w       io.Writer
	logKept bool
	lines   int
}

// NewLogWriter wraps w.
func NewLogWriter(w io.Writer, logKept bool) *LogWriter {
	return &LogWriter{w: w, logKept: logKept}
}

// Record writes the line for rec, if it has one.
func (l *LogWriter) Record(rec ExclusionRecord) error {
	line, ok := rec.Line(l.logKept)
	if !ok {
		return nil
	}
	if _, err := io.WriteString(l.w, line+"\n"); err != nil {
		return fmt.Errorf("write exclusion log: %w", err)
	}
	l.lines++
	return nil
}

// Lines returns how many lines were written.
func (l *LogWriter) Lines() int { return l.lines }

// ParseLog reads an exclusion log back into records. Frame indices are
// recovered from the two-decimal timestamps as round(seconds × rate), which
// is exact below 100 fps.
func ParseLog(r io.Reader, rate timecode.Rate) ([]ExclusionRecord, error) {
	var records []ExclusionRecord
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := parseLine(line, rate)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read exclusion log: %w", err)
	}
	return records, nil
}

func parseLine(line string, rate timecode.Rate) (ExclusionRecord, error) {
	var rec ExclusionRecord

	rest, deleted := strings.CutPrefix(line, deletedPrefix)
	if !deleted {
		var saved bool
		rest, saved = strings.CutPrefix(line, savedPrefix)
		if !saved {
			return rec, fmt.Errorf("unrecognized log line %q", line)
		}
		rec.Kept = true
	}

	secs, tail, ok := strings.Cut(rest, " seconds. ")
	if !ok {
		return rec, fmt.Errorf("missing timestamp in %q", line)
	}
	ts, err := strconv.ParseFloat(secs, 64)
	if err != nil || ts < 0 {
		return rec, fmt.Errorf("invalid timestamp %q", secs)
	}
	rec.Timestamp = ts
	rec.FrameIndex = int(math.Round(ts * rate.Float()))

	if rec.Kept {
		if tail != keptReason {
			return rec, fmt.Errorf("unexpected kept reason %q", tail)
		}
		return rec, nil
	}

	list, ok := strings.CutPrefix(tail, reasonsLabel)
	if !ok {
		return rec, fmt.Errorf("missing reasons in %q", line)
	}
	for _, msg := range strings.Split(list, reasonSep) {
		reason, ok := predicate.ParseMessage(msg)
		if !ok {
			return rec, fmt.Errorf("unknown reason %q", msg)
		}
		rec.Reasons = append(rec.Reasons, reason)
	}
	return rec, nil
}
