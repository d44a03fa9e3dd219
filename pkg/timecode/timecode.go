// Package timecode converts between HH:MM:SS.fff timecodes, seconds and frame
// indices for a given frame rate.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// quantum is the precision of formatted timecodes. A timecode rendered from a
// frame boundary may sit up to half a quantum before that boundary.
const (
	quantum = 0.001
	slack   = 0.6 * quantum
)

// Format renders seconds as HH:MM:SS.fff, rounding to the millisecond.
func Format(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds / quantum))
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	return fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, float64(ms)/1000)
}

// FormatDuration renders a duration as HH:MM:SS.fff.
func FormatDuration(d time.Duration) string {
	return Format(d.Seconds())
}

// FromFrame renders the timestamp of a frame index at the given rate.
func FromFrame(index int, rate Rate) string {
	return Format(rate.Seconds(index))
}

// Parts holds the three components of a parsed timecode.
type Parts struct {
	Hours   int
	Minutes int
	Seconds float64
}

// Parse splits an HH:MM:SS(.fraction) timecode into its components.
func Parse(s string) (Parts, error) {
	s = strings.TrimSpace(s)
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return Parts{}, fmt.Errorf("invalid timecode %q: want HH:MM:SS", s)
	}

	hours, err := strconv.Atoi(fields[0])
	if err != nil || hours < 0 {
		return Parts{}, fmt.Errorf("invalid timecode %q: bad hours", s)
	}
	minutes, err := strconv.Atoi(fields[1])
	if err != nil || minutes < 0 {
		return Parts{}, fmt.Errorf("invalid timecode %q: bad minutes", s)
	}
	seconds, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return Parts{}, fmt.Errorf("invalid timecode %q: bad seconds", s)
	}

	return Parts{Hours: hours, Minutes: minutes, Seconds: seconds}, nil
}

// TotalSeconds returns the timecode as seconds.
func (p Parts) TotalSeconds() float64 {
	return float64(p.Hours)*3600 + float64(p.Minutes)*60 + p.Seconds
}

// Duration returns the timecode as a time.Duration.
func (p Parts) Duration() time.Duration {
	return time.Duration(p.TotalSeconds() * float64(time.Second))
}

// FrameIndex converts the timecode to a frame index:
// floor(H*3600*rate + M*60*rate + S*rate). The one exception is a timecode
// that is exactly the millisecond rendering of the next frame boundary, as
// FromFrame produces when it rounds down; that maps to the boundary's frame.
func (p Parts) FrameIndex(rate Rate) int {
	fps := rate.Float()
	v := float64(p.Hours)*3600*fps + float64(p.Minutes)*60*fps + p.Seconds*fps
	index := int(math.Floor(v))
	if next := int(math.Floor(v + slack*fps)); next > index && rendersFrame(p.TotalSeconds(), index+1, rate) {
		return index + 1
	}
	return index
}

// rendersFrame reports whether seconds is a whole number of milliseconds
// equal to Format's rounding of frame index's timestamp.
func rendersFrame(seconds float64, index int, rate Rate) bool {
	ms := math.Round(seconds / quantum)
	if math.Abs(seconds-ms*quantum) > 1e-7 {
		return false
	}
	return ms == math.Round(rate.Seconds(index)/quantum)
}

// ToFrame parses a timecode and converts it to a frame index.
func ToFrame(s string, rate Rate) (int, error) {
	p, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return p.FrameIndex(rate), nil
}
