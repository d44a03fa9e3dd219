// Package predicate holds the per-frame quality checks used by the filter.
package predicate

import (
	"fmt"
	"strings"

	"github.com/kikiluvv/shortreel/internal/frame"
)

// Reason identifies which check excluded a frame.
type Reason int

const (
	LowQuality Reason = iota
	Dark
	Shaky
	Noisy
)

// Reasons lists every reason in evaluation order.
var Reasons = []Reason{LowQuality, Dark, Shaky, Noisy}

var reasonNames = [...]string{"low_quality", "dark", "shaky", "noisy"}

var reasonMessages = [...]string{
	"Quality below threshold",
	"Dark frame",
	"Shaky frame",
	"Noisy frame",
}

// String returns a short identifier suitable for metric labels.
func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return fmt.Sprintf("reason(%d)", int(r))
	}
	return reasonNames[r]
}

// Message returns the text written to the exclusion log.
func (r Reason) Message() string {
	if r < 0 || int(r) >= len(reasonMessages) {
		return r.String()
	}
	return reasonMessages[r]
}

// ParseMessage maps exclusion-log text back to a Reason.
func ParseMessage(s string) (Reason, bool) {
	s = strings.TrimSpace(s)
	for i, m := range reasonMessages {
		if m == s {
			return Reason(i), true
		}
	}
	return 0, false
}

// IsLowQuality reports whether the mean over all samples is below t.
func IsLowQuality(f *frame.Frame, t float64) bool {
	return f.Mean() < t
}

// IsDark reports whether the mean of a BT.601 luminance plane is below t.
func IsDark(gray *frame.Plane, t float64) bool {
	return gray.Mean() < t
}

// IsNoisy reports whether the mean absolute difference between f and its
// 5x5 Gaussian blur exceeds t.
func IsNoisy(f *frame.Frame, t float64) bool {
	return NoiseLevel(f) > t
}

// NoiseLevel is the mean absolute difference between f and its blur.
func NoiseLevel(f *frame.Frame) float64 {
	return frame.MeanAbsDiff(f, frame.GaussianBlur5(f))
}

// IsShaky reports whether the optical flow between two luminance planes has
// an L2 norm above t. It never fires without a previous plane.
func IsShaky(prev, cur *frame.Plane, t float64, opts FlowOptions) bool {
	if prev == nil {
		return false
	}
	return Motion(prev, cur, opts) > t
}
