package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Rate is a frame rate expressed as a rational number (e.g. 30000/1001).
type Rate struct {
	Num int
	Den int
}

// FPS returns an integral rate of n frames per second.
func FPS(n int) Rate {
	return Rate{Num: n, Den: 1}
}

// ParseRate parses ffprobe's rational notation ("30/1", "30000/1001") or a
// plain decimal ("25", "29.97").
func ParseRate(s string) (Rate, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.Atoi(num)
		d, err2 := strconv.Atoi(den)
		if err1 != nil || err2 != nil {
			return Rate{}, fmt.Errorf("invalid frame rate %q", s)
		}
		r := Rate{Num: n, Den: d}
		if !r.Valid() {
			return Rate{}, fmt.Errorf("invalid frame rate %q", s)
		}
		return r, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return Rate{}, fmt.Errorf("invalid frame rate %q", s)
	}
	if f == math.Trunc(f) {
		return FPS(int(f)), nil
	}
	return Rate{Num: int(math.Round(f * 1000)), Den: 1000}, nil
}

// Valid reports whether the rate is a positive rational.
func (r Rate) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float returns frames per second.
func (r Rate) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Seconds returns the timestamp of frame index at this rate.
func (r Rate) Seconds(index int) float64 {
	if r.Num == 0 {
		return 0
	}
	return float64(index) * float64(r.Den) / float64(r.Num)
}

// String renders the rate in ffmpeg's num/den notation.
func (r Rate) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
