package predicate

import "github.com/kikiluvv/shortreel/internal/frame"

// Set evaluates the enabled checks over a stream of frames. It remembers the
// previous frame's luminance for the motion check, so one Set serves exactly
// one stream.
type Set struct {
	opts     Options
	prevGray *frame.Plane
}

// NewSet validates opts and returns a Set.
func NewSet(opts Options) (*Set, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Set{opts: opts}, nil
}

// Next evaluates f against the enabled checks and returns the reasons that
// fired in LowQuality, Dark, Shaky, Noisy order. With the motion check on, f
// becomes the previous frame for the following call whether or not anything
// fired.
func (s *Set) Next(f *frame.Frame) []Reason {
	var reasons []Reason

	if s.opts.Quality.Enabled && IsLowQuality(f, s.opts.Quality.Threshold) {
		reasons = append(reasons, LowQuality)
	}

	var gray *frame.Plane
	if s.opts.Brightness.Enabled || s.opts.Motion.Enabled {
		gray = f.Gray()
	}

	if s.opts.Brightness.Enabled && IsDark(gray, s.opts.Brightness.Threshold) {
		reasons = append(reasons, Dark)
	}

	// The previous plane is only kept while the motion check is on.
	if s.opts.Motion.Enabled {
		if IsShaky(s.prevGray, gray, s.opts.Motion.Threshold, s.opts.Flow) {
			reasons = append(reasons, Shaky)
		}
		s.prevGray = gray
	}

	if s.opts.Noise.Enabled && IsNoisy(f, s.opts.Noise.Threshold) {
		reasons = append(reasons, Noisy)
	}

	return reasons
}
