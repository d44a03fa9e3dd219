package predicate

import (
	"fmt"

	"github.com/kikiluvv/shortreel/internal/video"
)

// Gate enables one check and sets its threshold.
type Gate struct {
	Enabled   bool
	Threshold float64
}

// Options configures a Set.
type Options struct {
	Quality    Gate
	Brightness Gate
	Motion     Gate
	Noise      Gate
	Flow       FlowOptions
}

// DefaultThreshold is the starting value for every check.
const DefaultThreshold = 30

// DefaultOptions enables the quality check only.
func DefaultOptions() Options {
	return Options{
		Quality:    Gate{Enabled: true, Threshold: DefaultThreshold},
		Brightness: Gate{Threshold: DefaultThreshold},
		Motion:     Gate{Threshold: DefaultThreshold},
		Noise:      Gate{Threshold: DefaultThreshold},
		Flow:       DefaultFlowOptions(),
	}
}

// Validate rejects negative thresholds and bad flow settings.
func (o Options) Validate() error {
	gates := map[string]Gate{
		"quality":    o.Quality,
		"brightness": o.Brightness,
		"motion":     o.Motion,
		"noise":      o.Noise,
	}
	for name, g := range gates {
		if g.Threshold < 0 {
			return fmt.Errorf("%w: %s threshold %.2f is negative", video.ErrInvalidOptions, name, g.Threshold)
		}
	}
	if o.Motion.Enabled {
		if err := o.Flow.Validate(); err != nil {
			return err
		}
	}
	return nil
}
