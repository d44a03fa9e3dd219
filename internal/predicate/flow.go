package predicate

import (
	"fmt"

	"github.com/kikiluvv/shortreel/internal/video"
)

// FlowOptions tunes the dense optical-flow estimate behind the motion check.
type FlowOptions struct {
	// Alpha is the Horn-Schunck smoothness weight.
	Alpha float64
	// Iterations of the Horn-Schunck relaxation.
	Iterations int
	// MaxWidth bounds the width flow is computed at. Frames wider than this
	// are box-downsampled first and the norm is rescaled to full size.
	// Zero disables downsampling. Ignored by the OpenCV estimator.
	MaxWidth int
}

// DefaultFlowOptions returns the settings used when none are configured.
func DefaultFlowOptions() FlowOptions {
	return FlowOptions{Alpha: 10, Iterations: 20, MaxWidth: 320}
}

// Validate checks the flow settings.
func (o FlowOptions) Validate() error {
	if o.Alpha <= 0 {
		return fmt.Errorf("%w: flow alpha must be positive, got %.2f", video.ErrInvalidOptions, o.Alpha)
	}
	if o.Iterations < 1 {
		return fmt.Errorf("%w: flow iterations must be at least 1, got %d", video.ErrInvalidOptions, o.Iterations)
	}
	if o.MaxWidth < 0 {
		return fmt.Errorf("%w: flow max width must not be negative, got %d", video.ErrInvalidOptions, o.MaxWidth)
	}
	return nil
}
