// Package clips cuts one video file per scene range.
package clips

import (
	"errors"
	"fmt"
)

// ErrEmptyClipRange marks a scene range that lies wholly beyond the source.
var ErrEmptyClipRange = errors.New("empty clip range")

// Clip is one extracted scene.
type Clip struct {
	// Index is the scene's 1-based position in the timeline.
	Index int
	Path  string
	Start string
	End   string

	// StartFrame and EndFrame are the inclusive frame bounds requested.
	StartFrame int
	EndFrame   int
	// Frames is how many frames were actually written.
	Frames int

	// Warning is set when the clip is shorter than requested for a reason
	// worth reporting, such as ErrEmptyClipRange.
	Warning error
}

// Requested returns the number of frames the range asks for.
func (c *Clip) Requested() int {
	if c.EndFrame < c.StartFrame {
		return 0
	}
	return c.EndFrame - c.StartFrame + 1
}

// Manager collects the clips of one extraction in the order they were
// written. The zero value is ready to use.
type Manager struct {
	clips []*Clip
}

// Add adds a clip to the manager
func (m *Manager) Add(clip *Clip) {
	m.clips = append(m.clips, clip)
}

// All returns all clips
func (m *Manager) All() []*Clip {
	return m.clips
}

// Len returns the number of clips.
func (m *Manager) Len() int { return len(m.clips) }

// Warnings returns the warnings of every clip that has one.
func (m *Manager) Warnings() []error {
	var out []error
	for _, c := range m.clips {
		if c.Warning != nil {
			out = append(out, fmt.Errorf("clip %d: %w", c.Index, c.Warning))
		}
	}
	return out
}
