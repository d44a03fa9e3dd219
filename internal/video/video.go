// Package video defines the stream handles every stage reads from and writes
// to. The ffmpeg package provides the production implementation; videotest
// provides an in-memory one.
package video

import (
	"context"
	"fmt"

	"github.com/kikiluvv/shortreel/internal/frame"
	"github.com/kikiluvv/shortreel/pkg/timecode"
)

// Info is the stream metadata fixed at open time.
type Info struct {
	Width      int
	Height     int
	Rate       timecode.Rate
	FrameCount int
	Codec      string
}

// Validate checks the invariants every stream must satisfy.
func (i Info) Validate() error {
	if i.Width <= 0 || i.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", i.Width, i.Height)
	}
	if !i.Rate.Valid() {
		return fmt.Errorf("invalid frame rate %s", i.Rate)
	}
	if i.FrameCount < 0 {
		return fmt.Errorf("invalid frame count %d", i.FrameCount)
	}
	return nil
}

// Duration returns the stream length in seconds (frame_count / fps).
func (i Info) Duration() float64 {
	return i.Rate.Seconds(i.FrameCount)
}

// Reader is a forward-only frame stream. Read returns io.EOF once the source
// is exhausted and an error wrapping ErrSourceDecode when a frame cannot be
// decoded. Close may be called from another goroutine to abort a blocked
// Read, which then fails with ErrClosed.
type Reader interface {
	Info() Info
	Read() (*frame.Frame, error)
	Close() error
}

// Seeker is a Reader that can reposition to an absolute frame index.
// Position is the index of the frame the next Read returns.
type Seeker interface {
	Reader
	Seek(index int) error
	Position() int
}

// Writer is an append-only frame sink. Close finalizes the output exactly
// once; further calls are no-ops.
type Writer interface {
	Write(f *frame.Frame) error
	Frames() int
	Close() error
}

// ReadOptions tunes how a stream is decoded.
type ReadOptions struct {
	// ScaleWidth downscales frames to this width, preserving aspect ratio.
	// Zero keeps the native size.
	ScaleWidth int
}

// Opener opens streams by path.
type Opener interface {
	Open(ctx context.Context, path string, opts ReadOptions) (Seeker, error)
	Create(ctx context.Context, path string, info Info) (Writer, error)
}
