package video

import "errors"

var (
	// ErrSourceUnreadable means the source could not be opened or probed.
	ErrSourceUnreadable = errors.New("source unreadable")

	// ErrSourceDecode means a frame could not be decoded mid-stream.
	ErrSourceDecode = errors.New("source decode error")

	// ErrEmptySource means the source holds zero frames.
	ErrEmptySource = errors.New("source has no frames")

	// ErrClosed is returned by operations on a closed stream.
	ErrClosed = errors.New("stream closed")

	// ErrInvalidOptions means a stage was configured with out-of-range values.
	ErrInvalidOptions = errors.New("invalid options")

	// ErrFrameSize means a written frame does not match the sink's size.
	ErrFrameSize = errors.New("frame size mismatch")
)
