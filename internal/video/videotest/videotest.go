// Package videotest provides an in-memory video.Opener for exercising stages
// without ffmpeg.
package videotest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kikiluvv/shortreel/internal/frame"
	"github.com/kikiluvv/shortreel/internal/video"
	"github.com/kikiluvv/shortreel/pkg/timecode"
)

// Clip is a stored in-memory video.
type Clip struct {
	Info   video.Info
	Frames []*frame.Frame

	// DecodeErrorAt makes the Read of this index fail with
	// video.ErrSourceDecode. Negative disables it.
	DecodeErrorAt int
}

// Backend is a path-keyed store of clips. Safe for concurrent use.
type Backend struct {
	mu       sync.Mutex
	clips    map[string]*Clip
	openErrs map[string]error
	readers  int
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{
		clips:    make(map[string]*Clip),
		openErrs: make(map[string]error),
	}
}

// Put stores frames under path. All frames must share one size.
func (b *Backend) Put(path string, rate timecode.Rate, frames ...*frame.Frame) *Clip {
	c := &Clip{DecodeErrorAt: -1, Frames: frames}
	c.Info = video.Info{Rate: rate, FrameCount: len(frames), Codec: "raw"}
	if len(frames) > 0 {
		c.Info.Width, c.Info.Height = frames[0].Width, frames[0].Height
	}
	b.mu.Lock()
	b.clips[path] = c
	b.mu.Unlock()
	return c
}

// Add stores c under path as is.
func (b *Backend) Add(path string, c *Clip) {
	b.mu.Lock()
	b.clips[path] = c
	b.mu.Unlock()
}

// FailOpen makes Open of path fail with err.
func (b *Backend) FailOpen(path string, err error) {
	b.mu.Lock()
	b.openErrs[path] = err
	b.mu.Unlock()
}

// Get returns the clip stored at path.
func (b *Backend) Get(path string) (*Clip, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.clips[path]
	return c, ok
}

// OpenReaders reports how many readers are open and not yet closed.
func (b *Backend) OpenReaders() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readers
}

// Open implements video.Opener. ScaleWidth is ignored.
func (b *Backend) Open(ctx context.Context, path string, _ video.ReadOptions) (video.Seeker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.openErrs[path]; ok {
		return nil, fmt.Errorf("%w: %s: %v", video.ErrSourceUnreadable, path, err)
	}
	c, ok := b.clips[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s: not found", video.ErrSourceUnreadable, path)
	}
	b.readers++
	return &reader{backend: b, clip: c}, nil
}

// Create implements video.Opener. The clip becomes visible at path once the
// writer is closed.
func (b *Backend) Create(ctx context.Context, path string, info video.Info) (video.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if info.Width <= 0 || info.Height <= 0 || !info.Rate.Valid() {
		return nil, fmt.Errorf("%w: create %s: %dx%d @ %s", video.ErrInvalidOptions, path, info.Width, info.Height, info.Rate)
	}
	return &writer{backend: b, path: path, info: info}, nil
}

type reader struct {
	backend *Backend
	clip    *Clip
	pos     int

	mu     sync.Mutex
	closed bool
}

func (r *reader) Info() video.Info { return r.clip.Info }

func (r *reader) Read() (*frame.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, video.ErrClosed
	}
	if r.pos >= len(r.clip.Frames) {
		return nil, io.EOF
	}
	if r.pos == r.clip.DecodeErrorAt {
		return nil, fmt.Errorf("%w: frame %d", video.ErrSourceDecode, r.pos)
	}
	f := r.clip.Frames[r.pos].Clone()
	r.pos++
	return f, nil
}

func (r *reader) Seek(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return video.ErrClosed
	}
	if index < 0 {
		return fmt.Errorf("%w: seek to %d", video.ErrInvalidOptions, index)
	}
	r.pos = index
	return nil
}

func (r *reader) Position() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos
}

func (r *reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.backend.mu.Lock()
	r.backend.readers--
	r.backend.mu.Unlock()
	return nil
}

type writer struct {
	backend *Backend
	path    string
	info    video.Info
	frames  []*frame.Frame
	closed  bool
}

func (w *writer) Write(f *frame.Frame) error {
	if w.closed {
		return video.ErrClosed
	}
	if f.Width != w.info.Width || f.Height != w.info.Height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", video.ErrFrameSize, f.Width, f.Height, w.info.Width, w.info.Height)
	}
	w.frames = append(w.frames, f.Clone())
	return nil
}

func (w *writer) Frames() int { return len(w.frames) }

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	info := w.info
	info.FrameCount = len(w.frames)
	w.backend.mu.Lock()
	w.backend.clips[w.path] = &Clip{Info: info, Frames: w.frames, DecodeErrorAt: -1}
	w.backend.mu.Unlock()
	return nil
}

// Solid returns n frames of size w×h, each filled with the matching value
// from levels (cycled).
func Solid(w, h, n int, levels ...uint8) []*frame.Frame {
	if len(levels) == 0 {
		levels = []uint8{128}
	}
	out := make([]*frame.Frame, n)
	for i := range out {
		f := frame.New(w, h)
		v := levels[i%len(levels)]
		f.Fill(v, v, v)
		out[i] = f
	}
	return out
}
