package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/kikiluvv/shortreel/internal/frame"
	"github.com/kikiluvv/shortreel/internal/logging"
	"github.com/kikiluvv/shortreel/internal/video"
)

// Open probes path and starts decoding it to RGB24 frames.
func (e *Executor) Open(ctx context.Context, path string, opts video.ReadOptions) (video.Seeker, error) {
	info, err := e.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	info.Width, info.Height = scaledSize(info.Width, info.Height, opts.ScaleWidth)

	r := &reader{
		exec:    e,
		ctx:     ctx,
		path:    path,
		info:    info,
		filters: NewFilterBuilder().Scale(info.Width, info.Height).Build(),
		size:    frame.Size(info.Width, info.Height),
	}
	if opts.ScaleWidth <= 0 {
		r.filters = ""
	}

	if err := r.start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", video.ErrSourceUnreadable, path, err)
	}
	return r, nil
}

// reader streams raw frames from an ffmpeg child process. Seeking forward
// skips frames; seeking back by one frame replays the last frame; any other
// backward seek restarts the decoder.
type reader struct {
	exec    *Executor
	ctx     context.Context
	path    string
	info    video.Info
	filters string
	size    int

	mu     sync.Mutex
	proc   *process
	closed atomic.Bool

	pos    int
	eof    bool
	last   *frame.Frame
	replay bool
}

func (r *reader) start() error {
	args := append(r.exec.baseArgs("error"), "-i", r.path, "-map", "0:v:0")
	if r.filters != "" {
		args = append(args, "-vf", r.filters)
	}
	args = append(args, "-f", "rawvideo", "-pix_fmt", "rgb24", "-vsync", "0", "pipe:1")

	r.exec.logger.Debug().
		Str(logging.FieldPath, r.path).
		Strs("args", args).
		Msg("starting decoder")

	cmd := r.exec.command(r.ctx, r.exec.ffmpegPath, args...)
	tail := &stderrTail{}
	cmd.Stderr = tail
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	r.mu.Lock()
	r.proc = &process{cmd: cmd, stdout: stdout, tail: tail}
	r.mu.Unlock()

	r.pos, r.eof, r.last, r.replay = 0, false, nil, false
	return nil
}

func (r *reader) Info() video.Info { return r.info }

func (r *reader) Position() int { return r.pos }

func (r *reader) Read() (*frame.Frame, error) {
	if r.closed.Load() {
		return nil, video.ErrClosed
	}
	if r.replay {
		r.replay = false
		r.pos++
		return r.last.Clone(), nil
	}

	f := frame.New(r.info.Width, r.info.Height)
	if err := r.readRaw(f.Pix); err != nil {
		return nil, err
	}
	r.pos++
	r.last = f
	return f.Clone(), nil
}

// readRaw fills buf with the next frame's bytes.
func (r *reader) readRaw(buf []byte) error {
	if r.eof {
		return io.EOF
	}

	r.mu.Lock()
	proc := r.proc
	r.mu.Unlock()
	if proc == nil {
		return video.ErrClosed
	}

	_, err := io.ReadFull(proc.stdout, buf)
	if err == nil {
		return nil
	}
	if r.closed.Load() {
		return video.ErrClosed
	}
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		r.eof = true
		_ = proc.wait()
		return fmt.Errorf("%w: truncated frame %d", video.ErrSourceDecode, r.pos)
	}
	if errors.Is(err, io.EOF) {
		r.eof = true
		if werr := proc.wait(); werr != nil {
			return fmt.Errorf("%w: frame %d: %v", video.ErrSourceDecode, r.pos, werr)
		}
		return io.EOF
	}
	return fmt.Errorf("%w: frame %d: %v", video.ErrSourceDecode, r.pos, err)
}

// process is one decoder child. wait may be called from several paths and
// reaps the child exactly once.
type process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	tail   *stderrTail

	once sync.Once
	err  error
}

func (p *process) wait() error {
	p.once.Do(func() {
		p.err = exitError(p.cmd.Wait(), p.tail)
	})
	return p.err
}

func (p *process) kill() error {
	err := killProcessGroup(p.cmd)
	_ = p.wait()
	return err
}

func (r *reader) Seek(index int) error {
	if r.closed.Load() {
		return video.ErrClosed
	}
	if index < 0 {
		return fmt.Errorf("%w: seek to %d", video.ErrInvalidOptions, index)
	}

	switch {
	case index == r.pos:
		return nil
	case index == r.pos-1 && r.last != nil && !r.replay:
		r.replay = true
		r.pos = index
		return nil
	case index < r.pos:
		if err := r.restart(); err != nil {
			return err
		}
	}

	// Skip forward; frames are decoded and discarded.
	buf := make([]byte, r.size)
	if r.replay {
		r.replay = false
		r.pos++
	}
	for r.pos < index {
		err := r.readRaw(buf)
		if errors.Is(err, io.EOF) {
			// Past the end: later reads report io.EOF.
			r.pos = index
			return nil
		}
		if err != nil {
			return err
		}
		r.pos++
	}
	r.last = nil
	return nil
}

func (r *reader) restart() error {
	r.exec.logger.Debug().
		Str(logging.FieldPath, r.path).
		Int(logging.FieldFrame, r.pos).
		Msg("restarting decoder for backward seek")
	r.stop()
	if err := r.start(); err != nil {
		return fmt.Errorf("%w: restart %s: %v", video.ErrSourceDecode, r.path, err)
	}
	return nil
}

// stop kills the decoder and reaps it.
func (r *reader) stop() {
	r.mu.Lock()
	proc := r.proc
	r.proc = nil
	r.mu.Unlock()
	if proc != nil {
		_ = proc.kill()
	}
}

// Close aborts decoding. It is safe to call from another goroutine while a
// Read is blocked; that Read returns video.ErrClosed.
func (r *reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.mu.Lock()
	proc := r.proc
	r.mu.Unlock()
	if proc == nil {
		return nil
	}
	// Killing the group closes the pipe and unblocks any pending read.
	if err := proc.kill(); err != nil {
		return fmt.Errorf("kill decoder: %w", err)
	}
	return nil
}
