package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/kikiluvv/shortreel/internal/frame"
	"github.com/kikiluvv/shortreel/internal/logging"
	"github.com/kikiluvv/shortreel/internal/video"
)

// Create returns a writer encoding RGB24 frames to path with the executor's
// codec. The encoder starts on the first frame. Closing a writer that never
// received one still runs the encoder so path holds a valid empty stream.
func (e *Executor) Create(ctx context.Context, path string, info video.Info) (video.Writer, error) {
	if info.Width <= 0 || info.Height <= 0 || !info.Rate.Valid() {
		return nil, fmt.Errorf("%w: create %s: %dx%d @ %s", video.ErrInvalidOptions, path, info.Width, info.Height, info.Rate)
	}
	return &writer{exec: e, ctx: ctx, path: path, info: info}, nil
}

// writer may be closed from another goroutine while a Write is blocked on
// the encoder's stdin; that Write returns video.ErrClosed.
type writer struct {
	exec *Executor
	ctx  context.Context
	path string
	info video.Info

	mu     sync.Mutex
	proc   *process
	stdin  io.WriteCloser
	frames atomic.Int64
	closed atomic.Bool
}

func (w *writer) start() error {
	args := append(w.exec.baseArgs("error"),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", w.info.Width, w.info.Height),
		"-r", w.info.Rate.String(),
		"-i", "pipe:0",
		"-an",
		"-c:v", w.exec.codec,
		"-q:v", strconv.Itoa(w.exec.quality),
		"-pix_fmt", "yuv420p",
		w.path,
	)

	w.exec.logger.Debug().
		Str(logging.FieldOutput, w.path).
		Strs("args", args).
		Msg("starting encoder")

	cmd := w.exec.command(w.ctx, w.exec.ffmpegPath, args...)
	tail := &stderrTail{}
	cmd.Stderr = tail
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	w.proc = &process{cmd: cmd, tail: tail}
	w.stdin = stdin
	return nil
}

// encoder returns the running encoder, starting it on first use.
func (w *writer) encoder() (*process, io.WriteCloser, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed.Load() {
		return nil, nil, video.ErrClosed
	}
	if w.proc == nil {
		if err := w.start(); err != nil {
			return nil, nil, err
		}
	}
	return w.proc, w.stdin, nil
}

func (w *writer) Write(f *frame.Frame) error {
	if w.closed.Load() {
		return video.ErrClosed
	}
	if f.Width != w.info.Width || f.Height != w.info.Height {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", video.ErrFrameSize, f.Width, f.Height, w.info.Width, w.info.Height)
	}
	proc, stdin, err := w.encoder()
	if err != nil {
		if errors.Is(err, video.ErrClosed) {
			return err
		}
		return fmt.Errorf("encode %s: %w", w.path, err)
	}
	if _, err := stdin.Write(f.Pix); err != nil {
		if w.closed.Load() {
			return video.ErrClosed
		}
		// The encoder died; its exit status explains why.
		_ = stdin.Close()
		if werr := proc.wait(); werr != nil {
			err = werr
		}
		return fmt.Errorf("encode %s frame %d: %w", w.path, w.frames.Load(), err)
	}
	w.frames.Add(1)
	return nil
}

func (w *writer) Frames() int { return int(w.frames.Load()) }

// Close finalizes the output. It is safe to call from another goroutine
// while a Write is blocked.
func (w *writer) Close() error {
	w.mu.Lock()
	if w.closed.Swap(true) {
		w.mu.Unlock()
		return nil
	}
	if w.proc == nil {
		if err := w.start(); err != nil {
			w.mu.Unlock()
			return w.closeEmpty(err)
		}
	}
	proc, stdin := w.proc, w.stdin
	w.mu.Unlock()

	_ = stdin.Close()
	if err := proc.wait(); err != nil {
		if w.frames.Load() == 0 {
			return w.closeEmpty(err)
		}
		return fmt.Errorf("finalize %s: %w", w.path, err)
	}

	w.exec.logger.Debug().
		Str(logging.FieldOutput, w.path).
		Int(logging.FieldFrames, w.Frames()).
		Msg("encoder finished")
	return nil
}

// closeEmpty leaves a zero-length file when the encoder refuses to write a
// stream without frames. Probe reports such a file as video.ErrEmptySource.
func (w *writer) closeEmpty(cause error) error {
	w.exec.logger.Debug().
		Err(cause).
		Str(logging.FieldOutput, w.path).
		Msg("encoder wrote no stream, leaving empty file")
	if err := os.WriteFile(w.path, nil, 0o644); err != nil {
		return fmt.Errorf("create empty %s: %w", w.path, err)
	}
	return nil
}
