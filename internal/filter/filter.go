// Package filter streams a video through the frame predicates, writing the
// kept frames to a new video and every decision to an exclusion log.
package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/shortreel/internal/logging"
	"github.com/kikiluvv/shortreel/internal/predicate"
	"github.com/kikiluvv/shortreel/internal/video"
)

// Options configures one filter run.
type Options struct {
	Predicates predicate.Options

	// LogKept also writes a line for every kept frame.
	LogKept bool

	// OnRecord, when set, is called after each frame is decided.
	OnRecord func(ExclusionRecord)
}

// Result summarizes a filter run.
type Result struct {
	Info       video.Info
	FramesIn   int
	FramesKept int
	Dropped    map[predicate.Reason]int
	Duration   time.Duration
	// LogLines is how many lines went to the exclusion log.
	LogLines int

	// Warning is set when decoding stopped early. The outputs are still
	// complete up to the last decoded frame.
	Warning error
}

// FramesDropped returns FramesIn - FramesKept.
func (r *Result) FramesDropped() int { return r.FramesIn - r.FramesKept }

// Filter runs the frame filter over videos opened through an Opener.
type Filter struct {
	opener video.Opener
	logger zerolog.Logger
}

// New creates a Filter.
func New(logger zerolog.Logger, opener video.Opener) *Filter {
	return &Filter{
		opener: opener,
		logger: logging.Component(logger, "filter"),
	}
}

// Run decides every frame of source in order, writing kept frames to output
// and one log line per decision to log. The output has the source's size and
// rate. A source that fails to decode mid-stream ends the run early with
// Result.Warning set.
func (f *Filter) Run(ctx context.Context, source, output string, log io.Writer, opts Options) (*Result, error) {
	set, err := predicate.NewSet(opts.Predicates)
	if err != nil {
		return nil, err
	}

	src, err := f.opener.Open(ctx, source, video.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", source, err)
	}
	defer src.Close()

	info := src.Info()
	dst, err := f.opener.Create(ctx, output, info)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", output, err)
	}

	logger := f.logger.With().Str(logging.FieldPath, source).Logger()
	logger.Info().
		Str(logging.FieldOutput, output).
		Str(logging.FieldFPS, info.Rate.String()).
		Int(logging.FieldFrames, info.FrameCount).
		Msg("filtering frames")

	start := time.Now()
	res := &Result{Info: info, Dropped: make(map[predicate.Reason]int)}
	lw := NewLogWriter(log, opts.LogKept)

	if err := f.loop(ctx, src, dst, lw, set, res, opts); err != nil {
		// Finalize what was written so far; the run error wins.
		_ = dst.Close()
		return nil, err
	}

	if err := dst.Close(); err != nil {
		return nil, fmt.Errorf("finalize %s: %w", output, err)
	}
	res.Duration = time.Since(start)
	res.LogLines = lw.Lines()

	ev := logger.Info()
	if res.Warning != nil {
		ev = logger.Warn().AnErr("warning", res.Warning)
	}
	ev.Int("frames_in", res.FramesIn).
		Int("frames_kept", res.FramesKept).
		Int("log_lines", res.LogLines).
		Dur("elapsed", res.Duration).
		Msg("filter complete")

	return res, nil
}

func (f *Filter) loop(ctx context.Context, src video.Reader, dst video.Writer, lw *LogWriter, set *predicate.Set, res *Result, opts Options) error {
	rate := res.Info.Rate
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		fr, err := src.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, video.ErrSourceDecode) {
			res.Warning = err
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame %d: %w", index, err)
		}

		reasons := set.Next(fr)
		rec := ExclusionRecord{
			FrameIndex: index,
			Timestamp:  rate.Seconds(index),
			Kept:       len(reasons) == 0,
			Reasons:    reasons,
		}

		res.FramesIn++
		if rec.Kept {
			if err := dst.Write(fr); err != nil {
				return fmt.Errorf("write frame %d: %w", index, err)
			}
			res.FramesKept++
		} else {
			for _, r := range reasons {
				res.Dropped[r]++
			}
			f.logger.Debug().
				Int(logging.FieldFrame, index).
				Stringers(logging.FieldReasons, stringers(reasons)).
				Msg("dropped frame")
		}

		if err := lw.Record(rec); err != nil {
			return err
		}
		if opts.OnRecord != nil {
			opts.OnRecord(rec)
		}
	}
}

func stringers(reasons []predicate.Reason) []fmt.Stringer {
	out := make([]fmt.Stringer, len(reasons))
	for i, r := range reasons {
		out[i] = r
	}
	return out
}
