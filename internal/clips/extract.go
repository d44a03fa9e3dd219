package clips

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/shortreel/internal/frame"
	"github.com/kikiluvv/shortreel/internal/logging"
	"github.com/kikiluvv/shortreel/internal/timeline"
	"github.com/kikiluvv/shortreel/internal/video"
	"github.com/kikiluvv/shortreel/pkg/timecode"
	"github.com/kikiluvv/shortreel/pkg/util"
)

// DefaultExtension is the container used for clips when none is configured.
const DefaultExtension = "mp4"

// Options configures extraction.
type Options struct {
	Extension string

	// StrictRanges turns a range beyond the end of the source into an
	// error instead of an empty clip with a warning.
	StrictRanges bool

	// OnClip, when set, is called after each clip is finalized.
	OnClip func(*Clip)
}

// Extractor cuts clips out of a video.
type Extractor struct {
	opener video.Opener
	logger zerolog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger zerolog.Logger, opener video.Opener) *Extractor {
	return &Extractor{
		opener: opener,
		logger: logging.Component(logger, "clips"),
	}
}

// Extract opens videoPath and writes one clip per scene into outDir, in
// scene order. Each clip holds the frames from the start timecode through
// the end timecode inclusive, converted with the video's own rate, and is
// shorter when the source runs out first. Clips are named after the scene's
// index, so rerunning overwrites the same files.
func (e *Extractor) Extract(ctx context.Context, videoPath string, scenes []timeline.Scene, outDir string, opts Options) ([]*Clip, error) {
	ext := util.NormalizeExtension(opts.Extension)
	if ext == "" {
		ext = DefaultExtension
	}
	if err := util.EnsureDir(outDir); err != nil {
		return nil, fmt.Errorf("create clip dir: %w", err)
	}

	src, err := e.opener.Open(ctx, videoPath, video.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", videoPath, err)
	}
	defer src.Close()

	info := src.Info()
	start := time.Now()
	out := make([]*Clip, 0, len(scenes))

	for _, s := range scenes {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		clip, err := newClip(s, info.Rate)
		if err != nil {
			return out, err
		}
		clip.Path = filepath.Join(outDir, util.ClipFileName(s.Index, ext))

		if err := e.extractOne(ctx, src, info, clip, opts); err != nil {
			return out, err
		}
		out = append(out, clip)
		if opts.OnClip != nil {
			opts.OnClip(clip)
		}
	}

	e.logger.Info().
		Str(logging.FieldPath, videoPath).
		Int("clips", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("clip extraction complete")
	return out, nil
}

func newClip(s timeline.Scene, rate timecode.Rate) (*Clip, error) {
	startFrame, err := timecode.ToFrame(s.Start, rate)
	if err != nil {
		return nil, fmt.Errorf("scene %d start: %w", s.Index, err)
	}
	endFrame, err := timecode.ToFrame(s.End, rate)
	if err != nil {
		return nil, fmt.Errorf("scene %d end: %w", s.Index, err)
	}
	return &Clip{
		Index:      s.Index,
		Start:      s.Start,
		End:        s.End,
		StartFrame: startFrame,
		EndFrame:   endFrame,
	}, nil
}

func (e *Extractor) extractOne(ctx context.Context, src video.Seeker, info video.Info, clip *Clip, opts Options) error {
	logger := e.logger.With().
		Int(logging.FieldScene, clip.Index).
		Int(logging.FieldStart, clip.StartFrame).
		Int(logging.FieldEnd, clip.EndFrame).
		Logger()

	// Seeking forward decodes the skipped frames, so a damaged frame before
	// the range surfaces here and leaves the clip empty.
	if err := src.Seek(clip.StartFrame); err != nil {
		if !errors.Is(err, video.ErrSourceDecode) {
			return fmt.Errorf("scene %d: seek to frame %d: %w", clip.Index, clip.StartFrame, err)
		}
		clip.Warning = err
	}

	// Read the first frame before creating the file so a range past the end
	// can be rejected without leaving output behind in strict mode.
	var first *frame.Frame
	if clip.Requested() > 0 && clip.Warning == nil {
		f, err := src.Read()
		switch {
		case err == nil:
			first = f
		case errors.Is(err, io.EOF):
		case errors.Is(err, video.ErrSourceDecode):
			clip.Warning = err
		default:
			return fmt.Errorf("scene %d: read frame %d: %w", clip.Index, clip.StartFrame, err)
		}
	}

	if first == nil && clip.Warning == nil {
		clip.Warning = fmt.Errorf("%w: scene %d frames %d-%d, source has %d",
			ErrEmptyClipRange, clip.Index, clip.StartFrame, clip.EndFrame, info.FrameCount)
		if opts.StrictRanges {
			return clip.Warning
		}
	}

	w, err := e.opener.Create(ctx, clip.Path, info)
	if err != nil {
		return fmt.Errorf("scene %d: create %s: %w", clip.Index, clip.Path, err)
	}

	if first != nil {
		if err := e.copyFrames(src, w, first, clip); err != nil {
			_ = w.Close()
			util.CleanupFiles(clip.Path)
			return err
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("scene %d: finalize %s: %w", clip.Index, clip.Path, err)
	}
	clip.Frames = w.Frames()

	ev := logger.Info()
	if clip.Warning != nil {
		ev = logger.Warn().AnErr("warning", clip.Warning)
	}
	ev.Str(logging.FieldOutput, clip.Path).
		Int(logging.FieldFrames, clip.Frames).
		Msg("clip written")
	return nil
}

// copyFrames writes first and then reads on while the position stays within
// the clip's inclusive end.
func (e *Extractor) copyFrames(src video.Seeker, w video.Writer, first *frame.Frame, clip *Clip) error {
	if err := w.Write(first); err != nil {
		return fmt.Errorf("scene %d: write: %w", clip.Index, err)
	}
	for src.Position() <= clip.EndFrame {
		f, err := src.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, video.ErrSourceDecode) {
			clip.Warning = err
			return nil
		}
		if err != nil {
			return fmt.Errorf("scene %d: read frame %d: %w", clip.Index, src.Position(), err)
		}
		if err := w.Write(f); err != nil {
			return fmt.Errorf("scene %d: write: %w", clip.Index, err)
		}
	}
	return nil
}
