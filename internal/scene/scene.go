// Package scene finds content cuts in a video and renders them as a
// timeline of scene ranges.
package scene

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/shortreel/internal/frame"
	"github.com/kikiluvv/shortreel/internal/logging"
	"github.com/kikiluvv/shortreel/internal/video"
	"github.com/kikiluvv/shortreel/pkg/timecode"
)

const (
	// Threshold is the content score at or above which a cut is declared.
	Threshold = 27.0
	// MinSceneLength is the minimum number of frames between two cuts.
	MinSceneLength = 15
	// ScaleWidth is the width frames are downscaled to before scoring.
	ScaleWidth = 256
)

// Range is one detected scene. EndFrame is exclusive.
type Range struct {
	Index      int
	StartFrame int
	EndFrame   int
	Start      string
	End        string
}

// Frames returns the number of frames in the range.
func (r Range) Frames() int { return r.EndFrame - r.StartFrame }

// Detector finds scene cuts.
type Detector struct {
	opener video.Opener
	logger zerolog.Logger
}

// New creates a Detector.
func New(logger zerolog.Logger, opener video.Opener) *Detector {
	return &Detector{
		opener: opener,
		logger: logging.Component(logger, "scene"),
	}
}

// Detect scores every pair of adjacent frames in path and splits the video
// at each cut. The whole video is one range when no cut fires.
func (d *Detector) Detect(ctx context.Context, path string) ([]Range, error) {
	src, err := d.opener.Open(ctx, path, video.ReadOptions{ScaleWidth: ScaleWidth})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	start := time.Now()
	info := src.Info()
	logger := d.logger.With().Str(logging.FieldPath, path).Logger()

	var (
		cuts  []int
		det   = newContentDetector(Threshold, MinSceneLength)
		count int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, video.ErrSourceDecode) {
			logger.Warn().Err(err).Int(logging.FieldFrame, count).Msg("decode failed, ending scan early")
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", count, err)
		}
		if det.next(count, f) {
			cuts = append(cuts, count)
		}
		count++
	}

	if count == 0 {
		return nil, fmt.Errorf("%s: %w", path, video.ErrEmptySource)
	}

	ranges := Ranges(cuts, count, info.Rate)
	logger.Info().
		Int(logging.FieldFrames, count).
		Int("scenes", len(ranges)).
		Dur("elapsed", time.Since(start)).
		Msg("scene detection complete")
	return ranges, nil
}

// contentDetector declares a cut when the mean HSV delta between adjacent
// frames reaches the threshold and enough frames have passed since the last
// cut. The first frame counts as a cut position for spacing purposes.
type contentDetector struct {
	threshold float64
	minLen    int
	prev      *frame.HSV
	lastCut   int
}

func newContentDetector(threshold float64, minLen int) *contentDetector {
	return &contentDetector{threshold: threshold, minLen: minLen, lastCut: -1}
}

func (c *contentDetector) next(index int, f *frame.Frame) bool {
	hsv := f.HSV()
	prev := c.prev
	c.prev = &hsv
	if c.lastCut < 0 {
		c.lastCut = index
	}
	if prev == nil {
		return false
	}
	if Score(*prev, hsv) >= c.threshold && index-c.lastCut >= c.minLen {
		c.lastCut = index
		return true
	}
	return false
}

// Score is the content difference between two frames: the mean absolute
// hue, saturation and value deltas averaged together.
func Score(a, b frame.HSV) float64 {
	dh, ds, dv := a.Delta(b)
	return (dh + ds + dv) / 3
}

// Ranges turns cut positions into contiguous scenes covering frames
// [0, total). Cut positions must be ascending and inside (0, total).
func Ranges(cuts []int, total int, rate timecode.Rate) []Range {
	if total <= 0 {
		return nil
	}
	bounds := make([]int, 0, len(cuts)+2)
	bounds = append(bounds, 0)
	for _, c := range cuts {
		if c > bounds[len(bounds)-1] && c < total {
			bounds = append(bounds, c)
		}
	}
	bounds = append(bounds, total)

	ranges := make([]Range, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		ranges = append(ranges, Range{
			Index:      i + 1,
			StartFrame: bounds[i],
			EndFrame:   bounds[i+1],
			Start:      timecode.FromFrame(bounds[i], rate),
			End:        timecode.FromFrame(bounds[i+1], rate),
		})
	}
	return ranges
}

// Line renders r in the timeline format.
func (r Range) Line() string {
	return fmt.Sprintf("Scene %d: Start frame %s - End frame %s", r.Index, r.Start, r.End)
}

// Serialize renders ranges one per line, each terminated by a newline.
func Serialize(ranges []Range) string {
	var b strings.Builder
	for _, r := range ranges {
		b.WriteString(r.Line())
		b.WriteByte('\n')
	}
	return b.String()
}
