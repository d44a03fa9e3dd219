package scene

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/shortreel/internal/frame"
	"github.com/kikiluvv/shortreel/internal/video"
	"github.com/kikiluvv/shortreel/internal/video/videotest"
	"github.com/kikiluvv/shortreel/pkg/timecode"
)

// segments concatenates runs of solid frames: (count, level) pairs.
func segments(runs ...[2]int) []*frame.Frame {
	var out []*frame.Frame
	for _, r := range runs {
		out = append(out, videotest.Solid(16, 12, r[0], uint8(r[1]))...)
	}
	return out
}

func detect(t *testing.T, rate timecode.Rate, frames []*frame.Frame) ([]Range, error) {
	t.Helper()
	b := videotest.New()
	b.Put("filtered.mp4", rate, frames...)
	ranges, err := New(zerolog.Nop(), b).Detect(context.Background(), "filtered.mp4")
	assert.Zero(t, b.OpenReaders())
	return ranges, err
}

func TestDetectNoChangeIsOneScene(t *testing.T) {
	ranges, err := detect(t, timecode.FPS(10), segments([2]int{40, 90}))
	require.NoError(t, err)

	require.Len(t, ranges, 1)
	assert.Equal(t, Range{Index: 1, StartFrame: 0, EndFrame: 40, Start: "00:00:00.000", End: "00:00:04.000"}, ranges[0])
}

func TestDetectHardCut(t *testing.T) {
	ranges, err := detect(t, timecode.FPS(10), segments([2]int{20, 0}, [2]int{20, 255}))
	require.NoError(t, err)

	assert.Equal(t, []Range{
		{Index: 1, StartFrame: 0, EndFrame: 20, Start: "00:00:00.000", End: "00:00:02.000"},
		{Index: 2, StartFrame: 20, EndFrame: 40, Start: "00:00:02.000", End: "00:00:04.000"},
	}, ranges)
}

func TestDetectMinSceneLength(t *testing.T) {
	// cut at 5 is too close to the start; cut at 25 is far enough
	ranges, err := detect(t, timecode.FPS(10), segments([2]int{5, 0}, [2]int{20, 255}, [2]int{15, 0}))
	require.NoError(t, err)

	require.Len(t, ranges, 2)
	assert.Equal(t, 25, ranges[0].EndFrame)
	assert.Equal(t, 25, ranges[1].StartFrame)
	assert.Equal(t, 40, ranges[1].EndFrame)
	assert.Equal(t, 15, ranges[1].Frames())
}

func TestDetectHueCut(t *testing.T) {
	var frames []*frame.Frame
	for i := 0; i < 30; i++ {
		f := frame.New(16, 12)
		if i < 15 {
			f.Fill(255, 0, 0)
		} else {
			f.Fill(0, 0, 255)
		}
		frames = append(frames, f)
	}
	ranges, err := detect(t, timecode.FPS(30), frames)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, "00:00:00.500", ranges[1].Start)
	assert.Equal(t, "00:00:01.000", ranges[1].End)
}

func TestDetectSmallChangeIgnored(t *testing.T) {
	ranges, err := detect(t, timecode.FPS(10), segments([2]int{20, 100}, [2]int{20, 140}))
	require.NoError(t, err)
	assert.Len(t, ranges, 1)
}

func TestDetectEmpty(t *testing.T) {
	b := videotest.New()
	b.Add("empty.mp4", &videotest.Clip{
		Info:          video.Info{Width: 16, Height: 12, Rate: timecode.FPS(10)},
		DecodeErrorAt: -1,
	})
	_, err := New(zerolog.Nop(), b).Detect(context.Background(), "empty.mp4")
	assert.ErrorIs(t, err, video.ErrEmptySource)
}

func TestDetectUnreadable(t *testing.T) {
	_, err := New(zerolog.Nop(), videotest.New()).Detect(context.Background(), "missing.mp4")
	assert.ErrorIs(t, err, video.ErrSourceUnreadable)
}

func TestDetectStopsAtDecodeError(t *testing.T) {
	b := videotest.New()
	c := b.Put("in.mp4", timecode.FPS(10), segments([2]int{30, 50})...)
	c.DecodeErrorAt = 12

	ranges, err := New(zerolog.Nop(), b).Detect(context.Background(), "in.mp4")
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, 12, ranges[0].EndFrame)
}

func TestScore(t *testing.T) {
	a := frame.New(4, 4)
	a.Fill(0, 0, 0)
	b := frame.New(4, 4)
	b.Fill(255, 255, 255)

	assert.Zero(t, Score(a.HSV(), a.HSV()))
	assert.InDelta(t, 85.0, Score(a.HSV(), b.HSV()), 1e-9)
}

func TestRanges(t *testing.T) {
	rate := timecode.FPS(4)
	assert.Nil(t, Ranges(nil, 0, rate))

	// out-of-range and duplicate cuts are ignored
	ranges := Ranges([]int{0, 8, 8, 16, 20}, 16, rate)
	require.Len(t, ranges, 2)
	assert.Equal(t, "00:00:02.000", ranges[0].End)
	assert.Equal(t, 2, ranges[1].Index)
	assert.Equal(t, "00:00:04.000", ranges[1].End)
}

func TestSerialize(t *testing.T) {
	ranges := Ranges([]int{353}, 1205, timecode.Rate{Num: 30000, Den: 1001})
	want := "Scene 1: Start frame 00:00:00.000 - End frame 00:00:11.778\n" +
		"Scene 2: Start frame 00:00:11.778 - End frame 00:00:40.207\n"
	assert.Equal(t, want, Serialize(ranges))
	assert.Empty(t, Serialize(nil))
}
