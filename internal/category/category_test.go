package category

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/shortreel/internal/video"
	"github.com/kikiluvv/shortreel/internal/video/videotest"
	"github.com/kikiluvv/shortreel/pkg/timecode"
)

// brightnessClassifier calls bright frames food and dark frames animals.
type brightnessClassifier struct{ calls int }

func (c *brightnessClassifier) Classify(_ context.Context, img image.Image) (string, error) {
	c.calls++
	r, _, _, _ := img.At(0, 0).RGBA()
	if r>>8 > 128 {
		return "n07697537", nil
	}
	return "n02342885", nil
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, image.Image) (string, error) {
	return "", errors.New("model crashed")
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Animal", Label("n02342885"))
	assert.Equal(t, "Beauty", Label("n03814639"))
	assert.Equal(t, "Sports", Label("n04118538"))
	assert.Equal(t, "Food", Label("n07697537"))
	assert.Equal(t, Unknown, Label("n01440764"))
	assert.Equal(t, Unknown, Label(""))
}

func TestMostFrequent(t *testing.T) {
	assert.Equal(t, Unknown, MostFrequent(nil))
	assert.Equal(t, "Food", MostFrequent([]string{"Animal", "Food", "Food"}))
	assert.Equal(t, "Sports", MostFrequent([]string{"Sports", "Food", "Food", "Sports"}), "tie goes to first seen")
	assert.Equal(t, Unknown, MostFrequent([]string{Unknown, "Beauty", Unknown}))
}

func TestSample(t *testing.T) {
	got := Sample(1000, 10, 42)
	require.Len(t, got, 10)
	assert.True(t, sort.IntsAreSorted(got))

	seen := map[int]bool{}
	for _, v := range got {
		assert.False(t, seen[v], "duplicate index %d", v)
		seen[v] = true
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 1000)
	}

	assert.Equal(t, got, Sample(1000, 10, 42), "same seed, same sample")
	assert.Equal(t, []int{0, 1, 2, 3, 4}, Sample(5, 10, 7))
	assert.Nil(t, Sample(0, 10, 1))
	assert.Nil(t, Sample(10, 0, 1))
}

func TestDetect(t *testing.T) {
	b := videotest.New()
	// 30 bright frames then 10 dark ones
	frames := append(videotest.Solid(8, 8, 30, 220), videotest.Solid(8, 8, 10, 20)...)
	b.Put("filtered.mp4", timecode.FPS(10), frames...)

	cls := &brightnessClassifier{}
	res, err := New(zerolog.Nop(), b, cls, Options{Samples: 10, Seed: 3}).Detect(context.Background(), "filtered.mp4")
	require.NoError(t, err)

	require.Len(t, res.Votes, 10)
	assert.Equal(t, 10, cls.calls)

	want := Sample(40, 10, 3)
	var categories []string
	for i, v := range res.Votes {
		assert.Equal(t, want[i], v.Frame)
		expected := "Animal"
		if v.Frame < 30 {
			expected = "Food"
		}
		assert.Equal(t, expected, v.Category)
		categories = append(categories, expected)
	}
	assert.Equal(t, MostFrequent(categories), res.Category)
	assert.Zero(t, b.OpenReaders())
}

func TestDetectFewFrames(t *testing.T) {
	b := videotest.New()
	b.Put("short.mp4", timecode.FPS(10), videotest.Solid(8, 8, 3, 20)...)

	res, err := New(zerolog.Nop(), b, &brightnessClassifier{}, Options{Seed: 1}).Detect(context.Background(), "short.mp4")
	require.NoError(t, err)
	assert.Len(t, res.Votes, 3)
	assert.Equal(t, "Animal", res.Category)
}

func TestDetectSkipsUndecodableFrames(t *testing.T) {
	b := videotest.New()
	c := b.Put("in.mp4", timecode.FPS(10), videotest.Solid(8, 8, 4, 220)...)
	c.DecodeErrorAt = 2

	res, err := New(zerolog.Nop(), b, &brightnessClassifier{}, Options{Samples: 4, Seed: 1}).Detect(context.Background(), "in.mp4")
	require.NoError(t, err)
	assert.Len(t, res.Votes, 3)
	assert.Equal(t, "Food", res.Category)
}

func TestDetectErrors(t *testing.T) {
	b := videotest.New()
	b.Add("empty.mp4", &videotest.Clip{Info: video.Info{Width: 8, Height: 8, Rate: timecode.FPS(1)}, DecodeErrorAt: -1})
	b.Put("in.mp4", timecode.FPS(1), videotest.Solid(8, 8, 4, 220)...)

	d := New(zerolog.Nop(), b, failingClassifier{}, Options{})
	_, err := d.Detect(context.Background(), "empty.mp4")
	assert.ErrorIs(t, err, video.ErrEmptySource)

	_, err = d.Detect(context.Background(), "missing.mp4")
	assert.ErrorIs(t, err, video.ErrSourceUnreadable)

	_, err = d.Detect(context.Background(), "in.mp4")
	assert.ErrorContains(t, err, "model crashed")
}

func TestPreprocess(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 128, A: 255})
		}
	}

	data := Preprocess(img)
	require.Len(t, data, InputSize*InputSize*3)
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, -1.0, data[1], 1e-6)
	assert.InDelta(t, 128/127.5-1, data[2], 1e-6)
	lo, hi := data[0], data[0]
	for _, v := range data {
		lo, hi = min(lo, v), max(hi, v)
	}
	assert.GreaterOrEqual(t, lo, float32(-1))
	assert.LessOrEqual(t, hi, float32(1))
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, -1, Argmax(nil))
	assert.Equal(t, 2, Argmax([]float32{0.1, -3, 7, 7, 2}))
	assert.Equal(t, 0, Argmax([]float32{-1}))
}

func TestReadSynsets(t *testing.T) {
	got, err := ReadSynsets(strings.NewReader("n01440764 tench, Tinca tinca\n\nn01443537 goldfish\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"n01440764", "n01443537"}, got)

	_, err = ReadSynsets(strings.NewReader("\n  \n"))
	assert.Error(t, err)
}
