package predicate

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/shortreel/internal/frame"
	"github.com/kikiluvv/shortreel/internal/video"
)

func solid(v uint8) *frame.Frame {
	f := frame.New(64, 48)
	f.Fill(v, v, v)
	return f
}

// wave renders a horizontal sine pattern shifted right by dx pixels.
func wave(base, amp float64, dx int) *frame.Frame {
	f := frame.New(64, 48)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := uint8(base + amp*math.Sin(float64(x-dx)*0.3))
			f.Set(x, y, v, v, v)
		}
	}
	return f
}

func checkerboard() *frame.Frame {
	f := frame.New(16, 16)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			if (x+y)%2 == 0 {
				f.Set(x, y, 255, 255, 255)
			}
		}
	}
	return f
}

func TestReasonText(t *testing.T) {
	assert.Equal(t, "Quality below threshold", LowQuality.Message())
	assert.Equal(t, "Dark frame", Dark.Message())
	assert.Equal(t, "Shaky frame", Shaky.Message())
	assert.Equal(t, "Noisy frame", Noisy.Message())
	assert.Equal(t, "dark", Dark.String())
	assert.Equal(t, "reason(9)", Reason(9).String())

	for _, r := range Reasons {
		got, ok := ParseMessage(" " + r.Message())
		require.True(t, ok)
		assert.Equal(t, r, got)
	}
	_, ok := ParseMessage("Blurry frame")
	assert.False(t, ok)
}

func TestIsLowQuality(t *testing.T) {
	assert.True(t, IsLowQuality(solid(10), 30))
	assert.False(t, IsLowQuality(solid(30), 30))
	assert.False(t, IsLowQuality(solid(200), 30))
}

func TestIsDarkUsesLuminance(t *testing.T) {
	f := frame.New(8, 8)
	f.Fill(200, 0, 0) // channel mean 66.7, luminance 60

	assert.True(t, IsDark(f.Gray(), 65))
	assert.False(t, IsLowQuality(f, 65))
}

func TestIsNoisy(t *testing.T) {
	assert.True(t, IsNoisy(checkerboard(), 30))
	assert.False(t, IsNoisy(solid(128), 0))
	assert.InDelta(t, 0, NoiseLevel(solid(77)), 1e-9)
}

func TestIsShakyWithoutPrevious(t *testing.T) {
	assert.False(t, IsShaky(nil, wave(128, 60, 0).Gray(), 0, DefaultFlowOptions()))
}

func TestMotionStaticPair(t *testing.T) {
	a := wave(128, 60, 0).Gray()
	assert.Zero(t, Motion(a, a, DefaultFlowOptions()))
}

func TestMotionShift(t *testing.T) {
	a := wave(128, 60, 0).Gray()
	b := wave(128, 60, 1).Gray()

	assert.Greater(t, Motion(a, b, DefaultFlowOptions()), 1.0)
	assert.True(t, IsShaky(a, b, 1.0, DefaultFlowOptions()))
}

func TestHornSchunckDirection(t *testing.T) {
	a := wave(128, 60, 0).Gray()
	b := wave(128, 60, 1).Gray()

	u, v := hornSchunck(a, b, 10, 50)
	var su, sv float64
	for i := range u {
		su += u[i]
		sv += v[i]
	}
	n := float64(len(u))
	assert.Greater(t, su/n, 0.1, "pattern moved right")
	assert.InDelta(t, 0, sv/n, 0.05, "no vertical motion")
}

func TestMotionDownsampled(t *testing.T) {
	a := wave(128, 60, 0).Gray()
	b := wave(128, 60, 2).Gray()

	full := Motion(a, b, FlowOptions{Alpha: 10, Iterations: 20})
	half := Motion(a, b, FlowOptions{Alpha: 10, Iterations: 20, MaxWidth: 32})
	assert.Greater(t, half, 0.0)
	assert.Greater(t, full, 0.0)
}

func TestMotionSizeMismatch(t *testing.T) {
	a := solid(1).Gray()
	b := frame.New(8, 8).Gray()
	assert.Zero(t, Motion(a, b, DefaultFlowOptions()))
}

func TestSetOrderAndGates(t *testing.T) {
	s, err := NewSet(Options{
		Quality:    Gate{Enabled: true, Threshold: 30},
		Brightness: Gate{Enabled: true, Threshold: 30},
		Noise:      Gate{Enabled: true, Threshold: 30},
		Flow:       DefaultFlowOptions(),
	})
	require.NoError(t, err)

	assert.Equal(t, []Reason{LowQuality, Dark}, s.Next(solid(5)))
	assert.Empty(t, s.Next(solid(200)))

	cb := checkerboard()
	assert.Equal(t, []Reason{Noisy}, s.Next(cb))
}

func TestSetDisabledGatesNeverFire(t *testing.T) {
	s, err := NewSet(Options{
		Quality:    Gate{Threshold: 255},
		Brightness: Gate{Threshold: 255},
		Motion:     Gate{Threshold: 0},
		Noise:      Gate{Threshold: 0},
	})
	require.NoError(t, err)

	assert.Empty(t, s.Next(solid(0)))
	assert.Empty(t, s.Next(checkerboard()))
}

func TestSetShakyTracksPreviousInputFrame(t *testing.T) {
	s, err := NewSet(Options{
		Quality: Gate{Enabled: true, Threshold: 30},
		Motion:  Gate{Enabled: true, Threshold: 0.5},
		Flow:    DefaultFlowOptions(),
	})
	require.NoError(t, err)

	// first frame is never shaky
	assert.Empty(t, s.Next(wave(128, 60, 0)))

	// moved and too dim: both fire, and it still becomes the previous frame
	dim := wave(12, 10, 3)
	assert.Equal(t, []Reason{LowQuality, Shaky}, s.Next(dim))

	// identical to the dropped frame, so no motion
	assert.Equal(t, []Reason{LowQuality}, s.Next(wave(12, 10, 3)))
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	o := DefaultOptions()
	o.Noise.Threshold = -1
	err := o.Validate()
	assert.True(t, errors.Is(err, video.ErrInvalidOptions))

	o = DefaultOptions()
	o.Motion.Enabled = true
	o.Flow.Alpha = 0
	_, err = NewSet(o)
	assert.ErrorIs(t, err, video.ErrInvalidOptions)

	o.Flow = FlowOptions{Alpha: 1, Iterations: 0}
	assert.ErrorIs(t, o.Validate(), video.ErrInvalidOptions)

	// flow settings are only checked when the motion gate is on
	o.Motion.Enabled = false
	assert.NoError(t, o.Validate())
}
