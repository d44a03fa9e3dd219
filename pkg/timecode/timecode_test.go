package timecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00.000"},
		{2, "00:00:02.000"},
		{5.759, "00:00:05.759"},
		{59.9996, "00:01:00.000"},
		{3725.5, "01:02:05.500"},
		{-1, "00:00:00.000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.seconds), "seconds=%v", tt.seconds)
	}
}

func TestParse(t *testing.T) {
	p, err := Parse("01:02:05.500")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Hours)
	assert.Equal(t, 2, p.Minutes)
	assert.InDelta(t, 5.5, p.Seconds, 1e-9)
	assert.InDelta(t, 3725.5, p.TotalSeconds(), 1e-9)

	// some scene lists carry end timecodes without a fraction
	p, err = Parse("00:00:11")
	require.NoError(t, err)
	assert.InDelta(t, 11.0, p.TotalSeconds(), 1e-9)

	for _, bad := range []string{"", "12", "00:05", "aa:00:00", "00:-1:00", "00:00:x", "00:00:00:00"} {
		_, err := Parse(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestToFrame(t *testing.T) {
	idx, err := ToFrame("00:00:02.000", FPS(4))
	require.NoError(t, err)
	assert.Equal(t, 8, idx)

	idx, err = ToFrame("00:00:04.000", FPS(4))
	require.NoError(t, err)
	assert.Equal(t, 16, idx)

	idx, err = ToFrame("01:00:00.000", FPS(25))
	require.NoError(t, err)
	assert.Equal(t, 90000, idx)

	_, err = ToFrame("garbage", FPS(25))
	assert.Error(t, err)
}

func TestToFrameHighRates(t *testing.T) {
	tests := []struct {
		tc   string
		rate Rate
		want int
	}{
		// plain floor when the timecode is not a rendered frame boundary
		{"00:00:00.001", FPS(2000), 2},
		{"00:00:00.0041", FPS(240), 0},
		{"00:00:00.003", FPS(240), 0},
		// FromFrame(1, 240) rounds 4.1667 ms down to 00:00:00.004
		{"00:00:00.004", FPS(240), 1},
		{"00:00:00.033", Rate{Num: 30000, Den: 1001}, 1},
	}
	for _, tt := range tests {
		got, err := ToFrame(tt.tc, tt.rate)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "tc=%s rate=%s", tt.tc, tt.rate)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	rates := []Rate{FPS(1), FPS(4), FPS(24), FPS(30), {Num: 30000, Den: 1001}, FPS(60), FPS(120), FPS(240)}
	for _, rate := range rates {
		for frame := 0; frame < 2000; frame += 7 {
			tc := FromFrame(frame, rate)
			got, err := ToFrame(tc, rate)
			require.NoError(t, err)
			require.Equal(t, frame, got, "rate=%s tc=%s", rate, tc)
		}
	}
}

func TestParseRate(t *testing.T) {
	r, err := ParseRate("30000/1001")
	require.NoError(t, err)
	assert.Equal(t, Rate{Num: 30000, Den: 1001}, r)
	assert.InDelta(t, 29.97, r.Float(), 0.001)

	r, err = ParseRate("25")
	require.NoError(t, err)
	assert.Equal(t, FPS(25), r)

	r, err = ParseRate("29.97")
	require.NoError(t, err)
	assert.Equal(t, Rate{Num: 29970, Den: 1000}, r)

	for _, bad := range []string{"0/0", "30/0", "x/1", "-5", "abc"} {
		_, err := ParseRate(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestRateSeconds(t *testing.T) {
	assert.InDelta(t, 2.0, FPS(1).Seconds(2), 1e-9)
	assert.InDelta(t, 0.25, FPS(4).Seconds(1), 1e-9)
	assert.Equal(t, "4/1", FPS(4).String())
}
