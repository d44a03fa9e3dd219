package frame

// gaussian5 is the 5-tap binomial kernel OpenCV uses for a 5x5 Gaussian with
// sigma <= 0, scaled by 16.
var gaussian5 = [5]uint32{1, 4, 6, 4, 1}

// reflect101 maps an out-of-range coordinate back into [0, n) mirroring
// around the edge pixel (gfedcb|abcdefgh|gfedcba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// GaussianBlur5 returns a copy of f smoothed with a separable 5x5 Gaussian.
func GaussianBlur5(f *Frame) *Frame {
	w, h := f.Width, f.Height
	tmp := make([]uint32, len(f.Pix))

	// horizontal pass, kept at 16x scale
	for y := 0; y < h; y++ {
		row := y * w * Channels
		for x := 0; x < w; x++ {
			for c := 0; c < Channels; c++ {
				var acc uint32
				for k := -2; k <= 2; k++ {
					xx := reflect101(x+k, w)
					acc += gaussian5[k+2] * uint32(f.Pix[row+xx*Channels+c])
				}
				tmp[row+x*Channels+c] = acc
			}
		}
	}

	out := New(w, h)
	// vertical pass, 256x scale, round to nearest
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < Channels; c++ {
				var acc uint32
				for k := -2; k <= 2; k++ {
					yy := reflect101(y+k, h)
					acc += gaussian5[k+2] * tmp[(yy*w+x)*Channels+c]
				}
				out.Pix[(y*w+x)*Channels+c] = uint8((acc + 128) >> 8)
			}
		}
	}
	return out
}

// MeanAbsDiff returns the mean absolute per-sample difference of two frames
// of equal size.
func MeanAbsDiff(a, b *Frame) float64 {
	n := len(a.Pix)
	if n == 0 || n != len(b.Pix) {
		return 0
	}
	var sum uint64
	for i := 0; i < n; i++ {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += uint64(d)
	}
	return float64(sum) / float64(n)
}
