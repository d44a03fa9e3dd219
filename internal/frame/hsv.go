package frame

// HSV holds three 8-bit planes in OpenCV's 8-bit HSV convention: hue in
// [0, 180), saturation and value in [0, 255].
type HSV struct {
	H, S, V []uint8
}

// HSV converts the frame to hue/saturation/value planes.
func (f *Frame) HSV() HSV {
	n := f.Width * f.Height
	out := HSV{
		H: make([]uint8, n),
		S: make([]uint8, n),
		V: make([]uint8, n),
	}

	for i, j := 0, 0; j < n; i, j = i+Channels, j+1 {
		r := int(f.Pix[i])
		g := int(f.Pix[i+1])
		b := int(f.Pix[i+2])

		v := max(r, g, b)
		mn := min(r, g, b)
		diff := v - mn

		var s int
		if v != 0 {
			s = (255*diff + v/2) / v
		}

		var hue float64
		if diff != 0 {
			switch v {
			case r:
				hue = 60 * float64(g-b) / float64(diff)
			case g:
				hue = 120 + 60*float64(b-r)/float64(diff)
			default:
				hue = 240 + 60*float64(r-g)/float64(diff)
			}
			if hue < 0 {
				hue += 360
			}
		}

		h := int(hue/2 + 0.5)
		if h >= 180 {
			h -= 180
		}

		out.H[j] = uint8(h)
		out.S[j] = uint8(s)
		out.V[j] = uint8(v)
	}
	return out
}

// meanAbsDelta is the mean absolute difference of two equally sized planes.
func meanAbsDelta(a, b []uint8) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var sum uint64
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		sum += uint64(d)
	}
	return float64(sum) / float64(len(a))
}

// Delta returns the per-channel mean absolute differences between two HSV
// images of the same size.
func (h HSV) Delta(other HSV) (dh, ds, dv float64) {
	return meanAbsDelta(h.H, other.H), meanAbsDelta(h.S, other.S), meanAbsDelta(h.V, other.V)
}
