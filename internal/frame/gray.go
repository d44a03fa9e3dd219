package frame

// Plane is a single-channel 8-bit image.
type Plane struct {
	Width  int
	Height int
	Pix    []uint8
}

// Mean returns the mean sample value.
func (p *Plane) Mean() float64 {
	if len(p.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range p.Pix {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(p.Pix))
}

// Gray converts the frame to BT.601 luminance using the same fixed-point
// weights as OpenCV's RGB2GRAY.
func (f *Frame) Gray() *Plane {
	p := &Plane{
		Width:  f.Width,
		Height: f.Height,
		Pix:    make([]uint8, f.Width*f.Height),
	}
	for i, j := 0, 0; j < len(p.Pix); i, j = i+Channels, j+1 {
		r := uint32(f.Pix[i])
		g := uint32(f.Pix[i+1])
		b := uint32(f.Pix[i+2])
		p.Pix[j] = uint8((r*4899 + g*9617 + b*1868 + 8192) >> 14)
	}
	return p
}

// Shrink box-averages the plane by an integer factor k. Trailing rows and
// columns that do not fill a whole box are averaged over what remains.
func (p *Plane) Shrink(k int) *Plane {
	if k <= 1 {
		return p
	}
	w := (p.Width + k - 1) / k
	h := (p.Height + k - 1) / k
	out := &Plane{Width: w, Height: h, Pix: make([]uint8, w*h)}
	for by := 0; by < h; by++ {
		for bx := 0; bx < w; bx++ {
			var sum, n uint32
			for y := by * k; y < (by+1)*k && y < p.Height; y++ {
				for x := bx * k; x < (bx+1)*k && x < p.Width; x++ {
					sum += uint32(p.Pix[y*p.Width+x])
					n++
				}
			}
			out.Pix[by*w+bx] = uint8((sum + n/2) / n)
		}
	}
	return out
}
