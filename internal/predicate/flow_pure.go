//go:build !gocv

package predicate

import (
	"math"

	"github.com/kikiluvv/shortreel/internal/frame"
)

// Motion returns the L2 norm of the dense optical-flow field from prev to
// cur, estimated with Horn-Schunck.
func Motion(prev, cur *frame.Plane, opts FlowOptions) float64 {
	if prev.Width != cur.Width || prev.Height != cur.Height || len(cur.Pix) == 0 {
		return 0
	}

	k := 1
	if opts.MaxWidth > 0 && cur.Width > opts.MaxWidth {
		k = (cur.Width + opts.MaxWidth - 1) / opts.MaxWidth
	}

	u, v := hornSchunck(prev.Shrink(k), cur.Shrink(k), opts.Alpha, opts.Iterations)

	var sum float64
	for i := range u {
		sum += u[i]*u[i] + v[i]*v[i]
	}
	// Vectors grow by k and the field by k*k samples at full size.
	return math.Sqrt(sum) * float64(k*k)
}

// hornSchunck estimates per-pixel flow (u, v) between a and b.
func hornSchunck(a, b *frame.Plane, alpha float64, iterations int) (u, v []float64) {
	w, h := a.Width, a.Height
	n := w * h

	at := func(p *frame.Plane, x, y int) float64 {
		if x >= w {
			x = w - 1
		}
		if y >= h {
			y = h - 1
		}
		return float64(p.Pix[y*w+x])
	}

	ix := make([]float64, n)
	iy := make([]float64, n)
	it := make([]float64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a00, a10, a01, a11 := at(a, x, y), at(a, x+1, y), at(a, x, y+1), at(a, x+1, y+1)
			b00, b10, b01, b11 := at(b, x, y), at(b, x+1, y), at(b, x, y+1), at(b, x+1, y+1)
			i := y*w + x
			ix[i] = 0.25 * (a10 - a00 + a11 - a01 + b10 - b00 + b11 - b01)
			iy[i] = 0.25 * (a01 - a00 + a11 - a10 + b01 - b00 + b11 - b10)
			it[i] = 0.25 * (b00 - a00 + b10 - a10 + b01 - a01 + b11 - a11)
		}
	}

	u = make([]float64, n)
	v = make([]float64, n)
	nu := make([]float64, n)
	nv := make([]float64, n)
	a2 := alpha * alpha

	avg := func(f []float64, x, y int) float64 {
		l, r, t, d := x-1, x+1, y-1, y+1
		if l < 0 {
			l = 0
		}
		if r >= w {
			r = w - 1
		}
		if t < 0 {
			t = 0
		}
		if d >= h {
			d = h - 1
		}
		return 0.25 * (f[y*w+l] + f[y*w+r] + f[t*w+x] + f[d*w+x])
	}

	for iter := 0; iter < iterations; iter++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				ub, vb := avg(u, x, y), avg(v, x, y)
				d := (ix[i]*ub + iy[i]*vb + it[i]) / (a2 + ix[i]*ix[i] + iy[i]*iy[i])
				nu[i] = ub - ix[i]*d
				nv[i] = vb - iy[i]*d
			}
		}
		u, nu = nu, u
		v, nv = nv, v
	}
	return u, v
}
