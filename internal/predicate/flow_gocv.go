//go:build gocv

package predicate

import (
	"gocv.io/x/gocv"

	"github.com/kikiluvv/shortreel/internal/frame"
)

// Motion returns the L2 norm of the dense optical-flow field from prev to
// cur, estimated with OpenCV's Farneback method.
func Motion(prev, cur *frame.Plane, _ FlowOptions) float64 {
	if prev.Width != cur.Width || prev.Height != cur.Height || len(cur.Pix) == 0 {
		return 0
	}

	a, err := gocv.NewMatFromBytes(prev.Height, prev.Width, gocv.MatTypeCV8U, prev.Pix)
	if err != nil {
		return 0
	}
	defer a.Close()
	b, err := gocv.NewMatFromBytes(cur.Height, cur.Width, gocv.MatTypeCV8U, cur.Pix)
	if err != nil {
		return 0
	}
	defer b.Close()

	flow := gocv.NewMat()
	defer flow.Close()
	gocv.CalcOpticalFlowFarneback(a, b, &flow, 0.5, 3, 15, 3, 5, 1.2, 0)

	return gocv.Norm(flow, gocv.NormL2)
}
