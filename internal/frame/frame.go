// Package frame holds decoded video frames and the pixel statistics the
// predicates and scene detector are built on.
package frame

import (
	"fmt"
	"image"
	"image/color"
)

// Channels is the number of interleaved samples per pixel (RGB24).
const Channels = 3

// Frame is one decoded RGB24 image.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a black frame.
func New(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*Channels),
	}
}

// Size returns the byte length of a frame with the given dimensions.
func Size(width, height int) int {
	return width * height * Channels
}

// Validate checks that the pixel buffer matches the declared dimensions.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if len(f.Pix) != Size(f.Width, f.Height) {
		return fmt.Errorf("frame buffer is %d bytes, want %d", len(f.Pix), Size(f.Width, f.Height))
	}
	return nil
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// At returns the RGB samples at (x, y).
func (f *Frame) At(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * Channels
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Set writes the RGB samples at (x, y).
func (f *Frame) Set(x, y int, r, g, b uint8) {
	i := (y*f.Width + x) * Channels
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// Fill paints every pixel with one color.
func (f *Frame) Fill(r, g, b uint8) {
	for i := 0; i < len(f.Pix); i += Channels {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
	}
}

// Mean returns the mean sample value across all channels.
func (f *Frame) Mean() float64 {
	if len(f.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range f.Pix {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(f.Pix))
}

// Image converts the frame to an *image.RGBA.
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for p, i := 0, 0; p < len(f.Pix); p, i = p+Channels, i+4 {
		img.Pix[i] = f.Pix[p]
		img.Pix[i+1] = f.Pix[p+1]
		img.Pix[i+2] = f.Pix[p+2]
		img.Pix[i+3] = 0xff
	}
	return img
}

// FromImage converts any image to an RGB24 frame.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := New(b.Dx(), b.Dy())

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < f.Height; y++ {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride+(b.Min.X-rgba.Rect.Min.X)*4:]
			for x := 0; x < f.Width; x++ {
				f.Set(x, y, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
		return f
	}

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			f.Set(x, y, c.R, c.G, c.B)
		}
	}
	return f
}
