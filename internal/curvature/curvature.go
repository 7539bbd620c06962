// Package curvature classifies each pixel of an image by the sign of its
// local Laplacian, discriminating peaks from ridges and saddle points ahead
// of summit estimation.
package curvature

import (
	"math"

	"github.com/radioimg/gaussfind/internal/image"
)

// Map holds the real-valued Laplacian response and its sign classification.
type Map struct {
	Width  int
	Height int
	Value  []float32 // row-major Laplacian response
	Sign   []int8    // -1, 0, +1, same shape
}

// laplacian is the fixed 3x3 discrete Laplacian kernel.
var laplacian = [3][3]float32{
	{1, 1, 1},
	{1, -8, 1},
	{1, 1, 1},
}

// Compute convolves img with the 3x3 Laplacian kernel (edge pixels use
// replicated borders) and classifies each pixel's sign against +-sigmaC.
// sigmaC <= 0 selects the default: the IQR-based RMS of the Laplacian
// response itself.
func Compute(img image.PixelImage, sigmaC float64) Map {
	w, h := img.Width, img.Height
	value := make([]float32, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float32
			anyNaN := false
			for dy := -1; dy <= 1; dy++ {
				yy := clamp(y+dy, h)
				for dx := -1; dx <= 1; dx++ {
					xx := clamp(x+dx, w)
					v := img.At(xx, yy)
					if math.IsNaN(float64(v)) {
						anyNaN = true
						continue
					}
					sum += laplacian[dy+1][dx+1] * v
				}
			}
			if anyNaN {
				value[y*w+x] = float32(math.NaN())
			} else {
				value[y*w+x] = sum
			}
		}
	}

	if sigmaC <= 0 {
		sigmaC = float64(image.IQRScale(value))
		if math.IsNaN(sigmaC) || sigmaC <= 0 {
			sigmaC = 1
		}
	}

	sign := make([]int8, w*h)
	for i, v := range value {
		if math.IsNaN(float64(v)) {
			continue
		}
		switch {
		case float64(v) <= -sigmaC:
			sign[i] = -1
		case float64(v) >= sigmaC:
			sign[i] = 1
		}
	}

	return Map{Width: w, Height: h, Value: value, Sign: sign}
}

// At returns the sign classification at (x,y).
func (m Map) At(x, y int) int8 {
	return m.Sign[y*m.Width+x]
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}
