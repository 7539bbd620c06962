package curvature

import (
	"math"
	"testing"

	"github.com/radioimg/gaussfind/internal/image"
)

func TestComputeFlatImageIsZero(t *testing.T) {
	w, h := 10, 10
	data := make([]float32, w*h)
	for i := range data {
		data[i] = 5
	}
	img := image.PixelImage{Width: w, Height: h, Data: data}

	m := Compute(img, 1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if m.At(x, y) != 0 {
				t.Fatalf("sign(%d,%d)=%d, want 0 on flat image", x, y, m.At(x, y))
			}
		}
	}
}

func TestComputePeakIsCurvedDown(t *testing.T) {
	w, h := 9, 9
	data := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x-4), float64(y-4)
			data[y*w+x] = float32(10 * math.Exp(-(dx*dx+dy*dy)/4))
		}
	}
	img := image.PixelImage{Width: w, Height: h, Data: data}

	m := Compute(img, 0.5)
	if m.At(4, 4) != -1 {
		t.Fatalf("sign at peak = %d, want -1 (curved down)", m.At(4, 4))
	}
}

func TestComputeNaNPropagates(t *testing.T) {
	w, h := 5, 5
	data := make([]float32, w*h)
	data[2*w+2] = float32(math.NaN())
	img := image.PixelImage{Width: w, Height: h, Data: data}

	m := Compute(img, 1)
	if !math.IsNaN(float64(m.Value[2*w+2])) {
		t.Fatalf("expected NaN laplacian response at masked pixel")
	}
	if m.At(2, 2) != 0 {
		t.Fatalf("sign at NaN pixel = %d, want 0", m.At(2, 2))
	}
}
