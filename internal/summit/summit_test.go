package summit

import (
	"math"
	"testing"

	"github.com/radioimg/gaussfind/internal/catalog"
	"github.com/radioimg/gaussfind/internal/curvature"
	"github.com/radioimg/gaussfind/internal/image"
	"github.com/radioimg/gaussfind/internal/segment"
)

func gaussianIsland(w, h int, amp, xo, yo, sx, sy float64) segment.Island {
	data := make([]float32, w*h)
	rms := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-xo, float64(y)-yo
			v := amp * math.Exp(-0.5*(dx*dx/(sx*sx)+dy*dy/(sy*sy)))
			data[y*w+x] = float32(v)
			rms[y*w+x] = 0.05
		}
	}
	return segment.Island{ID: 0, XMin: 0, XMax: w, YMin: 0, YMax: h, Pixels: data, RMS: rms}
}

func TestEstimateSinglePositiveSummit(t *testing.T) {
	isl := gaussianIsland(16, 16, 2.0, 8, 8, 3, 3)
	img := image.PixelImage{Width: 16, Height: 16, Data: isl.Pixels}
	curv := curvature.Compute(img, 0.01)
	beam := image.PixelBeam{A: 3, B: 3, PADeg: 0}

	e := Estimator{}
	seeds := e.Estimate(isl, curv, beam)
	if len(seeds) == 0 {
		t.Fatalf("expected at least one seed")
	}
	s := seeds[0]
	if s.Value[PAmp] <= 0 {
		t.Fatalf("expected positive amplitude seed, got %f", s.Value[PAmp])
	}
	if s.Value[PXo] < 6 || s.Value[PXo] > 10 {
		t.Fatalf("xo seed %f far from true peak 8", s.Value[PXo])
	}
}

func TestEstimateTinyIslandIsFixed2PSF(t *testing.T) {
	data := []float32{1, 1, 1, 1}
	rms := []float32{0.05, 0.05, 0.05, 0.05}
	isl := segment.Island{ID: 0, XMin: 0, XMax: 2, YMin: 0, YMax: 2, Pixels: data, RMS: rms}
	img := image.PixelImage{Width: 2, Height: 2, Data: data}
	curv := curvature.Compute(img, 0.01)
	beam := image.PixelBeam{A: 3, B: 3, PADeg: 0}

	e := Estimator{}
	seeds := e.Estimate(isl, curv, beam)
	if len(seeds) != 1 {
		t.Fatalf("got %d seeds, want 1 for tiny island", len(seeds))
	}
	if !seeds[0].Flags.Has(catalog.FIXED2PSF) {
		t.Fatalf("expected FIXED2PSF on tiny island seed")
	}
	if !seeds[0].Fixed[PSx] || !seeds[0].Fixed[PSy] || !seeds[0].Fixed[PTheta] {
		t.Fatalf("expected shape parameters fixed on tiny island seed")
	}
}

func TestEstimateTooSmallIslandIsAllFixed(t *testing.T) {
	// 3 finite pixels (under the 4-pixel floor): too small to fit at all.
	data := []float32{1, 1, float32(math.NaN()), 1}
	rms := []float32{0.05, 0.05, 0.05, 0.05}
	isl := segment.Island{ID: 0, XMin: 0, XMax: 2, YMin: 0, YMax: 2, Pixels: data, RMS: rms}
	img := image.PixelImage{Width: 2, Height: 2, Data: data}
	curv := curvature.Compute(img, 0.01)
	beam := image.PixelBeam{A: 3, B: 3, PADeg: 0}

	e := Estimator{}
	seeds := e.Estimate(isl, curv, beam)
	if len(seeds) != 1 {
		t.Fatalf("got %d seeds, want 1 for a too-small island", len(seeds))
	}
	s := seeds[0]
	if !s.Flags.Has(catalog.FITERRSMALL) {
		t.Fatalf("expected FITERRSMALL on a 3-pixel island seed")
	}
	if !s.Flags.Has(catalog.NOTFIT) {
		t.Fatalf("expected NOTFIT on a 3-pixel island seed")
	}
	for p := 0; p < NumParams; p++ {
		if !s.Fixed[p] {
			t.Fatalf("expected all parameters fixed on a too-small island seed, param %d is free", p)
		}
	}
}
