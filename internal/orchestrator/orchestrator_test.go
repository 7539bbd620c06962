package orchestrator

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/radioimg/gaussfind/internal/catalog"
	"github.com/radioimg/gaussfind/internal/curvature"
	"github.com/radioimg/gaussfind/internal/image"
	"github.com/radioimg/gaussfind/internal/segment"
	"github.com/radioimg/gaussfind/internal/summit"
)

// linearWCS is a toy WCSProvider for tests: pixels map to sky through a flat
// linear scale, with no rotation or distortion.
type linearWCS struct {
	scaleDeg float64 // degrees per pixel, both axes
	originX, originY float64
}

func (w linearWCS) PixToSky(x, y float64) image.SkyCoord {
	return image.SkyCoord{RADeg: (x - w.originX) * w.scaleDeg, DecDeg: (y - w.originY) * w.scaleDeg}
}

func (w linearWCS) SkyToPix(s image.SkyCoord) (x, y float64) {
	return s.RADeg/w.scaleDeg + w.originX, s.DecDeg/w.scaleDeg + w.originY
}

func (w linearWCS) SkyVectorLengthDeg(x, y, lengthPix, thetaDeg float64) float64 {
	return lengthPix * w.scaleDeg
}

func gaussianImage(w, h int, amp, xo, yo, sx, sy, noiseRMS float64) image.PixelImage {
	rng := rand.New(rand.NewSource(1))
	data := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-xo, float64(y)-yo
			v := amp*math.Exp(-0.5*(dx*dx/(sx*sx)+dy*dy/(sy*sy))) + noiseRMS*rng.NormFloat64()
			data[y*w+x] = float32(v)
		}
	}
	return image.PixelImage{Width: w, Height: h, Data: data}
}

func testConfig() Config {
	return Config{
		SeedClip:       5,
		FloodClip:      4,
		BoxSizeBeams:   10,
		NpixStep:       3,
		BackgroundMode: "mesh",
		MeshSizeBeams:  20,
		Seed:           42,
	}
}

func TestNewFailsWithoutBeam(t *testing.T) {
	img := gaussianImage(32, 32, 1, 16, 16, 3, 3, 0.01)
	_, err := New(testConfig(), img, image.Beam{}, image.PixelScale{DegPerPixelX: 1e-4, DegPerPixelY: 1e-4}, linearWCS{scaleDeg: 1e-4}, nil)
	if err == nil {
		t.Fatalf("expected MissingBeam error for zero beam with no provider")
	}
}

func TestRunDetectsSingleGaussian(t *testing.T) {
	img := gaussianImage(64, 64, 1.0, 32, 32, 3, 3, 0.01)
	beam := image.Beam{MajorDeg: 3 * 1e-4 * image.SigmaToFWHM, MinorDeg: 3 * 1e-4 * image.SigmaToFWHM, PADeg: 90}
	scale := image.PixelScale{DegPerPixelX: 1e-4, DegPerPixelY: 1e-4}
	wcs := linearWCS{scaleDeg: 1e-4}

	ctx, err := New(testConfig(), img, beam, scale, wcs, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	entries, err := ctx.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var comps []*catalog.Component
	for _, e := range entries {
		if e.Kind == catalog.EntryComponent {
			comps = append(comps, e.Component)
		}
	}
	if len(comps) != 1 {
		t.Fatalf("expected 1 component, got %d", len(comps))
	}
	if math.Abs(comps[0].PeakFlux-1.0) > 0.15 {
		t.Fatalf("peak flux = %f, want ~1.0", comps[0].PeakFlux)
	}
	if comps[0].RADeg < 0 || comps[0].RADeg >= 360 {
		t.Fatalf("RA %f not normalized to [0,360)", comps[0].RADeg)
	}
	if comps[0].AArcsec < comps[0].BArcsec {
		t.Fatalf("expected a >= b, got a=%f b=%f", comps[0].AArcsec, comps[0].BArcsec)
	}
	if comps[0].PADeg <= -90 || comps[0].PADeg > 90 {
		t.Fatalf("pa %f not in (-90,90]", comps[0].PADeg)
	}
}

func TestRunCancellation(t *testing.T) {
	img := gaussianImage(64, 64, 1.0, 32, 32, 3, 3, 0.01)
	beam := image.Beam{MajorDeg: 3 * 1e-4 * image.SigmaToFWHM, MinorDeg: 3 * 1e-4 * image.SigmaToFWHM, PADeg: 90}
	scale := image.PixelScale{DegPerPixelX: 1e-4, DegPerPixelY: 1e-4}
	wcs := linearWCS{scaleDeg: 1e-4}

	ctx, err := New(testConfig(), img, beam, scale, wcs, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = ctx.Run(cancelledCtx)
	if err == nil {
		t.Fatalf("expected Cancelled error for a pre-cancelled context")
	}
}

func TestFitIslandTooSmallIsSkippedWithAllErrorsNegativeOne(t *testing.T) {
	// 3 finite pixels: too small to fit, must be reported at the seed
	// estimate with NOTFIT set and every error -1.
	data := []float32{1, 1, float32(math.NaN()), 1}
	rms := []float32{0.05, 0.05, 0.05, 0.05}
	isl := segment.Island{ID: 0, XMin: 0, XMax: 2, YMin: 0, YMax: 2, Pixels: data, RMS: rms}

	img := image.PixelImage{Width: 2, Height: 2, Data: data}
	ctx := &Context{
		Config:     testConfig(),
		PixelBeam:  image.PixelBeam{A: 3, B: 3, PADeg: 0},
		Beam:       image.Beam{MajorDeg: 3e-4 * image.SigmaToFWHM, MinorDeg: 3e-4 * image.SigmaToFWHM, PADeg: 0},
		Scale:      image.PixelScale{DegPerPixelX: 1e-4, DegPerPixelY: 1e-4},
		WCS:        linearWCS{scaleDeg: 1e-4},
		Background: image.PixelImage{Width: 2, Height: 2, Data: make([]float32, 4)},
		RMS:        image.PixelImage{Width: 2, Height: 2, Data: rms},
		Curvature:  curvature.Compute(img, 0.01),
	}

	entries := ctx.fitIsland(isl, summit.Estimator{InnerClip: 5, OuterClip: 4})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry for a too-small island, got %d", len(entries))
	}
	comp := entries[0].Component
	if !comp.Flags.Has(catalog.NOTFIT) {
		t.Fatalf("expected NOTFIT set on a too-small island's component")
	}
	errs := []float64{comp.ErrPeakFlux, comp.ErrAArcsec, comp.ErrBArcsec, comp.ErrRADeg, comp.ErrDecDeg, comp.ErrPADeg, comp.ErrIntFlux}
	for i, e := range errs {
		if e != -1 {
			t.Fatalf("error[%d] = %f, want -1 for a too-small island's component", i, e)
		}
	}
}

func TestRunPriorizedPreservesNumbering(t *testing.T) {
	img := gaussianImage(64, 64, 1.0, 32, 32, 3, 3, 0.01)
	beam := image.Beam{MajorDeg: 3 * 1e-4 * image.SigmaToFWHM, MinorDeg: 3 * 1e-4 * image.SigmaToFWHM, PADeg: 90}
	scale := image.PixelScale{DegPerPixelX: 1e-4, DegPerPixelY: 1e-4}
	wcs := linearWCS{scaleDeg: 1e-4}

	cfg := testConfig()
	cfg.PriorizedStage = 2
	ctx, err := New(cfg, img, beam, scale, wcs, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	inputs := []PriorSource{
		{Island: 7, Source: 3, RADeg: wcs.PixToSky(32, 32).RADeg, DecDeg: wcs.PixToSky(32, 32).DecDeg, AArcsec: 3 * 1e-4 * image.SigmaToFWHM * 3600, BArcsec: 3 * 1e-4 * image.SigmaToFWHM * 3600, PADeg: 0, PeakFlux: 0.9},
	}

	entries, err := ctx.RunPriorized(context.Background(), inputs)
	if err != nil {
		t.Fatalf("RunPriorized failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	comp := entries[0].Component
	if comp.Island != 7 || comp.Source != 3 {
		t.Fatalf("expected island=7 source=3 preserved, got island=%d source=%d", comp.Island, comp.Source)
	}
	if !comp.Flags.Has(catalog.PRIORIZED) {
		t.Fatalf("expected PRIORIZED flag set")
	}
	if math.Abs(comp.PeakFlux-1.0) > 0.2 {
		t.Fatalf("peak flux = %f, want ~1.0", comp.PeakFlux)
	}
}
