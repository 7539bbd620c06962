package fitting

import (
	"math"
	"testing"

	"github.com/radioimg/gaussfind/internal/summit"
)

func makeSamples(w, h int, amp, xo, yo, sx, sy, noiseRMS float64) []Sample {
	samples := make([]Sample, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-xo, float64(y)-yo
			v := amp * math.Exp(-0.5*(dx*dx/(sx*sx)+dy*dy/(sy*sy)))
			samples = append(samples, Sample{X: float64(x), Y: float64(y), Data: v, RMS: noiseRMS})
		}
	}
	return samples
}

func freeSeed(amp, xo, yo, sx, sy, pa float64, lo, hi [NumParams]float64) summit.ComponentSeed {
	s := summit.ComponentSeed{}
	s.Value = [NumParams]float64{amp, xo, yo, sx, sy, pa}
	s.Lo, s.Hi = lo, hi
	return s
}

func TestFitSingleGaussianRecoversParams(t *testing.T) {
	samples := makeSamples(20, 20, 1.0, 10, 10, 3, 3, 0.01)
	seed := freeSeed(0.8, 9.5, 9.5, 2.5, 2.5, 10,
		[NumParams]float64{0, 0, 0, 0.5, 0.5, -180},
		[NumParams]float64{2, 20, 20, 8, 8, 180})

	outcome := Fit(samples, []summit.ComponentSeed{seed})
	if outcome.Kind != Fitted {
		t.Fatalf("expected Fitted outcome, got Skipped")
	}
	p := outcome.Fitted.Params[0]
	if math.Abs(p.Value[summit.PAmp]-1.0) > 0.1 {
		t.Fatalf("amp = %f, want ~1.0", p.Value[summit.PAmp])
	}
	if math.Abs(p.Value[summit.PXo]-10) > 0.3 {
		t.Fatalf("xo = %f, want ~10", p.Value[summit.PXo])
	}
}

func TestFitUnderDeterminedIsSkipped(t *testing.T) {
	samples := []Sample{{X: 0, Y: 0, Data: 1, RMS: 0.1}}
	seed := freeSeed(0.8, 0, 0, 2.5, 2.5, 10,
		[NumParams]float64{0, -5, -5, 0.5, 0.5, -180},
		[NumParams]float64{2, 5, 5, 8, 8, 180})

	outcome := Fit(samples, []summit.ComponentSeed{seed})
	if outcome.Kind != Skipped {
		t.Fatalf("expected Skipped outcome for under-determined fit")
	}
	if len(outcome.Skipped) != 1 {
		t.Fatalf("expected seed propagated on skip")
	}
}

func TestCanonicalizeSwapsSxSy(t *testing.T) {
	s := summit.ComponentSeed{}
	s.Value = [NumParams]float64{1, 5, 5, 2, 4, 10}
	out := canonicalize(s)
	if out.Value[summit.PSx] < out.Value[summit.PSy] {
		t.Fatalf("expected sx >= sy after canonicalize, got sx=%f sy=%f", out.Value[summit.PSx], out.Value[summit.PSy])
	}
	if out.Value[summit.PTheta] != -80 {
		t.Fatalf("expected theta -80 after swap (10+90 wrapped into (-90,90]), got %f", out.Value[summit.PTheta])
	}
}

func TestCanonicalizeClampsPA(t *testing.T) {
	s := summit.ComponentSeed{}
	s.Value = [NumParams]float64{1, 5, 5, 4, 2, 200}
	out := canonicalize(s)
	if out.Value[summit.PTheta] <= -90 || out.Value[summit.PTheta] > 90 {
		t.Fatalf("theta %f not clamped to (-90,90]", out.Value[summit.PTheta])
	}
}
