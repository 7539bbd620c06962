package condon

import (
	"math"
	"testing"
)

func TestEstimateHighSNRGivesSmallErrors(t *testing.T) {
	in := Input{
		PeakFlux:    1.0,
		IntFlux:     1.0,
		LocalRMS:    0.001,
		MajorArcsec: 12,
		MinorArcsec: 8,
		PADeg:       30,
		BeamAreaDeg2: BeamAreaDeg2(12.0/3600, 8.0/3600, 0, nil),
	}
	errs := Estimate(in)
	if errs.PeakFlux <= 0 || errs.PeakFlux > 0.1*in.PeakFlux {
		t.Fatalf("err_peak_flux = %f, want small positive value at high SNR", errs.PeakFlux)
	}
	if errs.A <= 0 || errs.B <= 0 {
		t.Fatalf("expected positive shape errors, got a=%f b=%f", errs.A, errs.B)
	}
}

func TestEstimateIndeterminatePAForCircularBeam(t *testing.T) {
	in := Input{
		PeakFlux:    1.0,
		IntFlux:     1.0,
		LocalRMS:    0.01,
		MajorArcsec: 10,
		MinorArcsec: 10,
		PADeg:       0,
		BeamAreaDeg2: BeamAreaDeg2(10.0/3600, 10.0/3600, 0, nil),
	}
	errs := Estimate(in)
	if errs.PA != -1 {
		t.Fatalf("err_pa = %f, want -1 for a circular (major==minor) fit", errs.PA)
	}
}

func TestBeamAreaDeg2ProjectionCorrection(t *testing.T) {
	lat := 0.0
	area := BeamAreaDeg2(0.01, 0.005, 45, &lat)
	flat := BeamAreaDeg2(0.01, 0.005, 0, &lat)
	if area <= flat {
		t.Fatalf("expected projected area to grow away from zenith: area=%f flat=%f", area, flat)
	}
	if math.IsNaN(area) {
		t.Fatalf("got NaN beam area")
	}
}
