// Package condon computes per-parameter 1-sigma uncertainties for a fitted
// Gaussian component using the analytic framework of Condon (1997).
package condon

import "math"

// alpha exponents per parameter, from Condon (1997) eq. 21.
var alphas = map[string][2]float64{
	"amp":   {1.5, 1.5},
	"major": {2.5, 0.5},
	"xo":    {2.5, 0.5},
	"minor": {0.5, 2.5},
	"yo":    {0.5, 2.5},
	"pa":    {0.5, 2.5},
}

// Input collects the fitted-component quantities calc_errors needs.
type Input struct {
	PeakFlux  float64 // Jy/beam
	IntFlux   float64 // Jy
	LocalRMS  float64 // Jy/beam
	MajorArcsec float64
	MinorArcsec float64
	PADeg       float64
	BeamAreaDeg2 float64 // |beam_major_deg * beam_minor_deg * pi|, projection-corrected
}

// Errors are the per-parameter 1-sigma uncertainties; err_pa is -1 when
// indeterminate (major/minor too similar to resolve a position angle).
type Errors struct {
	PeakFlux float64
	IntFlux  float64
	A        float64 // arcsec
	B        float64 // arcsec
	RA       float64 // deg
	Dec      float64 // deg
	PA       float64 // deg, -1 if indeterminate
}

// Estimate computes Errors for in, per Condon (1997).
func Estimate(in Input) Errors {
	major := in.MajorArcsec / 3600 // degrees
	minor := in.MinorArcsec / 3600
	phi := in.PADeg * math.Pi / 180

	thetaN := math.Sqrt(in.BeamAreaDeg2 / math.Pi)
	smoothing := major * minor / (thetaN * thetaN)
	factor1 := 1 + major/thetaN
	factor2 := 1 + minor/thetaN
	snr := in.PeakFlux / in.LocalRMS

	rho2 := func(param string) float64 {
		a := alphas[param]
		return smoothing / 4 * math.Pow(factor1, a[0]) * math.Pow(factor2, a[1]) * snr * snr
	}

	errPeak := in.PeakFlux * math.Sqrt(2/rho2("amp"))
	errA := major * math.Sqrt(2/rho2("major")) * 3600
	errB := minor * math.Sqrt(2/rho2("minor")) * 3600

	errXo2 := 2 / rho2("xo") * major * major / (8 * math.Ln2)
	errYo2 := 2 / rho2("yo") * minor * minor / (8 * math.Ln2)
	errRA := math.Sqrt(errXo2*sin2(phi) + errYo2*cos2(phi))
	errDec := math.Sqrt(errXo2*cos2(phi) + errYo2*sin2(phi))

	var errPA float64
	if math.Abs(math.Pow(major/minor, 2)+math.Pow(minor/major, 2)-2) < 0.01 {
		errPA = -1
	} else {
		errPA = deg(math.Sqrt(4/rho2("pa")) * (major * minor / (major*major - minor*minor)))
	}

	errInt2 := math.Pow(errPeak/in.PeakFlux, 2)
	errInt2 += (thetaN * thetaN / (major * minor)) * (math.Pow(errA/in.MajorArcsec, 2) + math.Pow(errB/in.MinorArcsec, 2))
	errInt := in.IntFlux * math.Sqrt(errInt2)

	return Errors{
		PeakFlux: errPeak,
		IntFlux:  errInt,
		A:        errA,
		B:        errB,
		RA:       errRA,
		Dec:      errDec,
		PA:       errPA,
	}
}

func sin2(x float64) float64 { s := math.Sin(x); return s * s }
func cos2(x float64) float64 { c := math.Cos(x); return c * c }
func deg(rad float64) float64 { return rad * 180 / math.Pi }

// BeamAreaDeg2 computes the projection-corrected beam area used as
// condon.Input.BeamAreaDeg2.
func BeamAreaDeg2(beamMajorDeg, beamMinorDeg, decDeg float64, telescopeLatDeg *float64) float64 {
	area := math.Abs(beamMajorDeg * beamMinorDeg * math.Pi)
	if telescopeLatDeg != nil {
		area /= math.Cos((decDeg - *telescopeLatDeg) * math.Pi / 180)
	}
	return area
}
