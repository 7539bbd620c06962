// Package fitting implements constrained non-linear least-squares fitting
// of a sum of 2D elliptical Gaussians to an island's pixels, via
// Levenberg-Marquardt with a numerical Jacobian and box constraints.
package fitting

import (
	"math"

	"github.com/radioimg/gaussfind/internal/summit"
)

// NumParams is the number of free parameters per Gaussian component.
const NumParams = summit.NumParams

// evalComponent evaluates one elliptical Gaussian component at (x,y). p is
// [amp, xo, yo, sx, sy, thetaDeg] in the layout of summit.ComponentSeed.
func evalComponent(p []float64, x, y float64) float64 {
	amp, xo, yo, sx, sy, thetaDeg := p[summit.PAmp], p[summit.PXo], p[summit.PYo], p[summit.PSx], p[summit.PSy], p[summit.PTheta]
	dx, dy := x-xo, y-yo
	theta := thetaDeg * math.Pi / 180
	ct, st := math.Cos(theta), math.Sin(theta)
	u := (dx*ct + dy*st) / sx
	v := (dx*st - dy*ct) / sy
	return amp * math.Exp(-0.5*(u*u+v*v))
}

// evalSum evaluates the sum of numComponents Gaussians (each NumParams long,
// concatenated in params) at (x,y).
func evalSum(params []float64, numComponents int, x, y float64) float64 {
	total := 0.0
	for c := 0; c < numComponents; c++ {
		total += evalComponent(params[c*NumParams:(c+1)*NumParams], x, y)
	}
	return total
}
