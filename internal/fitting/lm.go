package fitting

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sample is one finite island pixel fed to the fitter.
type Sample struct {
	X, Y, Data, RMS float64
}

const (
	maxIterations   = 200
	chi2Tolerance   = 1e-8
	initialLambda   = 1e-3
	jacobianStep    = 1e-4
)

// weightedResiduals fills r (len(samples)) with (model-data)/rms for the
// current flat parameter vector.
func weightedResiduals(paramsFlat []float64, numComponents int, samples []Sample, r []float64) {
	for i, s := range samples {
		model := evalSum(paramsFlat, numComponents, s.X, s.Y)
		rms := s.RMS
		if rms <= 0 {
			rms = 1
		}
		r[i] = (model - s.Data) / rms
	}
}

func chi2(r []float64) float64 {
	sum := 0.0
	for _, v := range r {
		sum += v * v
	}
	return sum
}

// numericJacobian computes d(residual_i)/d(paramsFlat[freeIdx[j]]) via
// central differences.
func numericJacobian(paramsFlat []float64, freeIdx []int, numComponents int, samples []Sample) *mat.Dense {
	n := len(samples)
	m := len(freeIdx)
	J := mat.NewDense(n, m, nil)

	plus := make([]float64, n)
	minus := make([]float64, n)

	for j, idx := range freeIdx {
		orig := paramsFlat[idx]
		h := jacobianStep * math.Max(math.Abs(orig), 1)

		paramsFlat[idx] = orig + h
		weightedResiduals(paramsFlat, numComponents, samples, plus)
		paramsFlat[idx] = orig - h
		weightedResiduals(paramsFlat, numComponents, samples, minus)
		paramsFlat[idx] = orig

		for i := 0; i < n; i++ {
			J.Set(i, j, (plus[i]-minus[i])/(2*h))
		}
	}
	return J
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lmSolve runs box-constrained Levenberg-Marquardt in place on paramsFlat,
// updating only the indices named by freeIdx; lo/hi bound every entry of
// paramsFlat (fixed entries are simply never perturbed). Returns whether
// the solve converged (chi2 change below tolerance before maxIterations).
func lmSolve(paramsFlat []float64, freeIdx []int, lo, hi []float64, numComponents int, samples []Sample) bool {
	if len(freeIdx) == 0 || len(samples) == 0 {
		return true
	}

	n := len(samples)
	m := len(freeIdx)
	r := make([]float64, n)
	weightedResiduals(paramsFlat, numComponents, samples, r)
	curChi2 := chi2(r)

	lambda := initialLambda
	converged := false

	for iter := 0; iter < maxIterations; iter++ {
		J := numericJacobian(paramsFlat, freeIdx, numComponents, samples)

		var JTJ mat.Dense
		JTJ.Mul(J.T(), J)

		JTr := make([]float64, m)
		rVec := mat.NewVecDense(n, r)
		var JTrVec mat.VecDense
		JTrVec.MulVec(J.T(), rVec)
		for i := 0; i < m; i++ {
			JTr[i] = JTrVec.AtVec(i)
		}

		var augmented mat.Dense
		augmented.CloneFrom(&JTJ)
		for i := 0; i < m; i++ {
			augmented.Set(i, i, augmented.At(i, i)*(1+lambda))
		}

		rhs := mat.NewVecDense(m, nil)
		for i := range JTr {
			rhs.SetVec(i, -JTr[i])
		}

		var delta mat.VecDense
		if err := delta.SolveVec(&augmented, rhs); err != nil {
			lambda *= 10
			if lambda > 1e12 {
				break
			}
			continue
		}

		trial := make([]float64, len(paramsFlat))
		copy(trial, paramsFlat)
		for i, idx := range freeIdx {
			trial[idx] = clamp(trial[idx]+delta.AtVec(i), lo[idx], hi[idx])
		}

		trialR := make([]float64, n)
		weightedResiduals(trial, numComponents, samples, trialR)
		trialChi2 := chi2(trialR)

		if trialChi2 < curChi2 {
			improvement := curChi2 - trialChi2
			copy(paramsFlat, trial)
			copy(r, trialR)
			if improvement < chi2Tolerance {
				curChi2 = trialChi2
				converged = true
				break
			}
			curChi2 = trialChi2
			lambda = math.Max(lambda/10, 1e-12)
		} else {
			lambda *= 10
			if lambda > 1e12 {
				break
			}
		}
	}

	return converged
}
