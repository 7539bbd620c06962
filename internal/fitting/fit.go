package fitting

import (
	"math"
	"sort"

	"github.com/radioimg/gaussfind/internal/catalog"
	"github.com/radioimg/gaussfind/internal/summit"
)

// Kind discriminates the two Outcome variants.
type Kind int

const (
	Fitted Kind = iota
	Skipped
)

// Result holds a converged (or non-converged but attempted) fit.
type Result struct {
	Params        []summit.ComponentSeed // canonicalized post-fit values
	Converged     bool
	ResidualMean  float64
	ResidualStd   float64
}

// Outcome is the result of attempting to fit an island: either a Result, or
// Skipped with the original seeds propagated unchanged (under-determined
// islands).
type Outcome struct {
	Kind    Kind
	Fitted  *Result
	Skipped []summit.ComponentSeed
}

// Fit attempts a joint multi-Gaussian fit of seeds against samples (the
// finite pixels of one island). If the number of free parameters exceeds
// the number of finite pixels the fit is skipped as under-determined.
func Fit(samples []Sample, seeds []summit.ComponentSeed) Outcome {
	numComponents := len(seeds)
	if numComponents == 0 {
		return Outcome{Kind: Skipped, Skipped: seeds}
	}

	n := numComponents * NumParams
	paramsFlat := make([]float64, n)
	lo := make([]float64, n)
	hi := make([]float64, n)
	var freeIdx []int

	for c, s := range seeds {
		for p := 0; p < NumParams; p++ {
			idx := c*NumParams + p
			paramsFlat[idx] = s.Value[p]
			lo[idx] = s.Lo[p]
			hi[idx] = s.Hi[p]
			if !s.Fixed[p] {
				freeIdx = append(freeIdx, idx)
			}
		}
	}

	if len(freeIdx) > len(samples) {
		return Outcome{Kind: Skipped, Skipped: seeds}
	}

	converged := lmSolve(paramsFlat, freeIdx, lo, hi, numComponents, samples)

	fitted := make([]summit.ComponentSeed, numComponents)
	for c := range seeds {
		fitted[c] = seeds[c]
		for p := 0; p < NumParams; p++ {
			fitted[c].Value[p] = paramsFlat[c*NumParams+p]
		}
		fitted[c] = canonicalize(fitted[c])
		if !converged {
			fitted[c].Flags |= catalog.FITERR
		}
	}

	mean, std := residualStats(paramsFlat, numComponents, samples)

	return Outcome{Kind: Fitted, Fitted: &Result{
		Params:       fitted,
		Converged:    converged,
		ResidualMean: mean,
		ResidualStd:  std,
	}}
}

// canonicalize applies post-fit shape/angle normalization: if sx < sy, swap
// them and add 90 degrees to theta; then clamp theta to (-90, 90] by
// adding/subtracting multiples of 180.
func canonicalize(s summit.ComponentSeed) summit.ComponentSeed {
	if s.Value[summit.PSx] < s.Value[summit.PSy] {
		s.Value[summit.PSx], s.Value[summit.PSy] = s.Value[summit.PSy], s.Value[summit.PSx]
		s.Lo[summit.PSx], s.Lo[summit.PSy] = s.Lo[summit.PSy], s.Lo[summit.PSx]
		s.Hi[summit.PSx], s.Hi[summit.PSy] = s.Hi[summit.PSy], s.Hi[summit.PSx]
		s.Fixed[summit.PSx], s.Fixed[summit.PSy] = s.Fixed[summit.PSy], s.Fixed[summit.PSx]
		s.Value[summit.PTheta] += 90
	}

	pa := s.Value[summit.PTheta]
	for pa <= -90 {
		pa += 180
	}
	for pa > 90 {
		pa -= 180
	}
	s.Value[summit.PTheta] = pa

	return s
}

// residualStats returns the median and standard deviation of
// (model-data)/rms over all samples.
func residualStats(paramsFlat []float64, numComponents int, samples []Sample) (mean, std float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	r := make([]float64, len(samples))
	weightedResiduals(paramsFlat, numComponents, samples, r)

	sorted := append([]float64(nil), r...)
	sort.Float64s(sorted)
	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	sum := 0.0
	for _, v := range r {
		sum += v
	}
	avg := sum / float64(len(r))
	varSum := 0.0
	for _, v := range r {
		d := v - avg
		varSum += d * d
	}
	stddev := math.Sqrt(varSum / float64(len(r)))

	return median, stddev
}
