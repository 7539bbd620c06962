package image

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/radioimg/gaussfind/internal/fastmedian"
)

// FiniteValues returns the finite (non-NaN) entries of data as a new slice.
func FiniteValues(data []float32) []float32 {
	out := make([]float32, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(float64(v)) {
			out = append(out, v)
		}
	}
	return out
}

// MedianFinite returns the median of the finite entries of data. Returns
// NaN if there are none. Does not modify data.
func MedianFinite(data []float32) float32 {
	vals := FiniteValues(data)
	if len(vals) == 0 {
		return float32(math.NaN())
	}
	return fastmedian.Median(vals)
}

// IQRScale returns the interquartile range of the finite entries of data,
// scaled by 1/1.34896 to approximate the Gaussian standard deviation.
func IQRScale(data []float32) float32 {
	vals := FiniteValues(data)
	if len(vals) < 2 {
		return float32(math.NaN())
	}
	f64 := make([]float64, len(vals))
	for i, v := range vals {
		f64[i] = float64(v)
	}
	sort.Float64s(f64)
	q1 := stat.Quantile(0.25, stat.Empirical, f64, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, f64, nil)
	return float32((q3 - q1) / 1.34896)
}
