// Package background estimates the smooth background level and local RMS
// noise of an image via two-pass FFT convolution averaging, plus a simpler
// mesh/tile alternative for callers that don't need the FFT path.
package background

import (
	"math"

	"github.com/valyala/fastrand"

	"github.com/radioimg/gaussfind/internal/image"
	"github.com/radioimg/gaussfind/internal/kernel"
)

// Estimator produces a BackgroundMap and RMSMap for a PixelImage.
type Estimator interface {
	Estimate(img image.PixelImage, beam image.PixelBeam) (bkg, rms image.PixelImage, err error)
}

// FFTEstimator is the two-pass FFT-averaging background/RMS estimator,
// in the style of BANE's bane_fft/robust_bane.
type FFTEstimator struct {
	// BoxSizeBeams is the averaging box size in beams, default 10.
	BoxSizeBeams float64
	// NpixStep sets the downsampling stride in pixels-per-beam units,
	// default 3.
	NpixStep int
	// Seed drives the deterministic Pass-2 noise fill.
	Seed uint32
}

// Estimate runs two-pass FFT background/RMS estimation: downsample, pass 1
// mean/RMS, mask bright pixels with synthetic noise, pass 2, upsample,
// reapply the NaN mask.
func (e FFTEstimator) Estimate(img image.PixelImage, beam image.PixelBeam) (bkgOut, rmsOut image.PixelImage, err error) {
	boxSizeBeams := e.BoxSizeBeams
	if boxSizeBeams <= 0 {
		boxSizeBeams = 10
	}
	pixPerBeam := beam.B
	if pixPerBeam <= 0 {
		pixPerBeam = 1
	}
	k, step := kernel.Build(boxSizeBeams, pixPerBeam, e.NpixStep)

	w, h := img.Width, img.Height
	nanMask := make([]bool, w*h)
	filled := make([]float32, w*h)
	for i, v := range img.Data {
		if math.IsNaN(float64(v)) {
			nanMask[i] = true
			filled[i] = 0
		} else {
			filled[i] = v
		}
	}

	// Downsample with even cropping (BANE's x_slice/y_slice), so the
	// coarse grid always has an even pixel count.
	dsW := evenDownsampleCount(w, step)
	dsH := evenDownsampleCount(h, step)
	ds := make([]float32, dsW*dsH)
	for y := 0; y < dsH; y++ {
		sy := y * step
		for x := 0; x < dsW; x++ {
			sx := x * step
			ds[y*dsW+x] = filled[sy*w+sx]
		}
	}

	mean1, rms1 := bane(ds, dsW, dsH, k)

	medRMS1 := float64(image.MedianFinite(rms1))
	if medRMS1 == 0 || math.IsNaN(medRMS1) {
		medRMS1 = 1
	}

	rmsMean := meanFinite(rms1)
	rng := fastrand.RNG{Seed: e.Seed}
	if e.Seed == 0 {
		rng.Seed = 1
	}

	masked := make([]float32, w*h)
	copy(masked, filled)
	for i, v := range filled {
		snr := math.Abs(float64(v)) / medRMS1
		if snr >= 5 {
			masked[i] = float32(gaussianNoise(&rng, 0, float64(rmsMean)))
		}
	}

	dsMasked := make([]float32, dsW*dsH)
	for y := 0; y < dsH; y++ {
		sy := y * step
		for x := 0; x < dsW; x++ {
			sx := x * step
			dsMasked[y*dsW+x] = masked[sy*w+sx]
		}
	}

	mean2, rms2 := bane(dsMasked, dsW, dsH, k)

	bkgUp := upsampleBilinear(mean2, dsW, dsH, w, h, step)
	rmsUp := upsampleBilinear(rms2, dsW, dsH, w, h, step)

	for i := range bkgUp {
		if nanMask[i] {
			bkgUp[i] = float32(math.NaN())
			rmsUp[i] = float32(math.NaN())
		}
	}

	return image.PixelImage{Width: w, Height: h, Data: bkgUp},
		image.PixelImage{Width: w, Height: h, Data: rmsUp}, nil
}

// bane computes the mean and mean-absolute-deviation "RMS" of a downsampled
// grid via FFT convolution, per BANE's bane_fft: mean = conv(image, k)/sum,
// rms = conv(|image-mean|, k)/sum.
func bane(grid []float32, w, h int, k kernel.TopHat) (mean, rms []float32) {
	mean = convolveFFT(grid, w, h, k)
	absDev := make([]float32, len(grid))
	for i, v := range grid {
		absDev[i] = float32(math.Abs(float64(v - mean[i])))
	}
	rms = convolveFFT(absDev, w, h, k)
	return mean, rms
}

// evenDownsampleCount mirrors BANE's x_slice/y_slice construction: the
// coarse axis length is cropped so it divides evenly by 2.
func evenDownsampleCount(n, step int) int {
	count := (n + step - 1) / step
	if count < 1 {
		count = 1
	}
	if count%2 != 0 {
		count--
	}
	if count < 2 {
		count = 2
	}
	if count > n {
		count = n
	}
	return count
}

func meanFinite(data []float32) float64 {
	sum := 0.0
	n := 0
	for _, v := range data {
		if !math.IsNaN(float64(v)) {
			sum += float64(v)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// gaussianNoise draws one N(mean, stddev) sample via the Box-Muller
// transform, driven by the deterministic seeded generator.
func gaussianNoise(rng *fastrand.RNG, mean, stddev float64) float64 {
	u1 := (float64(rng.Uint32()) + 1) / (1 << 32)
	u2 := float64(rng.Uint32()) / (1 << 32)
	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	return mean + stddev*z
}

// upsampleBilinear resamples a dsW*dsH coarse grid back to a w*h fine grid
// by bilinear interpolation over arbitrary integer step sizes.
func upsampleBilinear(coarse []float32, dsW, dsH, w, h, step int) []float32 {
	out := make([]float32, w*h)
	factor := 1.0 / float64(step)
	for y := 0; y < h; y++ {
		ySrc := float64(y) * factor
		yl := int(math.Floor(ySrc))
		yh := yl + 1
		if yh >= dsH {
			yh = dsH - 1
			yl = yh - 1
			if yl < 0 {
				yl = 0
			}
		}
		yr := ySrc - float64(yl)
		for x := 0; x < w; x++ {
			xSrc := float64(x) * factor
			xl := int(math.Floor(xSrc))
			xh := xl + 1
			if xh >= dsW {
				xh = dsW - 1
				xl = xh - 1
				if xl < 0 {
					xl = 0
				}
			}
			xr := xSrc - float64(xl)

			vyl := float64(coarse[yl*dsW+xl])*(1-xr) + float64(coarse[yl*dsW+xh])*xr
			vyh := float64(coarse[yh*dsW+xl])*(1-xr) + float64(coarse[yh*dsW+xh])*xr
			v := vyl*(1-yr) + vyh*yr

			out[y*w+x] = float32(v)
		}
	}
	return out
}
