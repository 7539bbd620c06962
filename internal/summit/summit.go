// Package summit estimates the number of Gaussian components within an
// island and their starting parameters, bounds, and fixed-parameter
// discipline.
package summit

import (
	"math"
	"sort"

	"github.com/radioimg/gaussfind/internal/catalog"
	"github.com/radioimg/gaussfind/internal/curvature"
	"github.com/radioimg/gaussfind/internal/image"
	"github.com/radioimg/gaussfind/internal/segment"
)

// fwhm2cc converts a FWHM to a Gaussian sigma: 1/(2*sqrt(2*ln2)).
const fwhm2cc = image.FWHMToSigma

// Param indexes a ComponentSeed's six fit parameters.
const (
	PAmp = iota
	PXo
	PYo
	PSx
	PSy
	PTheta
	NumParams
)

// ComponentSeed is an initial Gaussian-component guess with per-parameter
// bounds and fixed flags.
type ComponentSeed struct {
	Value   [NumParams]float64
	Lo, Hi  [NumParams]float64
	Fixed   [NumParams]bool
	Flags   catalog.Flags
}

// Estimator derives ComponentSeeds for an island.
type Estimator struct {
	InnerClip float64 // seed_clip, default 5
	OuterClip float64 // flood_clip, default 4
	// TelescopeLatDeg, if non-nil, applies the projected-beam correction
	// to major using the declination at each summit.
	TelescopeLatDeg *float64
	WCS             image.WCSProvider
	MaxSummits      int // 0 = unlimited
}

// Estimate returns the ComponentSeeds for isl, given the pixel beam and the
// island's curvature classification (already computed over the full image;
// isl.XMin/isl.YMin locate isl's bbox within it).
func (e Estimator) Estimate(isl segment.Island, curv curvature.Map, beam image.PixelBeam) []ComponentSeed {
	innerClip := e.InnerClip
	if innerClip <= 0 {
		innerClip = 5
	}
	outerClip := e.OuterClip
	if outerClip <= 0 {
		outerClip = 4
	}

	finite := finitePixels(isl)
	isNegative := false
	if len(finite) > 0 {
		maxVal := finite[0].v
		for _, p := range finite {
			if p.v > maxVal {
				maxVal = p.v
			}
		}
		isNegative = maxVal < 0
	}

	beamValid := beam.A > 0 && beam.B > 0
	pixBeam := beam
	baseFlags := catalog.Flags(0)
	if !beamValid {
		pixBeam = image.PixelBeam{A: 1, B: 1, PADeg: 0}
		baseFlags |= catalog.WCSERR
	}
	xoLim := 0.5 * math.Hypot(pixBeam.A, pixBeam.B)
	yoLim := xoLim

	nonNaN := len(finite)
	forceSkip := false
	switch {
	case nonNaN >= 4 && nonNaN <= 6:
		baseFlags |= catalog.FIXED2PSF
	case nonNaN < 4:
		baseFlags |= catalog.FITERRSMALL | catalog.NOTFIT
		forceSkip = true
	}

	// 4-6 finite pixels and under-determined islands both collapse to a
	// single component: force one region spanning the whole island instead
	// of letting the curvature mask split it into several candidates.
	tiny := isl.Width() <= 2 || isl.Height() <= 2 || baseFlags.Has(catalog.FITERRSMALL) || baseFlags.Has(catalog.FIXED2PSF)

	var regions []region

	if tiny {
		regions = []region{{0, isl.Width() - 1, 0, isl.Height() - 1}}
		baseFlags |= catalog.FIXED2PSF
	} else {
		kappaMask := make([]bool, isl.Width()*isl.Height())
		for y := 0; y < isl.Height(); y++ {
			for x := 0; x < isl.Width(); x++ {
				v := isl.At(x, y)
				if math.IsNaN(float64(v)) {
					continue
				}
				cx, cy := isl.XMin+x, isl.YMin+y
				c := curv.At(cx, cy)
				r := isl.RMS[y*isl.Width()+x]
				if isNegative {
					if c == 1 && float64(v)+outerClip*float64(r) < 0 {
						kappaMask[y*isl.Width()+x] = true
					}
				} else {
					if c == -1 && float64(v)-outerClip*float64(r) > 0 {
						kappaMask[y*isl.Width()+x] = true
					}
				}
			}
		}
		regions = floodRegions(kappaMask, isl.Width(), isl.Height())
	}

	type candidate struct {
		r   region
		amp float64
		xo, yo int // bbox-relative
	}
	var candidates []candidate
	for _, r := range regions {
		var amp float64
		var xo, yo int
		found := false
		for y := r.ymin; y <= r.ymax; y++ {
			for x := r.xmin; x <= r.xmax; x++ {
				v := isl.At(x, y)
				if math.IsNaN(float64(v)) {
					continue
				}
				if !found {
					amp, xo, yo = float64(v), x, y
					found = true
					continue
				}
				if isNegative {
					if float64(v) < amp {
						amp, xo, yo = float64(v), x, y
					}
				} else {
					if float64(v) > amp {
						amp, xo, yo = float64(v), x, y
					}
				}
			}
		}
		if !found {
			continue
		}
		candidates = append(candidates, candidate{r: r, amp: amp, xo: xo, yo: yo})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return math.Abs(candidates[i].amp) > math.Abs(candidates[j].amp)
	})

	var seeds []ComponentSeed
	for i, c := range candidates {
		r := c.r
		xo, yo, amp := c.xo, c.yo, c.amp

		snr := 0.0
		for y := r.ymin; y <= r.ymax; y++ {
			for x := r.xmin; x <= r.xmax; x++ {
				v := isl.At(x, y)
				if math.IsNaN(float64(v)) {
					continue
				}
				rr := float64(isl.RMS[y*isl.Width()+x])
				if rr <= 0 {
					continue
				}
				s := math.Abs(float64(v)) / rr
				if s > snr {
					snr = s
				}
			}
		}
		if snr < innerClip {
			continue
		}

		localRMS := float64(isl.RMS[yo*isl.Width()+xo])

		var ampMin, ampMax float64
		if amp > 0 {
			ampMin = 0.95 * math.Min(outerClip*localRMS, amp)
			ampMax = amp*1.05 + innerClip*localRMS
		} else {
			ampMax = 0.95 * math.Max(-outerClip*localRMS, amp)
			ampMin = amp*1.05 - innerClip*localRMS
		}

		xoMin, xoMax := math.Max(float64(r.xmin), float64(xo)-xoLim), math.Min(float64(r.xmax), float64(xo)+xoLim)
		if xoMin == xoMax {
			xoMin, xoMax = xoMin-0.5, xoMax+0.5
		}
		yoMin, yoMax := math.Max(float64(r.ymin), float64(yo)-yoLim), math.Min(float64(r.ymax), float64(yo)+yoLim)
		if yoMin == yoMax {
			yoMin, yoMax = yoMin-0.5, yoMax+0.5
		}

		xsize := r.xmax - r.xmin + 1
		ysize := r.ymax - r.ymin + 1

		// PixelBeam axes are already Gaussian sigmas in pixels.
		major := pixBeam.A
		minor := pixBeam.B
		if e.TelescopeLatDeg != nil && e.WCS != nil {
			sky := e.WCS.PixToSky(float64(isl.XMin+xo), float64(isl.YMin+yo))
			if !math.IsNaN(sky.DecDeg) {
				major /= math.Cos((sky.DecDeg - *e.TelescopeLatDeg) * math.Pi / 180)
			}
		}

		maxSize := float64(xsize)
		if ysize > xsize {
			maxSize = float64(ysize)
		}
		diagBound := (maxSize + 1) * math.Sqrt2 * fwhm2cc
		majorMin, majorMax := major*0.8, math.Max(diagBound, major*1.1)
		minorMin, minorMax := minor*0.8, math.Max(diagBound, major*1.1)

		flag := baseFlags
		if minorMin == minorMax || majorMin == majorMax {
			flag |= catalog.FIXED2PSF
		}

		pa := pixBeam.PADeg

		maxxed := e.MaxSummits > 0 && i >= e.MaxSummits
		if maxxed {
			flag |= catalog.NOTFIT
		}
		posFixed := maxxed || forceSkip
		shapeFixed := flag.Has(catalog.FIXED2PSF) || maxxed || forceSkip

		seed := ComponentSeed{Flags: flag}
		seed.Value[PAmp] = amp
		seed.Lo[PAmp], seed.Hi[PAmp] = ampMin, ampMax
		seed.Fixed[PAmp] = posFixed

		seed.Value[PXo] = float64(isl.XMin + xo)
		seed.Lo[PXo], seed.Hi[PXo] = float64(isl.XMin)+xoMin, float64(isl.XMin)+xoMax
		seed.Fixed[PXo] = posFixed

		seed.Value[PYo] = float64(isl.YMin + yo)
		seed.Lo[PYo], seed.Hi[PYo] = float64(isl.YMin)+yoMin, float64(isl.YMin)+yoMax
		seed.Fixed[PYo] = posFixed

		seed.Value[PSx] = major
		seed.Lo[PSx], seed.Hi[PSx] = majorMin, majorMax
		seed.Fixed[PSx] = shapeFixed

		seed.Value[PSy] = minor
		seed.Lo[PSy], seed.Hi[PSy] = minorMin, minorMax
		seed.Fixed[PSy] = shapeFixed

		seed.Value[PTheta] = pa
		seed.Lo[PTheta], seed.Hi[PTheta] = -180, 180
		seed.Fixed[PTheta] = shapeFixed

		seeds = append(seeds, seed)
	}

	return seeds
}

type pixelValue struct {
	x, y int
	v    float32
}

func finitePixels(isl segment.Island) []pixelValue {
	var out []pixelValue
	for y := 0; y < isl.Height(); y++ {
		for x := 0; x < isl.Width(); x++ {
			v := isl.At(x, y)
			if !math.IsNaN(float64(v)) {
				out = append(out, pixelValue{x, y, v})
			}
		}
	}
	return out
}

// region is a bbox-relative bounding box (inclusive) within an island.
type region struct {
	xmin, xmax, ymin, ymax int
}

// floodRegions 4-connected-labels the true cells of mask (w*h, row-major)
// and returns each component's bounding box, in the same raster order as
// internal/segment's island discovery.
func floodRegions(mask []bool, w, h int) []region {
	visited := make([]bool, w*h)
	var out []region

	for y0 := 0; y0 < h; y0++ {
		for x0 := 0; x0 < w; x0++ {
			idx0 := y0*w + x0
			if visited[idx0] || !mask[idx0] {
				continue
			}
			stack := []int{idx0}
			visited[idx0] = true
			xmin, xmax, ymin, ymax := x0, x0, y0, y0
			for len(stack) > 0 {
				idx := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				x, y := idx%w, idx/w
				if x < xmin {
					xmin = x
				}
				if x > xmax {
					xmax = x
				}
				if y < ymin {
					ymin = y
				}
				if y > ymax {
					ymax = y
				}
				if x > 0 && !visited[idx-1] && mask[idx-1] {
					visited[idx-1] = true
					stack = append(stack, idx-1)
				}
				if x < w-1 && !visited[idx+1] && mask[idx+1] {
					visited[idx+1] = true
					stack = append(stack, idx+1)
				}
				if y > 0 && !visited[idx-w] && mask[idx-w] {
					visited[idx-w] = true
					stack = append(stack, idx-w)
				}
				if y < h-1 && !visited[idx+w] && mask[idx+w] {
					visited[idx+w] = true
					stack = append(stack, idx+w)
				}
			}
			out = append(out, region{xmin, xmax, ymin, ymax})
		}
	}
	return out
}
