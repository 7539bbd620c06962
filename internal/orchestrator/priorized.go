package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/alitto/pond"

	"github.com/radioimg/gaussfind/internal/catalog"
	"github.com/radioimg/gaussfind/internal/corelog"
	"github.com/radioimg/gaussfind/internal/fitting"
	"github.com/radioimg/gaussfind/internal/image"
	"github.com/radioimg/gaussfind/internal/summit"
)

// PriorSource is one row of an input catalog used for priorized/forced-
// measurement fitting: a known position and shape to be re-measured
// against this image rather than discovered by segmentation.
type PriorSource struct {
	Island int
	Source int

	RADeg, DecDeg    float64
	AArcsec, BArcsec float64 // FWHM, arcsec
	PADeg            float64
	PeakFlux         float64 // Jy/beam, initial guess
}

// RunPriorized re-fits inputs against this image instead of segmenting.
// Sources sharing an island id are fit jointly, as a single multi-Gaussian
// model over the union of their crop windows. Config.PriorizedStage
// selects which parameters are free: 1 = amplitude only, 2 = +position,
// 3 = +shape. Output preserves the input island/source numbering.
func (c *Context) RunPriorized(ctx context.Context, inputs []PriorSource) ([]catalog.Entry, error) {
	if c.WCS == nil {
		return nil, fmt.Errorf("%w: priorized mode requires a WCS provider", corelog.ErrConfig)
	}

	stage := c.Config.PriorizedStage
	if stage < 1 || stage > 3 {
		stage = 3
	}

	groups := groupByIsland(inputs)

	workers := c.Config.Workers
	if workers <= 0 {
		workers = defaultWorkerCount()
	}
	pool := pond.New(workers, 0, pond.MinWorkers(workers), pond.Context(ctx))

	results := make(chan []catalog.Entry, len(groups))
	for _, g := range groups {
		g := g
		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			results <- c.fitPriorGroup(g, stage)
		})
	}

	var entries []catalog.Entry
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < len(groups); i++ {
			entries = append(entries, <-results...)
		}
	}()

	pool.StopAndWait()
	close(results)
	<-done

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", corelog.ErrCancelled, ctx.Err())
	}

	catalog.SortEntries(entries)
	return entries, nil
}

// groupByIsland partitions inputs by Island, returning groups in ascending
// island id order and preserving each group's original source order.
func groupByIsland(inputs []PriorSource) [][]PriorSource {
	order := make([]int, 0)
	byIsland := make(map[int][]PriorSource)
	for _, in := range inputs {
		if _, ok := byIsland[in.Island]; !ok {
			order = append(order, in.Island)
		}
		byIsland[in.Island] = append(byIsland[in.Island], in)
	}
	sort.Ints(order)
	groups := make([][]PriorSource, 0, len(order))
	for _, id := range order {
		groups = append(groups, byIsland[id])
	}
	return groups
}

// fitPriorGroup builds seeds for every source in a group, crops the union
// of their windows, and runs the joint fit.
func (c *Context) fitPriorGroup(group []PriorSource, stage int) []catalog.Entry {
	avgScale := (math.Abs(c.Scale.DegPerPixelX) + math.Abs(c.Scale.DegPerPixelY)) / 2
	if avgScale <= 0 {
		avgScale = 1
	}

	type centered struct {
		src      PriorSource
		xo, yo   float64
		sx, sy   float64
		radius   float64
	}
	placed := make([]centered, len(group))

	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for i, src := range group {
		xo, yo := c.WCS.SkyToPix(image.SkyCoord{RADeg: src.RADeg, DecDeg: src.DecDeg})
		sx := (src.AArcsec / 3600 / avgScale) * image.FWHMToSigma
		sy := (src.BArcsec / 3600 / avgScale) * image.FWHMToSigma
		if sx <= 0 {
			sx = 1
		}
		if sy <= 0 {
			sy = 1
		}
		r := sx
		placed[i] = centered{src: src, xo: xo, yo: yo, sx: sx, sy: sy, radius: r}
		if xo-r < xmin {
			xmin = xo - r
		}
		if xo+r > xmax {
			xmax = xo + r
		}
		if yo-r < ymin {
			ymin = yo - r
		}
		if yo+r > ymax {
			ymax = yo + r
		}
	}

	x0 := clampIndex(int(math.Floor(xmin)), c.Image.Width)
	x1 := clampIndex(int(math.Ceil(xmax)), c.Image.Width)
	y0 := clampIndex(int(math.Floor(ymin)), c.Image.Height)
	y1 := clampIndex(int(math.Ceil(ymax)), c.Image.Height)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}

	var samples []fitting.Sample
	for y := y0; y <= y1 && y < c.Image.Height; y++ {
		for x := x0; x <= x1 && x < c.Image.Width; x++ {
			v := c.Image.At(x, y)
			if math.IsNaN(float64(v)) {
				continue
			}
			rms := c.RMS.At(x, y)
			if math.IsNaN(float64(rms)) || rms <= 0 {
				continue
			}
			samples = append(samples, fitting.Sample{
				X:    float64(x),
				Y:    float64(y),
				Data: float64(v),
				RMS:  float64(rms),
			})
		}
	}

	seeds := make([]summit.ComponentSeed, len(placed))
	for i, p := range placed {
		localRMS := float64(c.RMS.At(clampIndex(int(math.Round(p.xo)), c.Image.Width), clampIndex(int(math.Round(p.yo)), c.Image.Height)))
		if math.IsNaN(localRMS) || localRMS <= 0 {
			localRMS = 1e-3
		}

		seed := summit.ComponentSeed{Flags: catalog.PRIORIZED}

		ampRange := math.Max(math.Abs(p.src.PeakFlux)*3, 10*localRMS)
		seed.Value[summit.PAmp] = p.src.PeakFlux
		seed.Lo[summit.PAmp], seed.Hi[summit.PAmp] = p.src.PeakFlux-ampRange, p.src.PeakFlux+ampRange

		seed.Value[summit.PXo] = p.xo
		seed.Value[summit.PYo] = p.yo
		seed.Value[summit.PSx] = p.sx
		seed.Value[summit.PSy] = p.sy
		seed.Value[summit.PTheta] = p.src.PADeg

		if stage >= 2 {
			seed.Lo[summit.PXo], seed.Hi[summit.PXo] = p.xo-p.radius, p.xo+p.radius
			seed.Lo[summit.PYo], seed.Hi[summit.PYo] = p.yo-p.radius, p.yo+p.radius
		} else {
			seed.Lo[summit.PXo], seed.Hi[summit.PXo] = p.xo, p.xo
			seed.Lo[summit.PYo], seed.Hi[summit.PYo] = p.yo, p.yo
			seed.Fixed[summit.PXo] = true
			seed.Fixed[summit.PYo] = true
		}

		if stage >= 3 {
			seed.Lo[summit.PSx], seed.Hi[summit.PSx] = 0.3*p.sx, 3*p.sx
			seed.Lo[summit.PSy], seed.Hi[summit.PSy] = 0.3*p.sy, 3*p.sy
			seed.Lo[summit.PTheta], seed.Hi[summit.PTheta] = -180, 180
		} else {
			seed.Lo[summit.PSx], seed.Hi[summit.PSx] = p.sx, p.sx
			seed.Lo[summit.PSy], seed.Hi[summit.PSy] = p.sy, p.sy
			seed.Lo[summit.PTheta], seed.Hi[summit.PTheta] = p.src.PADeg, p.src.PADeg
			seed.Fixed[summit.PSx] = true
			seed.Fixed[summit.PSy] = true
			seed.Fixed[summit.PTheta] = true
		}

		seeds[i] = seed
	}

	outcome := fitting.Fit(samples, seeds)

	var entries []catalog.Entry
	switch outcome.Kind {
	case fitting.Fitted:
		for i, p := range outcome.Fitted.Params {
			p.Flags |= catalog.PRIORIZED
			entries = append(entries, catalog.Entry{
				Kind:      catalog.EntryComponent,
				Component: c.toComponent(group[i].Island, group[i].Source, p, outcome.Fitted.ResidualMean, outcome.Fitted.ResidualStd),
			})
		}
	case fitting.Skipped:
		for i, p := range outcome.Skipped {
			p.Flags |= catalog.PRIORIZED | catalog.NOTFIT
			entries = append(entries, catalog.Entry{
				Kind:      catalog.EntryComponent,
				Component: c.toComponent(group[i].Island, group[i].Source, p, 0, 0),
			})
		}
	}
	return entries
}
