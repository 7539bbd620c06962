package orchestrator

import (
	"context"
	"fmt"
	"math"

	"github.com/alitto/pond"

	"github.com/radioimg/gaussfind/internal/background"
	"github.com/radioimg/gaussfind/internal/catalog"
	"github.com/radioimg/gaussfind/internal/condon"
	"github.com/radioimg/gaussfind/internal/corelog"
	"github.com/radioimg/gaussfind/internal/curvature"
	"github.com/radioimg/gaussfind/internal/fitting"
	"github.com/radioimg/gaussfind/internal/image"
	"github.com/radioimg/gaussfind/internal/kernel"
	"github.com/radioimg/gaussfind/internal/segment"
	"github.com/radioimg/gaussfind/internal/summit"
)

// New builds the immutable per-image Context: derives the pixel beam,
// runs the selected BackgroundEstimator, and computes the curvature map.
// Fails with corelog.ErrMissingBeam if beam is invalid and beamProvider is
// nil.
func New(cfg Config, img image.PixelImage, beam image.Beam, scale image.PixelScale, wcs image.WCSProvider, beamProvider image.BeamProvider) (*Context, error) {
	cfg = cfg.WithDefaults()

	if (beam.MajorDeg <= 0 || !beam.Valid()) && beamProvider == nil {
		return nil, fmt.Errorf("%w: no beam in header and none supplied", corelog.ErrMissingBeam)
	}
	if beamProvider == nil {
		beamProvider = image.ConstantBeamProvider{Beam: beam}
	}

	pixelBeam := image.DerivePixelBeam(beam, scale)

	var est background.Estimator
	switch cfg.BackgroundMode {
	case "mesh":
		est = background.MeshEstimator{MeshSizeBeams: cfg.MeshSizeBeams, ScaleMode: cfg.MeshScaleMode}
	default:
		est = background.FFTEstimator{BoxSizeBeams: cfg.BoxSizeBeams, NpixStep: cfg.NpixStep, Seed: cfg.Seed}
	}

	bkg, rms, err := est.Estimate(img, pixelBeam)
	if err != nil {
		return nil, err
	}

	curv := curvature.Compute(img, 0)

	return &Context{
		Config:     cfg,
		Image:      img,
		Beam:       beam,
		PixelBeam:  pixelBeam,
		Scale:      scale,
		WCS:        wcs,
		Beams:      beamProvider,
		Background: bkg,
		RMS:        rms,
		Curvature:  curv,
	}, nil
}

// KernelInfo exposes the top-hat kernel New would build, for callers that
// want to inspect it (e.g. diagnostics) without re-deriving it.
func (c *Context) KernelInfo() (kernel.TopHat, int) {
	return kernel.Build(c.Config.BoxSizeBeams, c.PixelBeam.B, c.Config.NpixStep)
}

// Run drives detection-mode segmentation and fitting: IslandSegmenter then,
// per island, SummitEstimator -> GaussianFitter -> ErrorEstimator, dispatched
// across a pond work-stealing pool with cooperative cancellation checked
// between islands.
func (c *Context) Run(ctx context.Context) ([]catalog.Entry, error) {
	segmenter := segment.Segmenter{SeedClip: c.Config.SeedClip, FloodClip: c.Config.FloodClip, WCS: c.WCS}
	islands := segmenter.Segment(c.Image, c.RMS)

	estimator := summit.Estimator{
		InnerClip:       c.Config.SeedClip,
		OuterClip:       c.Config.FloodClip,
		TelescopeLatDeg: c.Config.TelescopeLatDeg,
		WCS:             c.WCS,
		MaxSummits:      c.Config.MaxSummits,
	}

	workers := c.Config.Workers
	if workers <= 0 {
		workers = defaultWorkerCount()
	}

	pool := pond.New(workers, 0, pond.MinWorkers(workers), pond.Context(ctx))

	results := make(chan []catalog.Entry, len(islands))
	for _, isl := range islands {
		isl := isl
		pool.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			results <- c.fitIsland(isl, estimator)
		})
	}

	var entries []catalog.Entry
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < len(islands); i++ {
			entries = append(entries, <-results...)
		}
	}()

	pool.StopAndWait()
	close(results)
	<-done

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", corelog.ErrCancelled, ctx.Err())
	}

	if c.Config.AggregateIslands {
		entries = append(entries, c.aggregateSummaries(islands, entries)...)
	}

	catalog.SortEntries(entries)
	return entries, nil
}

// fitIsland runs SummitEstimator, GaussianFitter, and ErrorEstimator for a
// single island and returns its catalog entries.
func (c *Context) fitIsland(isl segment.Island, estimator summit.Estimator) []catalog.Entry {
	seeds := estimator.Estimate(isl, c.Curvature, c.PixelBeam)
	if len(seeds) == 0 {
		return nil
	}

	samples := islandSamples(isl)

	// An island whose seeds are all fixed (too few finite pixels to fit,
	// spec's TooSmall case) is reported at the seed estimate, not fitted.
	var outcome fitting.Outcome
	if allParamsFixed(seeds) {
		outcome = fitting.Outcome{Kind: fitting.Skipped, Skipped: seeds}
	} else {
		outcome = fitting.Fit(samples, seeds)
	}

	var entries []catalog.Entry
	switch outcome.Kind {
	case fitting.Fitted:
		for i, p := range outcome.Fitted.Params {
			entries = append(entries, catalog.Entry{
				Kind:      catalog.EntryComponent,
				Component: c.toComponent(isl.ID, i, p, outcome.Fitted.ResidualMean, outcome.Fitted.ResidualStd),
			})
		}
	case fitting.Skipped:
		for i, p := range outcome.Skipped {
			p.Flags |= catalog.NOTFIT
			entries = append(entries, catalog.Entry{
				Kind:      catalog.EntryComponent,
				Component: c.toComponent(isl.ID, i, p, 0, 0),
			})
		}
	}
	return entries
}

// allParamsFixed reports whether every seed's every parameter is held
// fixed, meaning a fit would change nothing and should be skipped outright.
func allParamsFixed(seeds []summit.ComponentSeed) bool {
	for _, s := range seeds {
		for p := 0; p < summit.NumParams; p++ {
			if !s.Fixed[p] {
				return false
			}
		}
	}
	return true
}

// islandSamples flattens an island's finite pixels into fitting.Samples.
func islandSamples(isl segment.Island) []fitting.Sample {
	var samples []fitting.Sample
	for y := 0; y < isl.Height(); y++ {
		for x := 0; x < isl.Width(); x++ {
			v := isl.At(x, y)
			if math.IsNaN(float64(v)) {
				continue
			}
			samples = append(samples, fitting.Sample{
				X:    float64(isl.XMin + x),
				Y:    float64(isl.YMin + y),
				Data: float64(v),
				RMS:  float64(isl.RMS[y*isl.Width()+x]),
			})
		}
	}
	return samples
}

// toComponent converts a canonicalized ComponentSeed into a catalog.Component:
// pixel->sky conversion, arcsec shape conversion, and Condon errors.
func (c *Context) toComponent(islandID, sourceIdx int, p summit.ComponentSeed, residualMean, residualStd float64) *catalog.Component {
	xoPix, yoPix := p.Value[summit.PXo], p.Value[summit.PYo]
	flags := p.Flags

	comp := &catalog.Component{
		Island: islandID,
		Source: sourceIdx,
		Flags:  flags,

		PeakFlux: p.Value[summit.PAmp],

		ResidualMean: residualMean,
		ResidualStd:  residualStd,
	}

	xi, yi := clampIndex(int(math.Round(xoPix)), c.Background.Width), clampIndex(int(math.Round(yoPix)), c.Background.Height)
	comp.Background = float64(c.Background.At(xi, yi))
	comp.LocalRMS = float64(c.RMS.At(xi, yi))

	if c.WCS == nil {
		comp.Flags |= catalog.WCSERR
		comp.ErrAArcsec, comp.ErrBArcsec, comp.ErrPADeg = -1, -1, -1
		comp.ErrRADeg, comp.ErrDecDeg, comp.ErrPeakFlux, comp.ErrIntFlux = -1, -1, -1, -1
		return comp
	}

	sky := c.WCS.PixToSky(xoPix, yoPix)
	if math.IsNaN(sky.RADeg) || math.IsNaN(sky.DecDeg) {
		comp.Flags |= catalog.WCSERR
		comp.ErrAArcsec, comp.ErrBArcsec, comp.ErrPADeg = -1, -1, -1
		comp.ErrRADeg, comp.ErrDecDeg, comp.ErrPeakFlux, comp.ErrIntFlux = -1, -1, -1, -1
		return comp
	}

	ra := math.Mod(sky.RADeg, 360)
	if ra < 0 {
		ra += 360
	}
	comp.RADeg = ra
	comp.DecDeg = sky.DecDeg

	majorDeg := c.WCS.SkyVectorLengthDeg(xoPix, yoPix, p.Value[summit.PSx]*image.SigmaToFWHM, p.Value[summit.PTheta])
	minorDeg := c.WCS.SkyVectorLengthDeg(xoPix, yoPix, p.Value[summit.PSy]*image.SigmaToFWHM, p.Value[summit.PTheta]+90)
	comp.AArcsec = math.Abs(majorDeg) * 3600
	comp.BArcsec = math.Abs(minorDeg) * 3600
	comp.PADeg = p.Value[summit.PTheta]

	comp.IntFlux = comp.PeakFlux * (p.Value[summit.PSx] * p.Value[summit.PSy]) / (c.PixelBeam.A * c.PixelBeam.B)

	beamAreaDeg2 := condon.BeamAreaDeg2(c.Beam.MajorDeg, c.Beam.MinorDeg, comp.DecDeg, c.Config.TelescopeLatDeg)

	errs := condon.Estimate(condon.Input{
		PeakFlux:     comp.PeakFlux,
		IntFlux:      comp.IntFlux,
		LocalRMS:     comp.LocalRMS,
		MajorArcsec:  comp.AArcsec,
		MinorArcsec:  comp.BArcsec,
		PADeg:        comp.PADeg,
		BeamAreaDeg2: beamAreaDeg2,
	})

	comp.ErrPeakFlux = applyFixed(errs.PeakFlux, p.Fixed[summit.PAmp])
	comp.ErrAArcsec = applyFixed(errs.A, p.Fixed[summit.PSx])
	comp.ErrBArcsec = applyFixed(errs.B, p.Fixed[summit.PSy])
	comp.ErrRADeg = applyFixed(errs.RA, p.Fixed[summit.PXo])
	comp.ErrDecDeg = applyFixed(errs.Dec, p.Fixed[summit.PYo])
	comp.ErrPADeg = applyFixed(errs.PA, p.Fixed[summit.PTheta])
	comp.ErrIntFlux = applyFixed(errs.IntFlux, comp.Flags.Has(catalog.NOTFIT))

	return comp
}

// applyFixed reports -1 for a parameter that was held fixed during fitting.
func applyFixed(errVal float64, fixed bool) float64 {
	if fixed {
		return -1
	}
	return errVal
}

func clampIndex(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// aggregateSummaries computes island-level aggregates for each island that
// produced at least one component: peak position, summed integrated flux and
// the largest component major axis. ContourPix is left empty.
func (c *Context) aggregateSummaries(islands []segment.Island, entries []catalog.Entry) []catalog.Entry {
	componentsByIsland := make(map[int][]*catalog.Component)
	for _, e := range entries {
		if e.Kind == catalog.EntryComponent {
			componentsByIsland[e.Component.Island] = append(componentsByIsland[e.Component.Island], e.Component)
		}
	}

	var out []catalog.Entry
	for _, isl := range islands {
		comps := componentsByIsland[isl.ID]
		if len(comps) == 0 {
			continue
		}
		peak := comps[0]
		intFlux := 0.0
		maxSize := 0.0
		for _, comp := range comps {
			intFlux += comp.IntFlux
			if comp.AArcsec > maxSize {
				maxSize = comp.AArcsec
			}
			if math.Abs(comp.PeakFlux) > math.Abs(peak.PeakFlux) {
				peak = comp
			}
		}
		out = append(out, catalog.Entry{
			Kind: catalog.EntryIslandSummary,
			Summary: &catalog.IslandSummary{
				Island:               isl.ID,
				PeakRADeg:            peak.RADeg,
				PeakDecDeg:           peak.DecDeg,
				IntFluxJy:            intFlux,
				MaxAngularSizeArcsec: maxSize,
			},
		})
	}
	return out
}
