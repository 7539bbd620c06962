package orchestrator

import (
	"github.com/radioimg/gaussfind/internal/curvature"
	"github.com/radioimg/gaussfind/internal/image"
)

// Context is the immutable per-image state shared by every worker goroutine:
// constructed once by New, never mutated, and passed by reference to fit
// tasks so concurrent readers need no synchronization.
type Context struct {
	Config Config

	Image image.PixelImage
	Beam  image.Beam
	PixelBeam image.PixelBeam
	Scale image.PixelScale

	WCS  image.WCSProvider
	Beams image.BeamProvider

	Background image.PixelImage
	RMS        image.PixelImage
	Curvature  curvature.Map
}
