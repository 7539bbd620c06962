// Package demoimage loads the engine's inputs from a small self-describing
// JSON file: pixel data plus a flat-sky WCS and beam description. It exists
// so the CLI and REST demos have something to point at without pulling in
// FITS I/O, which stays an external collaborator per the engine's scope.
package demoimage

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/radioimg/gaussfind/internal/image"
)

// File is the on-disk JSON shape: width/height, row-major pixel data (NaN
// encoded as null), beam axes/PA in degrees, and a flat pixel scale.
type File struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Data   []*float64 `json:"data"`

	BeamMajorDeg float64 `json:"beamMajorDeg"`
	BeamMinorDeg float64 `json:"beamMinorDeg"`
	BeamPADeg    float64 `json:"beamPaDeg"`

	DegPerPixelX float64 `json:"degPerPixelX"`
	DegPerPixelY float64 `json:"degPerPixelY"`

	RefRADeg  float64 `json:"refRaDeg"`
	RefDecDeg float64 `json:"refDecDeg"`
	RefX      float64 `json:"refX"`
	RefY      float64 `json:"refY"`
}

// Load reads ref as a path to a File and returns the engine's standard
// inputs, implementing rest.ImageSource's signature so it can be wired in
// directly.
func Load(ref string) (img image.PixelImage, beam image.Beam, scale image.PixelScale, wcs image.WCSProvider, beams image.BeamProvider, err error) {
	raw, err := os.ReadFile(ref)
	if err != nil {
		return img, beam, scale, wcs, beams, fmt.Errorf("reading %s: %w", ref, err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return img, beam, scale, wcs, beams, fmt.Errorf("parsing %s: %w", ref, err)
	}
	if len(f.Data) != f.Width*f.Height {
		return img, beam, scale, wcs, beams, fmt.Errorf("%s: data length %d != width*height %d", ref, len(f.Data), f.Width*f.Height)
	}

	data := make([]float32, len(f.Data))
	for i, v := range f.Data {
		if v == nil {
			data[i] = float32(math.NaN())
		} else {
			data[i] = float32(*v)
		}
	}

	img = image.PixelImage{Width: f.Width, Height: f.Height, Data: data}
	beam = image.Beam{MajorDeg: f.BeamMajorDeg, MinorDeg: f.BeamMinorDeg, PADeg: f.BeamPADeg}
	scale = image.PixelScale{DegPerPixelX: f.DegPerPixelX, DegPerPixelY: f.DegPerPixelY}
	flat := flatWCS{scale: scale, refRA: f.RefRADeg, refDec: f.RefDecDeg, refX: f.RefX, refY: f.RefY}
	wcs = flat
	beams = image.ConstantBeamProvider{Beam: beam}
	return img, beam, scale, wcs, beams, nil
}

// flatWCS is a tangent-plane-free, small-field approximation: RA scales
// with 1/cos(dec) of the reference point, Dec is linear. Adequate for demo
// fields; a production WCS (SIP/TAN) is an external collaborator.
type flatWCS struct {
	scale              image.PixelScale
	refRA, refDec      float64
	refX, refY         float64
}

func (w flatWCS) PixToSky(x, y float64) image.SkyCoord {
	cosDec := math.Cos(w.refDec * math.Pi / 180)
	if cosDec == 0 {
		cosDec = 1e-9
	}
	ra := w.refRA + (x-w.refX)*w.scale.DegPerPixelX/cosDec
	dec := w.refDec + (y-w.refY)*w.scale.DegPerPixelY
	return image.SkyCoord{RADeg: ra, DecDeg: dec}
}

func (w flatWCS) SkyToPix(s image.SkyCoord) (x, y float64) {
	cosDec := math.Cos(w.refDec * math.Pi / 180)
	if cosDec == 0 {
		cosDec = 1e-9
	}
	x = w.refX + (s.RADeg-w.refRA)*cosDec/w.scale.DegPerPixelX
	y = w.refY + (s.DecDeg-w.refDec)/w.scale.DegPerPixelY
	return x, y
}

func (w flatWCS) SkyVectorLengthDeg(x, y, lengthPix, thetaDeg float64) float64 {
	avgScale := (math.Abs(w.scale.DegPerPixelX) + math.Abs(w.scale.DegPerPixelY)) / 2
	return lengthPix * avgScale
}
