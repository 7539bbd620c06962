// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package image holds the data model shared by every pipeline stage: the
// pixel array, beam description, and the WCS/beam provider interfaces the
// engine depends on but never implements itself (FITS I/O and WCS math are
// external collaborators, per the engine's scope).
package image

import "math"

// PixelImage is a single-precision 2D pixel array. NaN denotes masked data.
// Immutable after construction; shape is (Height, Width).
type PixelImage struct {
	Width  int
	Height int
	Data   []float32 // row-major, length Width*Height
}

// NewPixelImage allocates a zeroed image of the given shape.
func NewPixelImage(width, height int) *PixelImage {
	return &PixelImage{Width: width, Height: height, Data: make([]float32, width*height)}
}

// At returns the pixel value at (x,y).
func (p *PixelImage) At(x, y int) float32 {
	return p.Data[y*p.Width+x]
}

// Set stores the pixel value at (x,y).
func (p *PixelImage) Set(x, y int, v float32) {
	p.Data[y*p.Width+x] = v
}

// SameShape reports whether p and other have identical dimensions.
func (p *PixelImage) SameShape(other *PixelImage) bool {
	return p.Width == other.Width && p.Height == other.Height
}

// Beam is a synthesized-beam description in sky units.
type Beam struct {
	MajorDeg float64
	MinorDeg float64
	PADeg    float64 // position angle, east of north, in (-90, 90]
}

// Valid reports whether the beam respects the data-model invariants:
// major >= minor >= 0 and pa in (-90, 90].
func (b Beam) Valid() bool {
	return b.MajorDeg >= b.MinorDeg && b.MinorDeg >= 0 && b.PADeg > -90 && b.PADeg <= 90
}

// PixelBeam is a Beam expressed in pixel units at the image center, i.e.
// semi-axes in pixels and a position angle in degrees measured in the pixel
// frame.
type PixelBeam struct {
	A     float64 // semi-major axis, pixels
	B     float64 // semi-minor axis, pixels
	PADeg float64
}

// FWHMToSigma converts a FWHM to a Gaussian sigma.
const FWHMToSigma = 1.0 / 2.3548200450309493 // 1/(2*sqrt(2*ln2))

// SigmaToFWHM converts a Gaussian sigma to a FWHM.
const SigmaToFWHM = 2.3548200450309493

// PixelScale is the (deg/pixel, deg/pixel) scale used to derive a PixelBeam
// from a sky Beam. Pixels are assumed square in world units for this
// conversion; callers needing SIP/TAN distortion pass a PixelBeam computed
// by their own WCSProvider instead.
type PixelScale struct {
	DegPerPixelX float64
	DegPerPixelY float64
}

// DerivePixelBeam converts a sky Beam into pixel units using a local pixel
// scale, expressing the major/minor axes as Gaussian sigmas (not FWHM).
func DerivePixelBeam(b Beam, scale PixelScale) PixelBeam {
	avgScale := (math.Abs(scale.DegPerPixelX) + math.Abs(scale.DegPerPixelY)) / 2
	if avgScale <= 0 {
		avgScale = 1
	}
	return PixelBeam{
		A:     (b.MajorDeg / avgScale) * FWHMToSigma,
		B:     (b.MinorDeg / avgScale) * FWHMToSigma,
		PADeg: b.PADeg,
	}
}

// SkyCoord is a position in the ICRS frame: RA in [0,360), Dec in degrees.
type SkyCoord struct {
	RADeg  float64
	DecDeg float64
}

// WCSProvider is the external collaborator providing pixel<->sky conversion
// and sky-vector rotation. The engine never implements WCS math itself; it
// only consumes this interface.
type WCSProvider interface {
	// PixToSky converts a pixel coordinate (x,y), 0-indexed, to a sky
	// position. Returns a non-finite result (NaN RA or Dec) on failure; the
	// caller records WCSError and keeps the component with its error fields
	// set to -1.
	PixToSky(x, y float64) SkyCoord

	// SkyToPix converts a sky position back to a pixel coordinate.
	SkyToPix(s SkyCoord) (x, y float64)

	// SkyVectorLengthDeg returns the sky-plane length, in degrees, of a
	// vector of the given pixel length and pixel rotation angle thetaDeg,
	// anchored at pixel position (x,y). Used to convert fitted shape axes
	// from pixels to arcsec.
	SkyVectorLengthDeg(x, y, lengthPix, thetaDeg float64) float64
}

// BeamProvider is the external collaborator giving the beam at a given sky
// location (beams may vary across the field of view for some instruments).
type BeamProvider interface {
	BeamAt(s SkyCoord) Beam
}

// ConstantBeamProvider returns the same beam everywhere. This is the common
// case for interferometric images with a single synthesized beam.
type ConstantBeamProvider struct {
	Beam Beam
}

func (c ConstantBeamProvider) BeamAt(s SkyCoord) Beam { return c.Beam }
