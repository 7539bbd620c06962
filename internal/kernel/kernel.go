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

// Package kernel builds the circular top-hat averaging kernel the
// background estimator convolves the image with.
package kernel

import "math"

// TopHat is a circular averaging kernel: 1 inside the disc of the given
// radius, 0 outside. Sum reflects the pixel count inside the disc (the
// kernel is normalized so its maximum entry is 1).
type TopHat struct {
	Data   []float32 // row-major, (2*Radius+1)^2 entries
	Size   int       // 2*Radius+1
	Radius int
	Sum    float64
}

// Build constructs the top-hat kernel used by the background estimator.
// boxSizeBeams is the box size in beams (Build applies no default; callers
// pass 10 when unset), pixPerBeam is the number of pixels
// spanned by one beam along its narrowest axis. The kernel radius is
// ceil(boxSizePixels/2); step is the downsampling stride used by the
// caller (pixels per beam / npix-step, at least 1).
func Build(boxSizeBeams float64, pixPerBeam float64, npixStep int) (k TopHat, stepSize int) {
	if npixStep <= 0 {
		npixStep = 3
	}
	stepSize = int(math.Ceil(pixPerBeam / float64(npixStep)))
	if stepSize < 1 {
		stepSize = 1
	}

	boxSizePixels := math.Ceil(pixPerBeam * boxSizeBeams / float64(stepSize))
	radius := int(math.Ceil(boxSizePixels / 2))
	if radius < 1 {
		radius = 1
	}

	k = newTopHat(radius)
	return k, stepSize
}

// newTopHat constructs a top-hat kernel of the given disc radius (in
// pixels of the downsampled grid).
func newTopHat(radius int) TopHat {
	size := 2*radius + 1
	data := make([]float32, size*size)
	rSq := float64(radius) * float64(radius)

	max := float32(0)
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			idx := (y+radius)*size + (x + radius)
			distSq := float64(x*x + y*y)
			if distSq <= rSq {
				data[idx] = 1
			}
		}
	}
	for _, v := range data {
		if v > max {
			max = v
		}
	}
	if max > 0 {
		for i := range data {
			data[i] /= max
		}
	}

	sum := 0.0
	for _, v := range data {
		sum += float64(v)
	}

	return TopHat{Data: data, Size: size, Radius: radius, Sum: sum}
}
