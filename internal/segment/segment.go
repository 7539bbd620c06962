// Package segment discovers islands: connected components on a
// signal-to-noise map using a seed/flood two-threshold scheme.
package segment

import (
	"math"

	"github.com/radioimg/gaussfind/internal/image"
)

// Island is a contiguous region of pixels above the flood threshold
// containing at least one pixel above the seed threshold. Pixels is a
// row-major copy of the island's bounding box, with every pixel below the
// flood threshold (and anything outside the region) set to NaN.
type Island struct {
	ID   int
	XMin, XMax int // bbox, exclusive max
	YMin, YMax int
	Pixels []float32 // (XMax-XMin)*(YMax-YMin), row-major within bbox
	RMS    []float32 // same shape, local RMS at each pixel
	SeedX, SeedY int // raster-order seed pixel used for deterministic stream order
}

// Width and Height of the island's bounding box.
func (isl Island) Width() int  { return isl.XMax - isl.XMin }
func (isl Island) Height() int { return isl.YMax - isl.YMin }

// At returns the island-local pixel at bbox-relative (x,y).
func (isl Island) At(x, y int) float32 { return isl.Pixels[y*isl.Width()+x] }

// SkyMask reports whether a sky position should be kept by segmentation.
type SkyMask interface {
	Contains(s image.SkyCoord) bool
}

// Segmenter performs seed/flood threshold connected-component labeling.
type Segmenter struct {
	SeedClip  float64 // default 5
	FloodClip float64 // default 4
	WCS       image.WCSProvider // optional, required only if Mask is set
	Mask      SkyMask           // optional
}

// Segment runs seed/flood connected-component labeling over data/rms (both
// img.Width x img.Height, row-major) and returns islands in deterministic
// raster order of their seed pixels.
func (s Segmenter) Segment(data, rms image.PixelImage) []Island {
	seedClip := s.SeedClip
	if seedClip <= 0 {
		seedClip = 5
	}
	floodClip := s.FloodClip
	if floodClip <= 0 {
		floodClip = 4
	}

	w, h := data.Width, data.Height
	snr := make([]float32, w*h)
	for i, v := range data.Data {
		r := rms.Data[i]
		if math.IsNaN(float64(v)) || math.IsNaN(float64(r)) || r <= 0 {
			snr[i] = float32(math.NaN())
			continue
		}
		snr[i] = float32(math.Abs(float64(v)) / float64(r))
	}

	visited := make([]bool, w*h)
	var islands []Island
	nextID := 0

	for y0 := 0; y0 < h; y0++ {
		for x0 := 0; x0 < w; x0++ {
			idx0 := y0*w + x0
			if visited[idx0] || math.IsNaN(float64(snr[idx0])) || float64(snr[idx0]) < floodClip {
				continue
			}

			// flood-fill the 4-connected component of SNR >= floodClip.
			stack := []int{idx0}
			visited[idx0] = true
			var members []int
			maxSNR := float32(0)
			xmin, xmax, ymin, ymax := x0, x0, y0, y0

			for len(stack) > 0 {
				idx := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				members = append(members, idx)
				x, y := idx%w, idx/w
				if x < xmin {
					xmin = x
				}
				if x+1 > xmax {
					xmax = x + 1
				}
				if y < ymin {
					ymin = y
				}
				if y+1 > ymax {
					ymax = y + 1
				}
				if snr[idx] > maxSNR {
					maxSNR = snr[idx]
				}

				for _, n := range neighbors4(x, y, w, h) {
					if visited[n] || math.IsNaN(float64(snr[n])) || float64(snr[n]) < floodClip {
						continue
					}
					visited[n] = true
					stack = append(stack, n)
				}
			}

			if float64(maxSNR) < seedClip {
				continue
			}

			bw, bh := xmax-xmin, ymax-ymin
			pixels := make([]float32, bw*bh)
			rmsOut := make([]float32, bw*bh)
			for i := range pixels {
				pixels[i] = float32(math.NaN())
			}
			memberSet := make(map[int]bool, len(members))
			for _, idx := range members {
				memberSet[idx] = true
			}
			for y := ymin; y < ymax; y++ {
				for x := xmin; x < xmax; x++ {
					idx := y*w + x
					rmsOut[(y-ymin)*bw+(x-xmin)] = rms.Data[idx]
					if memberSet[idx] {
						pixels[(y-ymin)*bw+(x-xmin)] = data.Data[idx]
					}
				}
			}

			validCount := 0
			for _, v := range pixels {
				if !math.IsNaN(float64(v)) {
					validCount++
				}
			}
			if validCount <= 1 {
				continue
			}

			if s.Mask != nil && s.WCS != nil {
				inMask := false
				for _, idx := range members {
					x, y := idx%w, idx/w
					if s.Mask.Contains(s.WCS.PixToSky(float64(x), float64(y))) {
						inMask = true
						break
					}
				}
				if !inMask {
					continue
				}
			}

			isl := Island{
				ID:   nextID,
				XMin: xmin, XMax: xmax,
				YMin: ymin, YMax: ymax,
				Pixels: pixels,
				RMS:    rmsOut,
				SeedX:  x0, SeedY: y0,
			}
			nextID++
			islands = append(islands, isl)
		}
	}

	return islands
}

func neighbors4(x, y, w, h int) []int {
	var out []int
	if x > 0 {
		out = append(out, y*w+x-1)
	}
	if x < w-1 {
		out = append(out, y*w+x+1)
	}
	if y > 0 {
		out = append(out, (y-1)*w+x)
	}
	if y < h-1 {
		out = append(out, (y+1)*w+x)
	}
	return out
}
