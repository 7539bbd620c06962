package background

import (
	"math"

	"github.com/radioimg/gaussfind/internal/fastmedian"
	"github.com/radioimg/gaussfind/internal/image"
)

// MeshEstimator is a simpler alternative background/RMS estimator: the
// image is tiled into boxes sized in beams, and each box gets a constant
// background (median) and a per-tile scale statistic.
type MeshEstimator struct {
	// MeshSizeBeams is the number of beams spanned by one tile, default 20.
	MeshSizeBeams float64

	// ScaleMode selects the per-tile RMS statistic: "iqr" (default,
	// IQR/1.34896) or "mad" (median absolute deviation scaled by 1.4826).
	ScaleMode string
}

// Estimate tiles img into boxes sized from beam, and fills each tile with
// its median (background) and scale statistic (RMS). Tiles with fewer than
// 4 finite pixels get NaN, matching estimate_bkg_rms's degenerate case.
func (m MeshEstimator) Estimate(img image.PixelImage, beam image.PixelBeam) (bkgOut, rmsOut image.PixelImage, err error) {
	meshSize := m.MeshSizeBeams
	if meshSize <= 0 {
		meshSize = 20
	}

	paRad := beam.PADeg * math.Pi / 180
	widthX := int(meshSize * math.Max(math.Abs(math.Cos(paRad)*beam.A), math.Abs(math.Sin(paRad)*beam.B)))
	widthY := int(meshSize * math.Max(math.Abs(math.Sin(paRad)*beam.A), math.Abs(math.Cos(paRad)*beam.B)))
	if widthX < 1 {
		widthX = 1
	}
	if widthY < 1 {
		widthY = 1
	}
	if widthX >= img.Width {
		widthX = img.Width
	}
	if widthY >= img.Height {
		widthY = img.Height
	}

	bkg := image.NewPixelImage(img.Width, img.Height)
	rms := image.NewPixelImage(img.Width, img.Height)

	for y0 := 0; y0 < img.Height; y0 += widthY {
		y1 := y0 + widthY
		if y1 > img.Height {
			y1 = img.Height
		}
		for x0 := 0; x0 < img.Width; x0 += widthX {
			x1 := x0 + widthX
			if x1 > img.Width {
				x1 = img.Width
			}
			b, r := estimateTile(img, x0, x1, y0, y1, m.ScaleMode)
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					bkg.Set(x, y, b)
					rms.Set(x, y, r)
				}
			}
		}
	}

	return *bkg, *rms, nil
}

// estimateTile computes the median and scale statistic of the finite pixels
// in the [x0,x1)x[y0,y1) box, matching estimate_bkg_rms's <4-pixel NaN rule.
func estimateTile(img image.PixelImage, x0, x1, y0, y1 int, scaleMode string) (bkg, rms float32) {
	vals := make([]float32, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			v := img.At(x, y)
			if !math.IsNaN(float64(v)) {
				vals = append(vals, v)
			}
		}
	}
	if len(vals) < 4 {
		nan := float32(math.NaN())
		return nan, nan
	}
	if scaleMode == "mad" {
		scratch := make([]float32, len(vals))
		median, mad := fastmedian.MAD(vals, scratch)
		return median, mad
	}
	return image.MedianFinite(vals), image.IQRScale(vals)
}
