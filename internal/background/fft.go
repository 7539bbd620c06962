package background

import (
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/radioimg/gaussfind/internal/kernel"
)

// fft2 performs a 2D discrete Fourier transform of a row-major width*height
// grid in place, via separable row and column 1D complex FFTs.
func fft2(grid []complex128, width, height int) {
	rowFFT := fourier.NewCmplxFFT(width)
	row := make([]complex128, width)
	for y := 0; y < height; y++ {
		copy(row, grid[y*width:(y+1)*width])
		rowFFT.Coefficients(grid[y*width:(y+1)*width], row)
	}

	colFFT := fourier.NewCmplxFFT(height)
	col := make([]complex128, height)
	out := make([]complex128, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = grid[y*width+x]
		}
		colFFT.Coefficients(out, col)
		for y := 0; y < height; y++ {
			grid[y*width+x] = out[y]
		}
	}
}

// ifft2 performs the inverse 2D discrete Fourier transform in place,
// normalized so that ifft2(fft2(x)) == x.
func ifft2(grid []complex128, width, height int) {
	colFFT := fourier.NewCmplxFFT(height)
	col := make([]complex128, height)
	out := make([]complex128, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = grid[y*width+x]
		}
		colFFT.Sequence(out, col)
		for y := 0; y < height; y++ {
			grid[y*width+x] = out[y]
		}
	}

	rowFFT := fourier.NewCmplxFFT(width)
	row := make([]complex128, width)
	for y := 0; y < height; y++ {
		copy(row, grid[y*width:(y+1)*width])
		rowFFT.Sequence(grid[y*width:(y+1)*width], row)
	}

	// gonum's Sequence is unnormalized: scale by 1/(width*height).
	norm := complex(float64(width*height), 0)
	for i := range grid {
		grid[i] /= norm
	}
}

// wrappedKernelGrid zero-pads k into a width*height grid, centered at the
// origin with periodic wraparound, so that a subsequent cyclic convolution
// via FFT aligns the kernel's center with each output pixel.
func wrappedKernelGrid(k kernel.TopHat, width, height int) []complex128 {
	grid := make([]complex128, width*height)
	r := k.Radius
	for dy := -r; dy <= r; dy++ {
		yy := ((dy % height) + height) % height
		for dx := -r; dx <= r; dx++ {
			xx := ((dx % width) + width) % width
			v := k.Data[(dy+r)*k.Size+(dx+r)]
			if v != 0 {
				grid[yy*width+xx] = complex(float64(v), 0)
			}
		}
	}
	return grid
}

// convolveFFT computes the cyclic convolution of data (width*height,
// row-major, float32) with the top-hat kernel k, normalized by k.Sum.
func convolveFFT(data []float32, width, height int, k kernel.TopHat) []float32 {
	imgC := make([]complex128, width*height)
	for i, v := range data {
		imgC[i] = complex(float64(v), 0)
	}
	kerC := wrappedKernelGrid(k, width, height)

	fft2(imgC, width, height)
	fft2(kerC, width, height)

	for i := range imgC {
		imgC[i] *= kerC[i]
	}

	ifft2(imgC, width, height)

	out := make([]float32, width*height)
	sum := k.Sum
	if sum == 0 {
		sum = 1
	}
	for i, c := range imgC {
		out[i] = float32(real(c) / sum)
	}
	return out
}
