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

// Package fastmedian provides in-place quickselect primitives used by the
// background estimator's per-cell median/MAD reduction, where allocating a
// full sort for every grid cell or island would dominate runtime.
package fastmedian

// Select the k-th lowest element (1-indexed) of a, partially reordering it.
// a must not contain IEEE NaN.
func Select(a []float32, k int) float32 {
	left, right := 0, len(a)-1
	for left < right {
		mid := (left + right) >> 1
		pivot := a[mid]
		l, r := left-1, right+1
		for {
			for {
				l++
				if a[l] >= pivot {
					break
				}
			}
			for {
				r--
				if a[r] <= pivot {
					break
				}
			}
			if l >= r {
				break
			}
			a[l], a[r] = a[r], a[l]
		}
		index := r

		offset := index - left + 1
		if k <= offset {
			right = index
		} else {
			left = index + 1
			k = k - offset
		}
	}
	return a[left]
}

// Median selects the median of a, partially reordering it.
// a must not contain IEEE NaN.
func Median(a []float32) float32 {
	if len(a) == 0 {
		return float32(0)
	}
	return Select(a, (len(a)>>1)+1)
}

// MAD computes the median absolute deviation of a around its median,
// scaled by 1.4826 to approximate the Gaussian standard deviation.
// Destructively reorders a working copy; the caller-supplied buffer must
// have capacity for at least len(a) elements and is used as scratch space.
func MAD(a []float32, scratch []float32) (median, mad float32) {
	scratch = scratch[:len(a)]
	copy(scratch, a)
	median = Median(scratch)
	for i, v := range a {
		d := v - median
		if d < 0 {
			d = -d
		}
		scratch[i] = d
	}
	mad = Median(scratch) * 1.4826
	return median, mad
}
