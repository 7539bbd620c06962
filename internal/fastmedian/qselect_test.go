package fastmedian

import (
	"testing"

	"github.com/valyala/fastrand"
)

func TestMedianUpperMiddle(t *testing.T) {
	rng := fastrand.RNG{}
	for n := 1; n < 500; n++ {
		arr := make([]float32, n)
		for j := range arr {
			arr[j] = float32(j + 1)
		}
		for j := range arr {
			k := rng.Uint32n(uint32(len(arr)))
			arr[j], arr[k] = arr[k], arr[j]
		}

		want := float32((n + 2) / 2) // upper-middle element of 1..n
		got := Median(arr)
		if got != want {
			t.Fatalf("median(1..%d): got %f want %f", n, got, want)
		}
	}
}

func TestMAD(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 100}
	scratch := make([]float32, len(data))
	median, mad := MAD(data, scratch)
	if median <= 0 {
		t.Fatalf("expected positive median, got %f", median)
	}
	if mad <= 0 {
		t.Fatalf("expected positive MAD, got %f", mad)
	}
}
