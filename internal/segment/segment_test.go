package segment

import (
	"math"
	"testing"

	"github.com/radioimg/gaussfind/internal/image"
)

func makeConst(w, h int, v float32) image.PixelImage {
	data := make([]float32, w*h)
	for i := range data {
		data[i] = v
	}
	return image.PixelImage{Width: w, Height: h, Data: data}
}

func TestSegmentFindsSingleIsland(t *testing.T) {
	w, h := 20, 20
	data := makeConst(w, h, 0)
	rms := makeConst(w, h, 1)
	// a 3x3 block with SNR well above both thresholds.
	for y := 9; y <= 11; y++ {
		for x := 9; x <= 11; x++ {
			data.Data[y*w+x] = 10
		}
	}

	s := Segmenter{}
	islands := s.Segment(data, rms)
	if len(islands) != 1 {
		t.Fatalf("got %d islands, want 1", len(islands))
	}
	isl := islands[0]
	if isl.Width() != 3 || isl.Height() != 3 {
		t.Fatalf("island bbox %dx%d, want 3x3", isl.Width(), isl.Height())
	}
}

func TestSegmentMonotonicity(t *testing.T) {
	w, h := 16, 16
	data := makeConst(w, h, 0)
	rms := makeConst(w, h, 1)
	for y := 5; y <= 7; y++ {
		for x := 5; x <= 7; x++ {
			data.Data[y*w+x] = 10
		}
	}
	data.Data[6*w+6] = 20

	s := Segmenter{SeedClip: 5, FloodClip: 4}
	islands := s.Segment(data, rms)
	if len(islands) != 1 {
		t.Fatalf("got %d islands, want 1", len(islands))
	}
	isl := islands[0]
	sawSeed := false
	for i, v := range isl.Pixels {
		if math.IsNaN(float64(v)) {
			continue
		}
		r := isl.RMS[i]
		snr := math.Abs(float64(v)) / float64(r)
		if snr < s.FloodClip {
			t.Fatalf("pixel SNR %f below flood clip %f", snr, s.FloodClip)
		}
		if snr >= s.SeedClip {
			sawSeed = true
		}
	}
	if !sawSeed {
		t.Fatalf("no pixel in island reached seed clip")
	}
}

func TestSegmentNoSeedNoIsland(t *testing.T) {
	w, h := 10, 10
	data := makeConst(w, h, 0)
	rms := makeConst(w, h, 1)
	// SNR=4.5: above flood_clip(4) but below seed_clip(5).
	for y := 4; y <= 5; y++ {
		for x := 4; x <= 5; x++ {
			data.Data[y*w+x] = 4.5
		}
	}

	s := Segmenter{}
	islands := s.Segment(data, rms)
	if len(islands) != 0 {
		t.Fatalf("got %d islands, want 0 (no pixel reaches seed clip)", len(islands))
	}
}

func TestSegmentNaNExcludesIsland(t *testing.T) {
	w, h := 10, 10
	data := makeConst(w, h, 0)
	rms := makeConst(w, h, 1)
	data.Data[5*w+5] = float32(math.NaN())

	s := Segmenter{}
	islands := s.Segment(data, rms)
	if len(islands) != 0 {
		t.Fatalf("got %d islands, want 0", len(islands))
	}
}
