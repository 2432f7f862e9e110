package audio

import (
	"math"
	"testing"
)

func TestDownmixMono_AveragesChannels(t *testing.T) {
	stereo := []float32{0.2, 0.4, -0.5, -0.5, 1.0, 0.0}
	mono := DownmixMono(stereo, 2)

	want := []float32{0.3, -0.5, 0.5}
	if len(mono) != len(want) {
		t.Fatalf("Expected %d mono samples, got %d", len(want), len(mono))
	}
	for i := range want {
		if math.Abs(float64(mono[i]-want[i])) > 1e-6 {
			t.Errorf("Sample %d: expected %f, got %f", i, want[i], mono[i])
		}
	}
}

func TestDownmixMono_SingleChannelPassthrough(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3}
	if got := DownmixMono(samples, 1); len(got) != 3 || got[0] != 0.1 {
		t.Errorf("Expected mono input unchanged, got %v", got)
	}
}

func TestResample_DownToHalfRate(t *testing.T) {
	in := make([]float32, 100)
	for i := range in {
		in[i] = 0.25
	}

	out := Resample(in, 32000, 16000)
	if len(out) != 50 {
		t.Fatalf("Expected 50 samples at half rate, got %d", len(out))
	}
	for i, s := range out {
		if math.Abs(float64(s-0.25)) > 1e-6 {
			t.Errorf("Sample %d: expected constant signal preserved, got %f", i, s)
		}
	}
}

func TestResample_UpToDoubleRate(t *testing.T) {
	in := []float32{0.0, 1.0}
	out := Resample(in, 8000, 16000)
	if len(out) != 4 {
		t.Fatalf("Expected 4 samples at double rate, got %d", len(out))
	}
	if out[0] != 0.0 {
		t.Errorf("Expected first sample unchanged, got %f", out[0])
	}
	if math.Abs(float64(out[1]-0.5)) > 1e-6 {
		t.Errorf("Expected interpolated midpoint, got %f", out[1])
	}
}

func TestResample_SameRatePassthrough(t *testing.T) {
	in := []float32{0.1, 0.2}
	out := Resample(in, 16000, 16000)
	if len(out) != 2 || out[1] != 0.2 {
		t.Errorf("Expected equal-rate input unchanged, got %v", out)
	}
}
