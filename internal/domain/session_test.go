package domain

import (
	"math"
	"testing"
)

func TestCountWords(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"two words", 2},
		{"  leading and trailing  spaces  ", 4},
		{"tabs\tand\nnewlines count", 4},
	}
	for _, tc := range cases {
		if got := CountWords(tc.in); got != tc.want {
			t.Errorf("CountWords(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestRollingAverage(t *testing.T) {
	// No prior samples: the sample becomes the average.
	if got := RollingAverage(0.9, 0, -0.5); got != -0.5 {
		t.Fatalf("expected first sample to replace the average, got %f", got)
	}

	// Folding samples one at a time matches the plain mean.
	samples := []float64{0.2, -0.4, 1.0, -1.0, 0.6}
	avg := 0.0
	for i, s := range samples {
		avg = RollingAverage(avg, i, s)
	}
	want := (0.2 - 0.4 + 1.0 - 1.0 + 0.6) / 5
	if math.Abs(avg-want) > 1e-9 {
		t.Fatalf("rolling average %f, want %f", avg, want)
	}
}
