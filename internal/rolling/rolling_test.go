package rolling

import (
	"math"
	"testing"
)

func TestMeanBasic(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	avg, filled, err := Mean(values, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filled[0] || filled[1] {
		t.Fatal("positions before the window fills must be unfilled")
	}
	if !filled[2] || avg[2] != 2.0 {
		t.Fatalf("index 2: want 2.0 filled, got %v filled=%v", avg[2], filled[2])
	}
	if !filled[3] || avg[3] != 3.0 {
		t.Fatalf("index 3: want 3.0 filled, got %v filled=%v", avg[3], filled[3])
	}
	if !filled[len(values)-1] || avg[len(values)-1] != 9.0 {
		t.Fatalf("last index: want 9.0 filled, got %v", avg[len(values)-1])
	}
}

func TestMeanMatchesNaive(t *testing.T) {
	values := []float64{100.5, 99.25, 101.75, 98.0, 102.5, 97.125, 103.0, 96.5, 104.25, 95.75, 105.5, 94.0}
	for _, window := range []int{1, 2, 3, 5, 12} {
		avg, filled, err := Mean(values, window)
		if err != nil {
			t.Fatalf("window %d: %v", window, err)
		}
		for i := range values {
			if i < window-1 {
				if filled[i] {
					t.Fatalf("window %d index %d: should be unfilled", window, i)
				}
				continue
			}
			if !filled[i] {
				t.Fatalf("window %d index %d: should be filled", window, i)
			}
			var sum float64
			for j := i - window + 1; j <= i; j++ {
				sum += values[j]
			}
			naive := sum / float64(window)
			if math.Abs(avg[i]-naive) > 1e-8 {
				t.Fatalf("window %d index %d: incremental %v vs naive %v", window, i, avg[i], naive)
			}
		}
	}
}

func TestMeanConstantSeries(t *testing.T) {
	values := make([]float64, 25)
	for i := range values {
		values[i] = 1
	}
	avg, filled, err := Mean(values, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 19; i++ {
		if filled[i] {
			t.Fatalf("index %d: should be unfilled", i)
		}
	}
	for i := 19; i < 25; i++ {
		if !filled[i] || avg[i] != 1.0 {
			t.Fatalf("index %d: want 1.0 filled, got %v filled=%v", i, avg[i], filled[i])
		}
	}
}

func TestMeanWindowEqualsLength(t *testing.T) {
	avg, filled, err := Mean([]float64{2, 4, 6}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filled[0] || filled[1] {
		t.Fatal("only the final position should be filled")
	}
	if !filled[2] || avg[2] != 4.0 {
		t.Fatalf("final position: want 4.0, got %v", avg[2])
	}
}

func TestMeanInvalidWindow(t *testing.T) {
	if _, _, err := Mean([]float64{1, 2, 3}, 0); err == nil {
		t.Fatal("window 0 must be a configuration error")
	}
	if _, _, err := Mean([]float64{1, 2, 3}, -2); err == nil {
		t.Fatal("negative window must be a configuration error")
	}
	if _, _, err := Mean([]float64{1, 2, 3}, 4); err == nil {
		t.Fatal("window longer than series must be a configuration error")
	}
}

func TestMeanNonFinitePoisonsWindow(t *testing.T) {
	values := []float64{1, 2, math.NaN(), 4, 5, 6, 7}
	avg, filled, err := Mean(values, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Windows ending at 2, 3, 4 contain the NaN.
	for i := 2; i <= 4; i++ {
		if filled[i] {
			t.Fatalf("index %d: window contains NaN, should be unfilled", i)
		}
	}
	if !filled[5] || avg[5] != 5.0 {
		t.Fatalf("index 5: want 5.0 once NaN leaves the window, got %v filled=%v", avg[5], filled[5])
	}
	if !filled[6] || avg[6] != 6.0 {
		t.Fatalf("index 6: want 6.0, got %v", avg[6])
	}
}

func TestMeanInfinityPoisonsWindow(t *testing.T) {
	values := []float64{1, math.Inf(1), 3, 4, 5}
	_, filled, err := Mean(values, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filled[1] || filled[2] {
		t.Fatal("windows containing +Inf must be unfilled")
	}
	if !filled[3] || !filled[4] {
		t.Fatal("windows past the +Inf must recover")
	}
}
