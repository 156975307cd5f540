package rolling

import (
	"fmt"
	"math"
)

// Mean computes the trailing simple moving average of values over a fixed
// window using an incrementally maintained running sum. Position i holds the
// mean of values[i-window+1 .. i]; positions before the window fills report
// filled[i] == false and avg[i] is unspecified.
//
// A non-finite input marks every window containing it unfilled, mirroring how
// a NaN propagates through a pandas rolling mean. The window itself is
// validated here: a non-positive window, or one longer than the series, is a
// configuration error rather than a runtime NA.
func Mean(values []float64, window int) (avg []float64, filled []bool, err error) {
	if window <= 0 {
		return nil, nil, fmt.Errorf("rolling: window must be positive, got %d", window)
	}
	if window > len(values) {
		return nil, nil, fmt.Errorf("rolling: window %d exceeds series length %d", window, len(values))
	}

	avg = make([]float64, len(values))
	filled = make([]bool, len(values))

	var sum float64
	bad := 0 // non-finite values currently inside the window

	for i, v := range values {
		if isFinite(v) {
			sum += v
		} else {
			bad++
		}

		if i >= window {
			out := values[i-window]
			if isFinite(out) {
				sum -= out
			} else {
				bad--
			}
		}

		if i >= window-1 && bad == 0 {
			avg[i] = sum / float64(window)
			filled[i] = true
		}
	}

	return avg, filled, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
