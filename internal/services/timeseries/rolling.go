package timeseries

import "math"

// Rolling statistics over observation windows. NaN values are skipped and do
// not count toward minPeriods. All functions are pure.

// WindowMeanStd returns the mean and sample standard deviation (n-1) of the
// window of size window ending at position end inclusive.
func WindowMeanStd(values []float64, end, window, minPeriods int) (mean, std float64) {
	mean, std = math.NaN(), math.NaN()
	if end < 0 || end >= len(values) || window <= 0 {
		return
	}
	start := end - window + 1
	if start < 0 {
		start = 0
	}
	n := 0
	sum := 0.0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values[start : end+1] {
		if math.IsNaN(v) {
			continue
		}
		n++
		sum += v
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if n == 0 || n < minPeriods {
		return
	}
	mean = sum / float64(n)
	if n < 2 {
		return
	}
	// constant window: dispersion is exactly zero
	if lo == hi {
		return lo, 0
	}
	ss := 0.0
	for _, v := range values[start : end+1] {
		if math.IsNaN(v) {
			continue
		}
		d := v - mean
		ss += d * d
	}
	std = math.Sqrt(ss / float64(n-1))
	return
}

// RollingMeanStd applies WindowMeanStd at every position.
func RollingMeanStd(values []float64, window, minPeriods int) (means, stds []float64) {
	means = make([]float64, len(values))
	stds = make([]float64, len(values))
	for i := range values {
		means[i], stds[i] = WindowMeanStd(values, i, window, minPeriods)
	}
	return
}

// ZScore is (x-mean)/std, undefined when any input is undefined or std is zero.
func ZScore(x, mean, std float64) float64 {
	if math.IsNaN(x) || math.IsNaN(mean) || math.IsNaN(std) || std == 0 {
		return math.NaN()
	}
	return (x - mean) / std
}

// RollingMax is the trailing max over window positions, NaN where fewer than
// minValid values are present.
func RollingMax(values []float64, window, minValid int) []float64 {
	return rollingExtreme(values, window, minValid, func(v, back float64) bool { return v >= back })
}

// RollingMin mirrors RollingMax.
func RollingMin(values []float64, window, minValid int) []float64 {
	return rollingExtreme(values, window, minValid, func(v, back float64) bool { return v <= back })
}

// rollingExtreme keeps a monotonic deque of indices whose values are
// candidates for the window extreme. Each index enters and leaves once.
func rollingExtreme(values []float64, window, minValid int, dominates func(v, back float64) bool) []float64 {
	out := make([]float64, len(values))
	if window <= 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	if minValid < 1 {
		minValid = 1
	}
	deque := make([]int, 0, window)
	valid := 0
	for i, v := range values {
		if drop := i - window; drop >= 0 {
			if !math.IsNaN(values[drop]) {
				valid--
			}
			if len(deque) > 0 && deque[0] == drop {
				deque = deque[1:]
			}
		}
		if !math.IsNaN(v) {
			valid++
			for len(deque) > 0 && dominates(v, values[deque[len(deque)-1]]) {
				deque = deque[:len(deque)-1]
			}
			deque = append(deque, i)
		}
		if valid < minValid || len(deque) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[deque[0]]
	}
	return out
}

// RollingExtrema returns trailing highs and lows using whatever history exists.
func RollingExtrema(values []float64, window int) (hi, lo []float64) {
	return RollingMax(values, window, 1), RollingMin(values, window, 1)
}

// Classify maps a z-score onto rich, cheap or neutral around +/-threshold.
// Boundary values stay neutral.
func Classify(z, threshold float64) string {
	switch {
	case math.IsNaN(z):
		return "undefined"
	case z > threshold:
		return "rich"
	case z < -threshold:
		return "cheap"
	default:
		return "neutral"
	}
}
