// Package indicators provides technical analysis indicators for trading.
//
// Every function is pure: it returns one value per input element and keeps
// no state between calls. Short inputs never fail; the first outputs are
// computed from whatever history exists.
package indicators

import "math"

func clampWindow(w int) int {
	if w < 1 {
		return 1
	}
	return w
}

// SMA is the mean of the last w values. The first w-1 outputs average the
// values seen so far.
func SMA(xs []float64, w int) []float64 {
	w = clampWindow(w)
	out := make([]float64, len(xs))
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= w {
			sum -= xs[i-w]
		}
		n := i + 1
		if n > w {
			n = w
		}
		out[i] = sum / float64(n)
	}
	return out
}

// EMA uses alpha = 2/(w+1), seeded with the first value.
func EMA(xs []float64, w int) []float64 {
	w = clampWindow(w)
	return smooth(xs, 2.0/float64(w+1))
}

// RMA is Wilder's moving average: alpha = 1/w, seeded with the first value.
func RMA(xs []float64, w int) []float64 {
	w = clampWindow(w)
	return smooth(xs, 1.0/float64(w))
}

func smooth(xs []float64, alpha float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		if i == 0 {
			out[i] = x
			continue
		}
		out[i] = alpha*x + (1-alpha)*out[i-1]
	}
	return out
}

// StdDev is the population standard deviation over the trailing window.
func StdDev(xs []float64, w int) []float64 {
	w = clampWindow(w)
	out := make([]float64, len(xs))
	for i := range xs {
		start := i - w + 1
		if start < 0 {
			start = 0
		}
		win := xs[start : i+1]

		mean := 0.0
		for _, x := range win {
			mean += x
		}
		mean /= float64(len(win))

		v := 0.0
		for _, x := range win {
			d := x - mean
			v += d * d
		}
		sd := math.Sqrt(v / float64(len(win)))
		if math.IsNaN(sd) || sd < 0 {
			sd = 0
		}
		out[i] = sd
	}
	return out
}

// RollingMin is the minimum of the trailing window.
func RollingMin(xs []float64, w int) []float64 {
	return rollingExtreme(xs, w, func(a, b float64) bool { return a < b })
}

// RollingMax is the maximum of the trailing window.
func RollingMax(xs []float64, w int) []float64 {
	return rollingExtreme(xs, w, func(a, b float64) bool { return a > b })
}

func rollingExtreme(xs []float64, w int, better func(a, b float64) bool) []float64 {
	w = clampWindow(w)
	out := make([]float64, len(xs))
	for i := range xs {
		start := i - w + 1
		if start < 0 {
			start = 0
		}
		best := xs[start]
		for _, x := range xs[start+1 : i+1] {
			if better(x, best) {
				best = x
			}
		}
		out[i] = best
	}
	return out
}
