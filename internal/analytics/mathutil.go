package analytics

import (
	"math"
	"sort"
)

// roundFloat rounds v to the given number of decimals
func roundFloat(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}

	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev uses n-1 in the denominator; a single value has zero spread.
func sampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

func sortedCopy(values []float64) []float64 {
	out := append([]float64(nil), values...)
	sort.Float64s(out)
	return out
}

// quantile returns the q-th quantile of sorted values using linear
// interpolation between closest ranks (R type 7).
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if hi >= n {
		hi = n - 1
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

func median(values []float64) float64 {
	return quantile(sortedCopy(values), 0.5)
}

// medianAbsDev is the median of |x - center|
func medianAbsDev(values []float64, center float64) float64 {
	devs := make([]float64, len(values))
	for i, v := range values {
		devs[i] = math.Abs(v - center)
	}
	return median(devs)
}

// meanAbsDev is the mean of |x - center|
func meanAbsDev(values []float64, center float64) float64 {
	devs := make([]float64, len(values))
	for i, v := range values {
		devs[i] = math.Abs(v - center)
	}
	return mean(devs)
}
