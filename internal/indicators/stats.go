package indicators

import (
	"math"
	"sort"
)

// Returns converts a price series into simple period returns.
// Steps from a non-positive price are skipped.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev <= 0 {
			continue
		}
		out = append(out, (prices[i]-prev)/prev)
	}
	return out
}

// MeanStdDev returns the mean and population standard deviation of values
func MeanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

// Pearson computes the correlation of the trailing aligned windows of a and b.
// ok is false when fewer than minPoints aligned observations exist.
// A flat series has no defined correlation and reports 0.
func Pearson(a, b []float64, minPoints int) (corr float64, ok bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < minPoints || n < 2 {
		return 0, false
	}
	x := a[len(a)-n:]
	y := b[len(b)-n:]

	mx, sx := MeanStdDev(x)
	my, sy := MeanStdDev(y)
	if sx == 0 || sy == 0 {
		return 0, true
	}

	var cov float64
	for i := 0; i < n; i++ {
		cov += (x[i] - mx) * (y[i] - my)
	}
	cov /= float64(n)
	return cov / (sx * sy), true
}

// Percentile returns the p-th percentile (0..100) using linear interpolation
// between closest ranks.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
