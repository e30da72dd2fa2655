// stats.go - Zusammenfassende Statistiken für Smoke-Tests und Logging

package tensor

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// MeanStd returns the population mean and standard deviation of all
// elements. An empty array yields NaN for both.
func MeanStd(a *Array) (mean, std float64) {
	if len(a.data) == 0 {
		return math.NaN(), math.NaN()
	}
	xs := make([]float64, len(a.data))
	for i, v := range a.data {
		xs[i] = float64(v)
	}
	return stat.PopMeanStdDev(xs, nil)
}

// AllFinite reports whether no element is NaN or ±Inf.
func AllFinite(a *Array) bool {
	for _, v := range a.data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}
