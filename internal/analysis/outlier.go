// Package analysis holds statistics that consume a finished feature column.
package analysis

import (
	"errors"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when a series is too short for a statistic.
var ErrInsufficientData = errors.New("insufficient data")

// ErrDegenerateSeries is returned when a series has no variation to test.
var ErrDegenerateSeries = errors.New("degenerate series")

// OutlierIndices returns the positions i where (x[i]-mean)/std > k, using
// the population standard deviation. Only the upper tail is flagged; pass
// the negated series for the lower tail. A constant series has no outliers.
func OutlierIndices(x []float64, k float64) []int {
	if len(x) == 0 {
		return nil
	}

	mean, std := stat.PopMeanStdDev(x, nil)
	if std == 0 {
		return nil
	}

	var out []int
	for i, v := range x {
		if (v-mean)/std > k {
			out = append(out, i)
		}
	}
	return out
}
