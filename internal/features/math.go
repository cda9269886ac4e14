package features

import "math"

// ratio divides num by den. A zero denominator yields degenerate = true and
// an infinity signed like num; 0/0 counts as positive.
func ratio(num, den float64) (value float64, degenerate bool) {
	if den != 0 {
		return num / den, false
	}
	if num < 0 {
		return math.Inf(-1), true
	}
	return math.Inf(1), true
}
