package utils

import "math"

// FloorFraction returns floor(n * frac), at least 1 when n > 0 and frac > 0.
// A percentage minimum-should-match rounds down the same way.
func FloorFraction(n int, frac float64) int {
	if n <= 0 || frac <= 0 {
		return 0
	}
	// The epsilon keeps 100*0.29 from flooring to 28.
	v := int(math.Floor(float64(n)*frac + 1e-9))
	if v < 1 {
		v = 1
	}
	if v > n {
		v = n
	}
	return v
}

// Clamp returns v limited to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
