package main

import "math"

func mathSqrt(v float64) float64 { return math.Sqrt(v) }
func mathPow(base, exp float64) float64 { return math.Pow(base, exp) }

func mathAbs(v float64) float64 {
	if v < 0 {
		return -v
	}

	return v
}

func mathMin(a, b float64) float64 { return math.Min(a, b) }
func mathMax(a, b float64) float64 { return math.Max(a, b) }

func mathIMinInt(a, b int32) int32 {
	if a < b {
		return a
	}

	return b
}

func mathIMaxInt(a, b int32) int32 {
	if a > b {
		return a
	}

	return b
}

func mathIClampInt(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func mathIAbsInt(v int32) int32 {
	if v < 0 {
		return -v
	}

	return v
}
