// Package geom provides float32 linear algebra primitives for the splat
// binding pipeline: vectors, quaternions, column-major 4x4 matrices and
// point/triangle queries.
package geom

import "math"

type Element = float32

func Abs(v Element) Element {
	return Element(math.Abs(float64(v)))
}

func Sqrt(v Element) Element {
	return Element(math.Sqrt(float64(v)))
}

func Clamp(v, min, max Element) Element {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
