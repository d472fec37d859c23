package mathx

import "math"

func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Smoothstep maps v into [0,1] with zero slope at both edges.
func Smoothstep(edge0, edge1, v float64) float64 {
	if edge0 == edge1 {
		if v < edge0 {
			return 0
		}
		return 1
	}
	t := Clamp((v-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

// Deadzone zeroes an axis value whose magnitude is below the threshold.
func Deadzone(v, threshold float64) float64 {
	if math.Abs(v) < threshold {
		return 0
	}
	return v
}

// WrapX wraps a horizontal coordinate into [0, width).
func WrapX(x, width float64) float64 {
	if x < 0 {
		return math.Mod(math.Mod(x, width)+width, width)
	}
	if x >= width {
		return math.Mod(x, width)
	}
	return x
}
