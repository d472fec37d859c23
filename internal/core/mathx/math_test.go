package mathx

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	cases := []struct{ v, min, max, want float64 }{
		{-2, -1, 1, -1},
		{2, -1, 1, 1},
		{0.5, -1, 1, 0.5},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.min, c.max); got != c.want {
			t.Errorf("Clamp(%v,%v,%v) = %v, want %v", c.v, c.min, c.max, got, c.want)
		}
	}
}

func TestSmoothstepSaturates(t *testing.T) {
	if Smoothstep(0, 50000, -10) != 0 {
		t.Error("below edge0 must be 0")
	}
	if Smoothstep(0, 50000, 60000) != 1 {
		t.Error("above edge1 must be 1")
	}
	mid := Smoothstep(0, 50000, 25000)
	if math.Abs(mid-0.5) > 1e-9 {
		t.Errorf("midpoint = %v, want 0.5", mid)
	}
}

func TestDeadzone(t *testing.T) {
	if Deadzone(0.05, 0.1) != 0 {
		t.Error("value inside deadzone must be zeroed")
	}
	if Deadzone(-0.5, 0.1) != -0.5 {
		t.Error("value outside deadzone must pass through")
	}
}

func TestWrapX(t *testing.T) {
	cases := []struct{ x, width, want float64 }{
		{-10, 720, 710},
		{730, 720, 10},
		{720, 720, 0},
		{100, 720, 100},
	}
	for _, c := range cases {
		if got := WrapX(c.x, c.width); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("WrapX(%v,%v) = %v, want %v", c.x, c.width, got, c.want)
		}
	}
}
