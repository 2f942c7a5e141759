package anim

import "math"

// Easing shapes animation progress.
type Easing int

const (
	Linear Easing = iota
	EaseInOutCubic
)

// ParseEasing maps an easing name; anything unrecognized is linear.
func ParseEasing(s string) Easing {
	if s == "easeInOutCubic" {
		return EaseInOutCubic
	}
	return Linear
}

func (e Easing) String() string {
	if e == EaseInOutCubic {
		return "easeInOutCubic"
	}
	return "linear"
}

// Apply maps progress p in [0, 1] through the curve.
func (e Easing) Apply(p float64) float64 {
	if e != EaseInOutCubic {
		return p
	}
	if p < 0.5 {
		return 4 * p * p * p
	}
	return 1 - math.Pow(-2*p+2, 3)/2
}
