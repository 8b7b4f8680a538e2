package timing

import (
	"fmt"
	"math"
)

// Fps is a frame rate in frames per second. The zero value is invalid.
type Fps float64

// fpsEpsilon is the margin used when comparing rates; rates closer than this
// are treated as equal.
const fpsEpsilon = 0.001

// FpsFromPeriod converts a vsync period to a rate. A zero or negative period
// yields the zero Fps.
func FpsFromPeriod(period Nanos) Fps {
	if period <= 0 {
		return 0
	}
	return Fps(1e9 / float64(period))
}

// Period returns the vsync period for the rate, or 0 for an invalid rate.
func (f Fps) Period() Nanos {
	if f <= 0 {
		return 0
	}
	return Nanos(math.Round(1e9 / float64(f)))
}

// IsValid reports whether the rate is positive.
func (f Fps) IsValid() bool { return f > 0 }

// Equals compares two rates within the standard margin.
func (f Fps) Equals(other Fps) bool {
	return math.Abs(float64(f-other)) < fpsEpsilon
}

// LessThanOrEqual compares with margin, so 59.999 <= 60 holds.
func (f Fps) LessThanOrEqual(other Fps) bool {
	return float64(f)-fpsEpsilon <= float64(other)
}

// GreaterThanOrEqual compares with margin.
func (f Fps) GreaterThanOrEqual(other Fps) bool {
	return float64(f)+fpsEpsilon >= float64(other)
}

func (f Fps) String() string {
	return fmt.Sprintf("%.2ffps", float64(f))
}

// FpsRange is an inclusive [Min, Max] band of rates.
type FpsRange struct {
	Min Fps
	Max Fps
}

// Includes reports whether fps lies in the range, with margin on both ends.
func (r FpsRange) Includes(fps Fps) bool {
	return r.Min.LessThanOrEqual(fps) && fps.LessThanOrEqual(r.Max)
}

// Contains reports whether other is a sub-range of r.
func (r FpsRange) Contains(other FpsRange) bool {
	return r.Min.LessThanOrEqual(other.Min) && other.Max.LessThanOrEqual(r.Max)
}

func (r FpsRange) Equals(other FpsRange) bool {
	return r.Min.Equals(other.Min) && r.Max.Equals(other.Max)
}

func (r FpsRange) String() string {
	return fmt.Sprintf("[%s %s]", r.Min, r.Max)
}
