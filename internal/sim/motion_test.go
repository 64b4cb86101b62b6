package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedSpeed_DecelerationLaw(t *testing.T) {
	// far away the cap rules, close in the braking parabola rules
	assert.Equal(t, 2.0, allowedSpeed(2.0, 2.0, 10))
	assert.InDelta(t, math.Sqrt(2*2.0*0.25), allowedSpeed(2.0, 2.0, 0.25), 1e-12)
	assert.Zero(t, allowedSpeed(2.0, 2.0, 0))
	assert.Zero(t, allowedSpeed(2.0, 2.0, -0.5))
}

func TestBrakingOmega_SignFollowsError(t *testing.T) {
	assert.Positive(t, brakingOmega(0.5, 10, 20))
	assert.Negative(t, brakingOmega(-0.5, 10, 20))
	assert.Zero(t, brakingOmega(0, 10, 20))

	// far from the target the omega cap rules
	assert.Equal(t, 10.0, brakingOmega(100, 10, 20))
}

func TestRateLimit_DefersRemainder(t *testing.T) {
	// commanded jump of 5 rad/s with alpha 10 and dt 0.02 allows 0.2 per step
	assert.InDelta(t, 0.2, rateLimit(5, 0, 10, 0.02), 1e-12)
	assert.InDelta(t, -0.2, rateLimit(-5, 0, 10, 0.02), 1e-12)
	assert.InDelta(t, 1.0, rateLimit(1.0, 0.9, 10, 0.02), 1e-12)
}

func TestDesiredHeading_HoldsStartBeforeFirstKeyframe(t *testing.T) {
	frames := []keyframe{{s: 4, heading: 1.0, profiled: true, ordinal: 0}}

	assert.Equal(t, 0.25, desiredHeading(0.25, nil, 3))
	assert.Equal(t, 0.25, desiredHeading(0.25, frames, 0))
	assert.InDelta(t, 0.25+(1.0-0.25)*0.5, desiredHeading(0.25, frames, 2), 1e-12)
	assert.Equal(t, 1.0, desiredHeading(0.25, frames, 4))
	assert.Equal(t, 1.0, desiredHeading(0.25, frames, 99))
}

func TestDesiredHeading_SnapAtIntervalEntry(t *testing.T) {
	frames := []keyframe{
		{s: 2, heading: 0.5, profiled: true},
		{s: 6, heading: 1.5, profiled: false},
	}

	// at the first keyframe the earlier heading still holds
	assert.InDelta(t, 0.5, desiredHeading(0, frames, 2), 1e-12)
	// any progress into the snap interval jumps straight to its heading
	assert.Equal(t, 1.5, desiredHeading(0, frames, 2.001))
	assert.Equal(t, 1.5, desiredHeading(0, frames, 6))
}

func TestDesiredHeading_ProfiledTakesShortestArc(t *testing.T) {
	// from 170 to -170 degrees the short way is through 180, not zero
	from := 170 * math.Pi / 180
	frames := []keyframe{{s: 10, heading: -from, profiled: true}}

	mid := desiredHeading(from, frames, 5)
	assert.InDelta(t, math.Pi, math.Abs(mid), 1e-9)
}

func TestDesiredHeading_KeyframeAtPathStart(t *testing.T) {
	frames := []keyframe{
		{s: 0, heading: 0.8, profiled: true},
		{s: 4, heading: 1.6, profiled: true},
	}

	// a keyframe at arc zero replaces the start heading entirely
	assert.Equal(t, 0.8, desiredHeading(0.1, frames, 0))
	assert.InDelta(t, 1.2, desiredHeading(0.1, frames, 2), 1e-12)
}
