package sim

import (
	"math"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// allowedSpeed is the velocity-limited deceleration law: the fastest speed
// from which the robot can still stop within the remaining distance at the
// effective acceleration limit, capped by the effective velocity limit.
// Zero remaining distance yields zero speed, never a 0/0 form.
func allowedSpeed(vMax, aMax, remaining float64) float64 {
	if remaining <= 0 {
		return 0
	}
	braking := math.Sqrt(2 * aMax * remaining)
	return math.Min(vMax, braking)
}

// brakingOmega is the rotational analogue: the angular rate from which the
// robot can still stop within err radians at the alpha limit, capped by the
// omega limit. The sign follows err.
func brakingOmega(err, omegaMax, alphaMax float64) float64 {
	mag := math.Min(math.Sqrt(2*alphaMax*math.Abs(err)), omegaMax)
	if err < 0 {
		return -mag
	}
	return mag
}

// rateLimit clamps a commanded angular rate so it differs from the previous
// rate by at most alphaMax*dt. The remainder of the command is deferred to
// later steps.
func rateLimit(command, previous, alphaMax, dt float64) float64 {
	lo := previous - alphaMax*dt
	hi := previous + alphaMax*dt
	if command < lo {
		return lo
	}
	if command > hi {
		return hi
	}
	return command
}

// desiredHeading evaluates the rotation profile at arc position s. Before the
// first keyframe the profile holds the start heading unless that keyframe
// begins at the path start. Inside an interval a profiled keyframe
// interpolates along the shortest arc as a function of arc progress; a
// non-profiled keyframe snaps the instant the interval is entered.
func desiredHeading(startHeading float64, frames []keyframe, s float64) float64 {
	if len(frames) == 0 {
		return startHeading
	}

	prevS, prevHeading := 0.0, startHeading
	if frames[0].s <= epsSegment {
		prevHeading = frames[0].heading
	}
	if s <= prevS {
		return prevHeading
	}

	for _, kf := range frames {
		if s <= kf.s {
			if !kf.profiled {
				return kf.heading
			}
			span := kf.s - prevS
			if span <= epsSegment {
				return kf.heading
			}
			alpha := (s - prevS) / span
			return core.LerpAngle(prevHeading, kf.heading, alpha)
		}
		prevS, prevHeading = kf.s, kf.heading
	}
	return frames[len(frames)-1].heading
}
