package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/edanliahovetsky/bline-engine/internal/constraint"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

const (
	// floors keeping the derived iteration cap finite when a constraint set
	// carries a zero or near-zero limit
	minGuardVelocity = 0.1  // m/s
	minGuardOmega    = 1e-3 // rad/s
	minGuardTime     = 3.0  // seconds
)

// Options configure a simulation run.
type Options struct {
	// DT is the sampling interval in seconds. Must be positive and finite.
	DT float64
	// MaxIterations caps the number of steps. Zero derives a cap from the
	// path length and the slowest effective limits.
	MaxIterations int
}

// Sim steps a virtual robot through one path. Build with New, then either
// call Step until it returns false or drive the whole run with Run. A Sim is
// single-use and not safe for concurrent use; callers needing a responsive
// frontend run it on their own goroutine and cancel between steps.
type Sim struct {
	res      constraint.Resolver
	anchors  []core.TranslationAnchor
	segments []segment
	frames   []keyframe
	dt       float64
	maxIter  int

	startHeading float64
	finalHeading float64
	endTransTol  float64 // meters, resolved at the final translation ordinal
	endRotTol    float64 // radians, resolved at the final rotation ordinal

	t          float64
	pos        core.Point
	heading    float64
	omega      float64 // rad/s achieved on the previous step
	target     int     // index into anchors of the current translation target
	iterations int
	finished   bool
	outcome    core.Outcome
	samples    []core.Sample
	handoffs   []core.HandoffEvent
}

// New prepares a simulation of the document from the given start pose. The
// document is assumed to have passed validation; New only rejects inputs it
// cannot even step over.
func New(doc core.Document, start core.Pose, opts Options) (*Sim, error) {
	if !(opts.DT > 0) || math.IsInf(opts.DT, 0) {
		return nil, fmt.Errorf("sampling interval must be positive and finite, got %v", opts.DT)
	}
	anchors := doc.Path.TranslationAnchors()
	if len(anchors) == 0 {
		return nil, errors.New("path has no translation anchors")
	}

	s := &Sim{
		res:          constraint.New(doc.Constraints),
		anchors:      anchors,
		segments:     buildSegments(start.Position, anchors),
		dt:           opts.DT,
		startHeading: core.WrapAngle(start.Heading),
		pos:          start.Position,
	}
	s.heading = s.startHeading
	s.frames = buildKeyframes(doc.Path, s.segments)

	lastTranslation := float64(anchors[len(anchors)-1].Ordinal)
	s.endTransTol = s.res.Effective(core.EndTranslationTolerance, lastTranslation)
	if len(s.frames) > 0 {
		rotationCount := len(doc.Path.RotationOrdinals())
		lastRotation := float64(rotationCount - 1)
		s.endRotTol = core.DegToRad(s.res.Effective(core.EndRotationTolerance, lastRotation))
		s.finalHeading = s.frames[len(s.frames)-1].heading
	} else {
		s.finalHeading = s.startHeading
	}

	s.maxIter = opts.MaxIterations
	if s.maxIter <= 0 {
		s.maxIter = s.deriveIterationCap(doc.Constraints)
	}

	s.samples = append(s.samples, core.Sample{
		T:       0,
		X:       s.pos.X,
		Y:       s.pos.Y,
		Heading: s.heading,
	})
	return s, nil
}

// Step advances the simulation by one sampling interval and reports whether
// the run is still going. It is a no-op once the run has finished.
func (s *Sim) Step() bool {
	if s.finished {
		return false
	}
	s.iterations++
	s.t += s.dt

	// remaining straight-line distance to the current target
	remaining := s.pos.Distance(s.anchors[s.target].Position)

	// deceleration-law speed at the fractional translation ordinal
	ordinal := s.translationOrdinal(remaining)
	vMax := s.res.Effective(core.MaxVelocity, ordinal)
	aMax := s.res.Effective(core.MaxAcceleration, ordinal)
	speed := allowedSpeed(vMax, aMax, remaining)

	// advance toward the target, never past it
	moved := math.Min(speed*s.dt, remaining)
	if remaining > epsSegment && moved > 0 {
		s.pos = s.pos.Lerp(s.anchors[s.target].Position, moved/remaining)
		remaining -= moved
	} else {
		moved = 0
	}

	// hand off through every non-final anchor already within its radius
	for s.target < len(s.anchors)-1 && remaining <= s.anchors[s.target].HandoffRadius {
		from := s.anchors[s.target].Ordinal
		s.target++
		remaining = s.pos.Distance(s.anchors[s.target].Position)
		s.handoffs = append(s.handoffs, core.HandoffEvent{
			T:           s.t,
			FromOrdinal: from,
			ToOrdinal:   s.anchors[s.target].Ordinal,
			X:           s.pos.X,
			Y:           s.pos.Y,
		})
	}

	// rotation follows translation progress along the arc
	s.stepRotation(s.arcPosition(remaining))

	s.samples = append(s.samples, core.Sample{
		T:               s.t,
		X:               s.pos.X,
		Y:               s.pos.Y,
		Heading:         s.heading,
		Velocity:        moved / s.dt,
		AngularVelocity: s.omega,
	})

	if s.translationDone(remaining) && s.rotationDone() {
		s.finished = true
		s.outcome = core.Converged
		return false
	}
	if s.iterations >= s.maxIter {
		s.finished = true
		s.outcome = core.IterationCapReached
		return false
	}
	return true
}

// Run steps the simulation to completion, checking for cancellation between
// steps. On cancellation the partial result is returned along with the
// context's error.
func (s *Sim) Run(ctx context.Context) (core.RunResult, error) {
	for !s.finished {
		select {
		case <-ctx.Done():
			return s.Result(), ctx.Err()
		default:
		}
		s.Step()
	}
	return s.Result(), nil
}

// Finished reports whether the run has ended.
func (s *Sim) Finished() bool {
	return s.finished
}

// Result snapshots the run. While the run is still going the outcome is
// Incomplete and the samples are the trajectory prefix so far; the returned
// slices are copies the caller may keep.
func (s *Sim) Result() core.RunResult {
	samples := make([]core.Sample, len(s.samples))
	copy(samples, s.samples)
	handoffs := make([]core.HandoffEvent, len(s.handoffs))
	copy(handoffs, s.handoffs)
	return core.RunResult{
		Outcome:    s.outcome,
		Iterations: s.iterations,
		Duration:   s.t,
		Samples:    samples,
		Handoffs:   handoffs,
	}
}

// SamplesSince returns a copy of the samples recorded at index i and later.
// Streaming drivers use it to collect fresh samples between step chunks.
func (s *Sim) SamplesSince(i int) []core.Sample {
	if i < 0 {
		i = 0
	}
	if i >= len(s.samples) {
		return nil
	}
	out := make([]core.Sample, len(s.samples)-i)
	copy(out, s.samples[i:])
	return out
}

// HandoffsSince returns a copy of the handoff events recorded at index i and
// later.
func (s *Sim) HandoffsSince(i int) []core.HandoffEvent {
	if i < 0 {
		i = 0
	}
	if i >= len(s.handoffs) {
		return nil
	}
	out := make([]core.HandoffEvent, len(s.handoffs)-i)
	copy(out, s.handoffs[i:])
	return out
}

// IterationCap returns the effective step cap for this run, derived when the
// options left it at zero.
func (s *Sim) IterationCap() int {
	return s.maxIter
}

// Simulate runs a whole simulation in one call.
func Simulate(doc core.Document, start core.Pose, opts Options) (core.RunResult, error) {
	s, err := New(doc, start, opts)
	if err != nil {
		return core.RunResult{}, err
	}
	result, _ := s.Run(context.Background())
	return result, nil
}

// translationOrdinal is the fractional position in the translation ordinal
// space: the current target's ordinal minus how much of its segment is still
// ahead. Degenerate segments count as fully traversed.
func (s *Sim) translationOrdinal(remaining float64) float64 {
	seg := s.segments[s.target]
	u := 1.0
	if seg.length > epsSegment {
		u = (seg.length - remaining) / seg.length
		if u < 0 {
			u = 0
		} else if u > 1 {
			u = 1
		}
	}
	return float64(s.anchors[s.target].Ordinal) - 1 + u
}

// arcPosition is the robot's position on the path's arc-length axis, clamped
// to the current segment.
func (s *Sim) arcPosition(remaining float64) float64 {
	seg := s.segments[s.target]
	progress := seg.length - remaining
	if progress < 0 {
		progress = 0
	} else if progress > seg.length {
		progress = seg.length
	}
	return seg.cumStart + progress
}

// rotationOrdinal is the rotation ordinal whose limits govern the current arc
// position: the next keyframe ahead, or the one exactly here when nothing is
// ahead of it.
func (s *Sim) rotationOrdinal(arc float64) int {
	for i, kf := range s.frames {
		if kf.s >= arc-epsArc {
			if kf.s <= arc+epsArc && i+1 < len(s.frames) {
				return s.frames[i+1].ordinal
			}
			return kf.ordinal
		}
	}
	return s.frames[len(s.frames)-1].ordinal
}

func (s *Sim) stepRotation(arc float64) {
	if len(s.frames) == 0 {
		s.omega = 0
		return
	}
	desired := desiredHeading(s.startHeading, s.frames, arc)
	err := core.ShortestArc(s.heading, desired)

	ordinal := float64(s.rotationOrdinal(arc))
	omegaMax := core.DegToRad(s.res.Effective(core.MaxRotVelocity, ordinal))
	alphaMax := core.DegToRad(s.res.Effective(core.MaxRotAcceleration, ordinal))

	command := brakingOmega(err, omegaMax, alphaMax)
	s.omega = rateLimit(command, s.omega, alphaMax, s.dt)
	s.heading = core.WrapAngle(s.heading + s.omega*s.dt)
}

func (s *Sim) translationDone(remaining float64) bool {
	return s.target == len(s.anchors)-1 && remaining <= s.endTransTol
}

func (s *Sim) rotationDone() bool {
	if len(s.frames) == 0 {
		return true
	}
	return math.Abs(core.ShortestArc(s.heading, s.finalHeading)) <= s.endRotTol
}

// deriveIterationCap sizes the safety cap from how long the run could take
// under the slowest limits anywhere in the constraint set, with a generous
// margin.
func (s *Sim) deriveIterationCap(set core.ConstraintSet) int {
	length := s.segments[len(s.segments)-1].cumEnd()
	slowestV := math.Max(minGuardVelocity, minEffective(set, core.MaxVelocity))
	translationTime := length / slowestV

	arc := 0.0
	prev := s.startHeading
	for _, kf := range s.frames {
		arc += math.Abs(core.ShortestArc(prev, kf.heading))
		prev = kf.heading
	}
	slowestOmega := math.Max(minGuardOmega, core.DegToRad(minEffective(set, core.MaxRotVelocity)))
	rotationTime := arc / slowestOmega

	guard := math.Max(minGuardTime, 2.0*translationTime+1.5*rotationTime)
	return int(math.Ceil(guard / s.dt))
}

// minEffective is the smallest value the kind can resolve to anywhere: the
// global scalar or any ranged override of it.
func minEffective(set core.ConstraintSet, kind core.ConstraintKind) float64 {
	lowest := set.Global(kind)
	for _, r := range set.Ranged {
		if r.Kind == kind && r.Value < lowest {
			lowest = r.Value
		}
	}
	return lowest
}
