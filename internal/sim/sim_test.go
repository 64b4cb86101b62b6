package sim

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

const testDT = 0.02

func testConstraints() core.ConstraintSet {
	return core.ConstraintSet{
		MaxVelocityMPS:           4.5,
		MaxAccelerationMPS2:      7.0,
		MaxRotVelocityDegS:       720,
		MaxRotAccelerationDegS2:  1500,
		EndTranslationToleranceM: 0.03,
		EndRotationToleranceDeg:  2.0,
	}
}

func doc(constraints core.ConstraintSet, elements ...core.PathElement) core.Document {
	return core.Document{
		Path:        core.Path{Elements: elements},
		Constraints: constraints,
	}
}

func requireFinite(t *testing.T, result core.RunResult) {
	t.Helper()
	for i, s := range result.Samples {
		for _, v := range []float64{s.T, s.X, s.Y, s.Heading, s.Velocity, s.AngularVelocity} {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "sample %d contains a non-finite value: %+v", i, s)
		}
	}
}

func TestSim_SingleWaypointAlreadyAtTarget(t *testing.T) {
	d := doc(testConstraints(),
		core.Waypoint{Position: core.Point{X: 1, Y: 2}, HandoffRadius: 0.2, Heading: 0.5, ProfiledRotation: true},
	)
	start := core.Pose{Position: core.Point{X: 1, Y: 2}, Heading: 0.5}

	result, err := Simulate(d, start, Options{DT: testDT})
	require.NoError(t, err)

	assert.Equal(t, core.Converged, result.Outcome)
	assert.Equal(t, 1, result.Iterations)
	require.Len(t, result.Samples, 2) // start state plus one step
	requireFinite(t, result)
}

func TestSim_PureRotationBetweenCoincidentWaypoints(t *testing.T) {
	target := math.Pi / 2
	d := doc(testConstraints(),
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2, Heading: 0, ProfiledRotation: true},
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2, Heading: target, ProfiledRotation: true},
	)
	start := core.Pose{Position: core.Point{X: 0, Y: 0}, Heading: 0}

	result, err := Simulate(d, start, Options{DT: testDT})
	require.NoError(t, err)
	require.Equal(t, core.Converged, result.Outcome)
	requireFinite(t, result)

	prev := math.Inf(1)
	for _, s := range result.Samples {
		assert.Zero(t, s.Velocity, "translation must not move")
		remaining := math.Abs(core.ShortestArc(s.Heading, target))
		assert.LessOrEqual(t, remaining, prev+1e-9, "rotation must progress monotonically")
		prev = remaining
	}

	final, ok := result.Final()
	require.True(t, ok)
	tol := core.DegToRad(testConstraints().EndRotationToleranceDeg)
	assert.LessOrEqual(t, math.Abs(core.ShortestArc(final.Heading, target)), tol)
}

func TestSim_Deterministic(t *testing.T) {
	d := doc(testConstraints(),
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.25, Heading: 0, ProfiledRotation: true},
		core.RotationTarget{Heading: 1.2, TRatio: 0.4, ProfiledRotation: true},
		core.TranslationTarget{Position: core.Point{X: 3, Y: 1}, HandoffRadius: 0.3},
		core.Waypoint{Position: core.Point{X: 5, Y: 4}, HandoffRadius: 0.2, Heading: -1.0, ProfiledRotation: false},
	)
	start := core.Pose{Position: core.Point{X: -0.5, Y: 0.25}, Heading: 0.1}

	first, err := Simulate(d, start, Options{DT: testDT})
	require.NoError(t, err)
	second, err := Simulate(d, start, Options{DT: testDT})
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs must produce bit-identical trajectories")
}

func TestSim_HandoffAtExactRadiusBoundary(t *testing.T) {
	set := testConstraints()
	set.MaxVelocityMPS = 50
	set.MaxAccelerationMPS2 = 10000
	d := doc(set,
		core.TranslationTarget{Position: core.Point{X: 2, Y: 0}, HandoffRadius: 1.0},
		core.TranslationTarget{Position: core.Point{X: 10, Y: 0}, HandoffRadius: 0.5},
	)
	start := core.Pose{Position: core.Point{X: 0, Y: 0}}

	s, err := New(d, start, Options{DT: testDT})
	require.NoError(t, err)

	// one step covers exactly 1.0 m, leaving remaining == handoff radius
	s.Step()
	result := s.Result()
	require.Len(t, result.Handoffs, 1, "inclusive boundary must hand off on the same step")
	assert.Equal(t, 0, result.Handoffs[0].FromOrdinal)
	assert.Equal(t, 1, result.Handoffs[0].ToOrdinal)
	assert.Equal(t, testDT, result.Handoffs[0].T)
}

func TestSim_ExampleScenario(t *testing.T) {
	set := testConstraints()
	set.MaxVelocityMPS = 2
	set.MaxAccelerationMPS2 = 2
	d := doc(set,
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.25, Heading: 0, ProfiledRotation: true},
		core.TranslationTarget{Position: core.Point{X: 3, Y: 0}, HandoffRadius: 0.25},
		core.Waypoint{Position: core.Point{X: 3, Y: 4}, HandoffRadius: 0.25, Heading: math.Pi / 2, ProfiledRotation: true},
	)
	start := core.Pose{Position: core.Point{X: 0, Y: 0}, Heading: 0}

	result, err := Simulate(d, start, Options{DT: testDT})
	require.NoError(t, err)
	require.Equal(t, core.Converged, result.Outcome)
	requireFinite(t, result)

	peak := 0.0
	for _, s := range result.Samples {
		require.LessOrEqual(t, s.Velocity, 2.0+1e-9, "velocity cap")
		if s.Velocity > peak {
			peak = s.Velocity
		}
	}
	assert.InDelta(t, 2.0, peak, 1e-9, "cruise speed must reach the cap")

	// the mid-path handoff happens within the handoff radius of (3,0)
	var midHandoff *core.HandoffEvent
	for i := range result.Handoffs {
		if result.Handoffs[i].ToOrdinal == 2 {
			midHandoff = &result.Handoffs[i]
		}
	}
	require.NotNil(t, midHandoff)
	handoffPos := core.Point{X: midHandoff.X, Y: midHandoff.Y}
	assert.LessOrEqual(t, handoffPos.Distance(core.Point{X: 3, Y: 0}), 0.25+1e-9)

	final, ok := result.Final()
	require.True(t, ok)
	assert.LessOrEqual(t, final.Position().Distance(core.Point{X: 3, Y: 4}), set.EndTranslationToleranceM)
	assert.LessOrEqual(t,
		math.Abs(core.ShortestArc(final.Heading, math.Pi/2)),
		core.DegToRad(set.EndRotationToleranceDeg))

	// heading stays within the swept arc, allowing one step of tracking lag
	lag := core.DegToRad(set.MaxRotAccelerationDegS2) * testDT * testDT
	for _, s := range result.Samples {
		assert.GreaterOrEqual(t, s.Heading, -lag)
		assert.LessOrEqual(t, s.Heading, math.Pi/2+lag)
	}
}

func TestSim_ProfiledVersusSnapRotation(t *testing.T) {
	headingNear := func(result core.RunResult, x float64) float64 {
		best, bestDist := 0.0, math.Inf(1)
		for _, s := range result.Samples {
			if d := math.Abs(s.X - x); d < bestDist {
				best, bestDist = s.Heading, d
			}
		}
		return best
	}

	build := func(profiled bool) core.Document {
		return doc(testConstraints(),
			core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.1, Heading: 0, ProfiledRotation: true},
			core.RotationTarget{Heading: math.Pi / 2, TRatio: 0.5, ProfiledRotation: profiled},
			core.Waypoint{Position: core.Point{X: 4, Y: 0}, HandoffRadius: 0.1, Heading: math.Pi / 2, ProfiledRotation: true},
		)
	}
	start := core.Pose{Position: core.Point{X: 0, Y: 0}, Heading: 0}

	snapped, err := Simulate(build(false), start, Options{DT: testDT})
	require.NoError(t, err)
	require.Equal(t, core.Converged, snapped.Outcome)

	profiled, err := Simulate(build(true), start, Options{DT: testDT})
	require.NoError(t, err)
	require.Equal(t, core.Converged, profiled.Outcome)

	// the rotation target sits half way along the segment, at x=2. A snap
	// target is already fully turned there; a profiled one is mid-turn.
	assert.Greater(t, headingNear(snapped, 1.0), 1.2)
	assert.InDelta(t, math.Pi/4, headingNear(profiled, 1.0), 0.25)
}

func TestSim_RangedVelocityGovernsApproachedAnchor(t *testing.T) {
	set := testConstraints()
	set.MaxVelocityMPS = 2
	set.Ranged = []core.RangedConstraint{
		{Kind: core.MaxVelocity, Value: 0.5, StartOrdinal: 1, EndOrdinal: 1},
	}
	d := doc(set,
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.1, Heading: 0, ProfiledRotation: true},
		core.TranslationTarget{Position: core.Point{X: 2, Y: 0}, HandoffRadius: 0.1},
		core.Waypoint{Position: core.Point{X: 6, Y: 0}, HandoffRadius: 0.1, Heading: 0, ProfiledRotation: true},
	)
	start := core.Pose{Position: core.Point{X: 0, Y: 0}, Heading: 0}

	result, err := Simulate(d, start, Options{DT: testDT})
	require.NoError(t, err)
	require.Equal(t, core.Converged, result.Outcome)

	slowPeak, fastPeak := 0.0, 0.0
	for _, s := range result.Samples {
		switch {
		case s.X > 0.1 && s.X < 1.8:
			slowPeak = math.Max(slowPeak, s.Velocity)
		case s.X > 2.5 && s.X < 5.0:
			fastPeak = math.Max(fastPeak, s.Velocity)
		}
	}
	assert.LessOrEqual(t, slowPeak, 0.5+1e-9, "override governs while approaching ordinal 1")
	assert.Greater(t, fastPeak, 1.0, "global limit resumes past the override")
}

func TestSim_IterationCapReturnsPartialTrajectory(t *testing.T) {
	d := doc(testConstraints(),
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2, Heading: 0, ProfiledRotation: true},
		core.Waypoint{Position: core.Point{X: 100, Y: 0}, HandoffRadius: 0.2, Heading: 0, ProfiledRotation: true},
	)
	start := core.Pose{Position: core.Point{X: 0, Y: 0}, Heading: 0}

	result, err := Simulate(d, start, Options{DT: testDT, MaxIterations: 5})
	require.NoError(t, err)

	assert.Equal(t, core.IterationCapReached, result.Outcome)
	assert.Equal(t, 5, result.Iterations)
	assert.Len(t, result.Samples, 6)
	requireFinite(t, result)
}

func TestSim_RunHonorsCancellation(t *testing.T) {
	d := doc(testConstraints(),
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2, Heading: 0, ProfiledRotation: true},
		core.Waypoint{Position: core.Point{X: 50, Y: 0}, HandoffRadius: 0.2, Heading: 0, ProfiledRotation: true},
	)
	s, err := New(d, core.Pose{}, Options{DT: testDT})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, core.Incomplete, result.Outcome)
	assert.False(t, s.Finished())
	assert.NotEmpty(t, result.Samples)
}

func TestSim_CoincidentAnchorsChainHandoffs(t *testing.T) {
	d := doc(testConstraints(),
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.3, Heading: 0, ProfiledRotation: true},
		core.TranslationTarget{Position: core.Point{X: 2, Y: 0}, HandoffRadius: 0.3},
		core.TranslationTarget{Position: core.Point{X: 2, Y: 0}, HandoffRadius: 0.3},
		core.Waypoint{Position: core.Point{X: 4, Y: 0}, HandoffRadius: 0.3, Heading: 0, ProfiledRotation: true},
	)
	start := core.Pose{Position: core.Point{X: 0, Y: 0}, Heading: 0}

	result, err := Simulate(d, start, Options{DT: testDT})
	require.NoError(t, err)
	require.Equal(t, core.Converged, result.Outcome)
	requireFinite(t, result)

	// ordinals 1 and 2 share a position, so one step hands off through both
	var times []float64
	for _, h := range result.Handoffs {
		if h.FromOrdinal == 1 || h.FromOrdinal == 2 {
			times = append(times, h.T)
		}
	}
	require.Len(t, times, 2)
	assert.Equal(t, times[0], times[1])
}

func TestSim_DerivedIterationCapScalesWithPath(t *testing.T) {
	short := doc(testConstraints(),
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2, Heading: 0, ProfiledRotation: true},
	)
	long := doc(testConstraints(),
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2, Heading: 0, ProfiledRotation: true},
		core.Waypoint{Position: core.Point{X: 500, Y: 0}, HandoffRadius: 0.2, Heading: 0, ProfiledRotation: true},
	)

	shortSim, err := New(short, core.Pose{}, Options{DT: testDT})
	require.NoError(t, err)
	longSim, err := New(long, core.Pose{}, Options{DT: testDT})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, shortSim.maxIter, int(minGuardTime/testDT))
	assert.Greater(t, longSim.maxIter, shortSim.maxIter)
}

func TestNew_RejectsBadInterval(t *testing.T) {
	d := doc(testConstraints(),
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2},
	)

	_, err := New(d, core.Pose{}, Options{DT: 0})
	require.Error(t, err)
	_, err = New(d, core.Pose{}, Options{DT: math.NaN()})
	require.Error(t, err)
	_, err = New(d, core.Pose{}, Options{DT: math.Inf(1)})
	require.Error(t, err)
}

func TestNew_RejectsPathWithoutAnchors(t *testing.T) {
	d := doc(testConstraints())

	_, err := New(d, core.Pose{}, Options{DT: testDT})
	require.Error(t, err)
}
