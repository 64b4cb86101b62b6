package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

func TestBuildSegments_IncludesApproachFromStart(t *testing.T) {
	p := core.Path{Elements: []core.PathElement{
		core.TranslationTarget{Position: core.Point{X: 3, Y: 4}, HandoffRadius: 0.2},
		core.TranslationTarget{Position: core.Point{X: 3, Y: 10}, HandoffRadius: 0.2},
	}}

	segments := buildSegments(core.Point{X: 0, Y: 0}, p.TranslationAnchors())
	require.Len(t, segments, 2)

	assert.Equal(t, 5.0, segments[0].length)
	assert.Equal(t, 0.0, segments[0].cumStart)
	assert.Equal(t, 6.0, segments[1].length)
	assert.Equal(t, 5.0, segments[1].cumStart)
	assert.Equal(t, 11.0, segments[1].cumEnd())
}

func TestBuildKeyframes_RotationTargetPlacedByTRatio(t *testing.T) {
	p := core.Path{Elements: []core.PathElement{
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2, Heading: 0},
		core.RotationTarget{Heading: 1.0, TRatio: 0.25, ProfiledRotation: true},
		core.Waypoint{Position: core.Point{X: 8, Y: 0}, HandoffRadius: 0.2, Heading: 2.0},
	}}

	segments := buildSegments(core.Point{X: 0, Y: 0}, p.TranslationAnchors())
	frames := buildKeyframes(p, segments)
	require.Len(t, frames, 3)

	assert.Equal(t, 0.0, frames[0].s)
	assert.Equal(t, 0, frames[0].ordinal)
	// a quarter of the way between the framing anchors' arc positions
	assert.InDelta(t, 2.0, frames[1].s, 1e-12)
	assert.Equal(t, 1, frames[1].ordinal)
	assert.Equal(t, 8.0, frames[2].s)
	assert.Equal(t, 2, frames[2].ordinal)
}

func TestBuildKeyframes_RotationTargetsShareFramingAnchors(t *testing.T) {
	p := core.Path{Elements: []core.PathElement{
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2, Heading: 0},
		core.RotationTarget{Heading: 0.5, TRatio: 0.75, ProfiledRotation: true},
		core.RotationTarget{Heading: 1.5, TRatio: 0.25, ProfiledRotation: true},
		core.Waypoint{Position: core.Point{X: 4, Y: 0}, HandoffRadius: 0.2, Heading: 2.0},
	}}

	segments := buildSegments(core.Point{X: 0, Y: 0}, p.TranslationAnchors())
	frames := buildKeyframes(p, segments)
	require.Len(t, frames, 4)

	// arc order, not declaration order: the second target sits earlier
	assert.Equal(t, 2, frames[1].ordinal)
	assert.InDelta(t, 1.0, frames[1].s, 1e-12)
	assert.Equal(t, 1, frames[2].ordinal)
	assert.InDelta(t, 3.0, frames[2].s, 1e-12)
}

func TestBuildKeyframes_CoincidentKeyframesKeepLast(t *testing.T) {
	p := core.Path{Elements: []core.PathElement{
		core.Waypoint{Position: core.Point{X: 0, Y: 0}, HandoffRadius: 0.2, Heading: 0},
		core.RotationTarget{Heading: 1.0, TRatio: 1.0, ProfiledRotation: true},
		core.Waypoint{Position: core.Point{X: 5, Y: 0}, HandoffRadius: 0.2, Heading: 2.0},
	}}

	segments := buildSegments(core.Point{X: 0, Y: 0}, p.TranslationAnchors())
	frames := buildKeyframes(p, segments)

	// the rotation target lands exactly on the far waypoint; the waypoint,
	// declared later in path order, wins
	require.Len(t, frames, 2)
	assert.Equal(t, 5.0, frames[1].s)
	assert.Equal(t, 2.0, frames[1].heading)
	assert.Equal(t, 2, frames[1].ordinal)
}

func TestBuildKeyframes_NoRotationAnchors(t *testing.T) {
	p := core.Path{Elements: []core.PathElement{
		core.TranslationTarget{Position: core.Point{X: 1, Y: 0}, HandoffRadius: 0.2},
		core.TranslationTarget{Position: core.Point{X: 2, Y: 0}, HandoffRadius: 0.2},
	}}

	segments := buildSegments(core.Point{X: 0, Y: 0}, p.TranslationAnchors())
	assert.Empty(t, buildKeyframes(p, segments))
}

func TestFramingAnchors_SkipsInterveningRotations(t *testing.T) {
	p := core.Path{Elements: []core.PathElement{
		core.Waypoint{Position: core.Point{}, HandoffRadius: 0.2},
		core.RotationTarget{TRatio: 0.2},
		core.RotationTarget{TRatio: 0.8},
		core.TranslationTarget{Position: core.Point{X: 1, Y: 1}, HandoffRadius: 0.2},
	}}
	translation := p.TranslationAnchors()

	before, after := framingAnchors(translation, 2)
	assert.Equal(t, 0, before)
	assert.Equal(t, 1, after)

	before, after = framingAnchors(translation, 1)
	assert.Equal(t, 0, before)
	assert.Equal(t, 1, after)
}

func TestSegmentMath_NoInfiniteOrNaNLengths(t *testing.T) {
	p := core.Path{Elements: []core.PathElement{
		core.TranslationTarget{Position: core.Point{X: 2, Y: 0}, HandoffRadius: 0.2},
		core.TranslationTarget{Position: core.Point{X: 2, Y: 0}, HandoffRadius: 0.2},
	}}

	segments := buildSegments(core.Point{X: 2, Y: 0}, p.TranslationAnchors())
	for _, seg := range segments {
		assert.False(t, math.IsNaN(seg.length))
		assert.Zero(t, seg.length)
	}
}
