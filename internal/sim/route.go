// Package sim time-steps a virtual holonomic robot through a validated path,
// producing a deterministic trajectory. Translation is a state machine over
// the translation anchors with handoff-radius transitions; rotation follows
// the rotation anchors as a function of translation progress. Inputs are
// treated as immutable snapshots and no state survives a run.
package sim

import (
	"sort"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

const (
	// epsSegment is the length below which a translation segment is treated
	// as degenerate (both endpoints at the same position).
	epsSegment = 1e-9
	// epsArc is the tolerance for comparing arc-length positions when
	// matching rotation keyframes.
	epsArc = 1e-6
)

// segment is the straight line the robot traverses while approaching one
// translation anchor. Segment i targets anchor i; segment 0 runs from the
// external start pose to the first anchor.
type segment struct {
	from     core.Point
	to       core.Point
	length   float64
	cumStart float64 // arc length at the segment's start
}

func (s segment) cumEnd() float64 {
	return s.cumStart + s.length
}

func buildSegments(start core.Point, anchors []core.TranslationAnchor) []segment {
	segments := make([]segment, len(anchors))
	from := start
	cum := 0.0
	for i, a := range anchors {
		length := from.Distance(a.Position)
		segments[i] = segment{from: from, to: a.Position, length: length, cumStart: cum}
		cum += length
		from = a.Position
	}
	return segments
}

// keyframe places one rotation anchor on the path's arc-length axis. A
// waypoint sits at its own anchor's arc position; a rotation target sits at
// t_ratio of the way between the arc positions of its framing anchors.
type keyframe struct {
	s        float64
	heading  float64
	profiled bool
	ordinal  int // rotation ordinal, in path order
}

func buildKeyframes(p core.Path, segments []segment) []keyframe {
	translation := p.TranslationAnchors()
	rotation := p.RotationAnchors()
	if len(rotation) == 0 {
		return nil
	}

	// element index -> translation ordinal, for locating framing anchors
	ordinalOf := make(map[int]int, len(translation))
	for _, a := range translation {
		ordinalOf[a.ElementIndex] = a.Ordinal
	}

	frames := make([]keyframe, 0, len(rotation))
	for _, r := range rotation {
		kf := keyframe{heading: r.Heading, profiled: r.Profiled, ordinal: r.Ordinal}
		if r.IsWaypoint {
			kf.s = segments[ordinalOf[r.ElementIndex]].cumEnd()
		} else {
			before, after := framingAnchors(translation, r.ElementIndex)
			sBefore := segments[before].cumEnd()
			sAfter := segments[after].cumEnd()
			kf.s = sBefore + r.TRatio*(sAfter-sBefore)
		}
		frames = append(frames, kf)
	}

	// arc order decides playback order; path order breaks ties
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].s < frames[j].s })

	// coincident keyframes collapse to the last one
	deduped := frames[:0]
	for _, kf := range frames {
		if len(deduped) > 0 && kf.s-deduped[len(deduped)-1].s < epsSegment {
			deduped[len(deduped)-1] = kf
			continue
		}
		deduped = append(deduped, kf)
	}
	return deduped
}

// framingAnchors returns the translation ordinals of the nearest
// translation-bearing elements before and after element index i. Validation
// guarantees both exist for every rotation target.
func framingAnchors(translation []core.TranslationAnchor, i int) (before, after int) {
	before, after = -1, -1
	for _, a := range translation {
		if a.ElementIndex < i {
			before = a.Ordinal
		} else if after == -1 {
			after = a.Ordinal
		}
	}
	return before, after
}
