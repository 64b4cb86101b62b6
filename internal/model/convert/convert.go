// Package convert provides functions to convert between GORM models and core models
package convert

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/edanliahovetsky/bline-engine/internal/model"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// pointToCore converts a geom.Point to a core.Point
func pointToCore(p geom.Point) core.Point {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Point{}
	}
	return core.Point{X: coord.XY.X, Y: coord.XY.Y}
}

// lineStringToPoints converts a geom.LineString to core points
func lineStringToPoints(ls geom.LineString) []core.Point {
	seq := ls.Coordinates()
	if seq.Length() == 0 {
		return nil
	}
	points := make([]core.Point, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		pt := seq.GetXY(i)
		points[i] = core.Point{X: pt.X, Y: pt.Y}
	}
	return points
}

// SampleToCore converts a GORM TrajectorySample to a core.Sample.
func SampleToCore(s model.TrajectorySample) core.Sample {
	pos := pointToCore(s.Position)
	return core.Sample{
		T:               s.T,
		X:               pos.X,
		Y:               pos.Y,
		Heading:         s.Heading,
		Velocity:        s.Velocity,
		AngularVelocity: s.AngularVelocity,
	}
}

// HandoffToCore converts a GORM HandoffEvent to a core.HandoffEvent.
func HandoffToCore(h model.HandoffEvent) core.HandoffEvent {
	pos := pointToCore(h.Position)
	return core.HandoffEvent{
		T:           h.T,
		FromOrdinal: int(h.FromOrdinal),
		ToOrdinal:   int(h.ToOrdinal),
		X:           pos.X,
		Y:           pos.Y,
	}
}

// RunToResult rebuilds a core.RunResult from a Run row and its associated
// samples and handoffs. Unknown outcome strings map to Incomplete.
func RunToResult(r model.Run) core.RunResult {
	var outcome core.Outcome
	_ = outcome.UnmarshalText([]byte(r.Outcome))

	result := core.RunResult{
		Outcome:    outcome,
		Iterations: int(r.Iterations),
		Duration:   r.DurationSeconds,
	}

	if len(r.Samples) > 0 {
		result.Samples = make([]core.Sample, len(r.Samples))
		for i, s := range r.Samples {
			result.Samples[i] = SampleToCore(s)
		}
	}
	if len(r.Handoffs) > 0 {
		result.Handoffs = make([]core.HandoffEvent, len(r.Handoffs))
		for i, h := range r.Handoffs {
			result.Handoffs[i] = HandoffToCore(h)
		}
	}

	return result
}

// RunStartPose returns the pose a Run row started from.
func RunStartPose(r model.Run) core.Pose {
	return core.Pose{
		Position: pointToCore(r.StartPosition),
		Heading:  r.StartHeading,
	}
}

// PlannedPathPoints returns the planned route vertices stored on a Run row.
func PlannedPathPoints(r model.Run) []core.Point {
	return lineStringToPoints(r.PlannedPath)
}
