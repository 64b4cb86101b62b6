package convert

import (
	"crypto/sha256"
	"encoding/hex"

	"gorm.io/datatypes"

	"github.com/edanliahovetsky/bline-engine/internal/geo"
	"github.com/edanliahovetsky/bline-engine/internal/model"
	"github.com/edanliahovetsky/bline-engine/internal/project"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// constraintsToJSON snapshots a resolved constraint set for DB storage.
func constraintsToJSON(set core.ConstraintSet) datatypes.JSON {
	data, err := project.EncodeConstraints(set)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToDocument converts an accepted document into a GORM model.Document,
// hashing the content for deduplication.
func CoreToDocument(name string, content []byte) model.Document {
	sum := sha256.Sum256(content)
	doc := model.Document{
		Name: name,
		Hash: hex.EncodeToString(sum[:]),
	}
	if len(content) > 0 {
		doc.Content = datatypes.JSON(content)
	} else {
		doc.Content = datatypes.JSON("{}")
	}
	return doc
}

// CoreToRun converts run metadata into a GORM model.Run. The run starts in
// the incomplete outcome; ApplyResult fills in the rest when it finishes.
func CoreToRun(info run.Info) model.Run {
	r := model.Run{
		RunID:         info.ID,
		StartTime:     info.StartedAt,
		EngineVersion: info.EngineVersion,
		TimeStep:      info.TimeStep,
		MaxIterations: uint(info.MaxIterations),
		RobotLength:   info.RobotLength,
		RobotWidth:    info.RobotWidth,
		StartPosition: geo.GeomPoint(info.StartPose.Position),
		StartHeading:  info.StartPose.Heading,
		Constraints:   constraintsToJSON(info.Constraints),
		Outcome:       core.Incomplete.String(),
	}
	if planned, err := geo.PlannedLine(info.PlannedPath); err == nil {
		r.PlannedPath = planned
	}
	return r
}

// CoreToSample converts a core.Sample to a GORM model.TrajectorySample.
func CoreToSample(runID string, tick uint, s core.Sample) model.TrajectorySample {
	return model.TrajectorySample{
		RunID:           runID,
		Tick:            tick,
		T:               s.T,
		Position:        geo.GeomPoint(s.Position()),
		Heading:         s.Heading,
		Velocity:        s.Velocity,
		AngularVelocity: s.AngularVelocity,
	}
}

// CoreToHandoff converts a core.HandoffEvent to a GORM model.HandoffEvent.
func CoreToHandoff(runID string, h core.HandoffEvent) model.HandoffEvent {
	return model.HandoffEvent{
		RunID:       runID,
		T:           h.T,
		FromOrdinal: uint(h.FromOrdinal),
		ToOrdinal:   uint(h.ToOrdinal),
		Position:    geo.GeomPoint(core.Point{X: h.X, Y: h.Y}),
	}
}

// ApplyResult writes a finished run's outcome onto its Run row, including
// the simulated trail. A degenerate trail leaves the column empty.
func ApplyResult(r *model.Run, result core.RunResult) {
	r.Outcome = result.Outcome.String()
	r.Iterations = uint(result.Iterations)
	r.DurationSeconds = result.Duration

	if trail, err := geo.Trail(result.Samples); err == nil {
		r.Trail = trail
	}
}
