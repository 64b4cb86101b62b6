package v1

import (
	"time"

	"github.com/edanliahovetsky/bline-engine/internal/geo"
	"github.com/edanliahovetsky/bline-engine/internal/project"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// RunData contains all the data needed to build an export
type RunData struct {
	Info   run.Info
	Result core.RunResult
}

// Build creates an Export from the run data. The sample rows are compact
// arrays rather than keyed objects; the viewer indexes them positionally,
// which keeps large trajectories small on disk.
//
// Sample row format:  [t, [x, y], heading, velocity, angularVelocity]
// Handoff row format: [t, [x, y], fromOrdinal, toOrdinal]
func Build(data *RunData) Export {
	export := Export{
		EngineVersion: data.Info.EngineVersion,
		RunID:         data.Info.ID,
		DocumentName:  data.Info.DocumentName,
		StartedAt:     data.Info.StartedAt.UTC().Format(time.RFC3339),
		TimeStep:      data.Info.TimeStep,
		MaxIterations: data.Info.MaxIterations,
		RobotLength:   data.Info.RobotLength,
		RobotWidth:    data.Info.RobotWidth,
		StartPose: []float64{
			data.Info.StartPose.Position.X,
			data.Info.StartPose.Position.Y,
			data.Info.StartPose.Heading,
		},
		PlannedPath:       make([][]float64, 0, len(data.Info.PlannedPath)),
		Outcome:           data.Result.Outcome.String(),
		Iterations:        data.Result.Iterations,
		DurationSeconds:   data.Result.Duration,
		TrailLengthMeters: geo.TrailLength(data.Result.Samples),
		TrailWKT:          geo.TrailWKT(data.Result.Samples),
		Samples:           make([][]any, 0, len(data.Result.Samples)),
		Handoffs:          make([][]any, 0, len(data.Result.Handoffs)),
	}

	if raw, err := project.EncodeConstraints(data.Info.Constraints); err == nil {
		export.Constraints = raw
	}

	for _, p := range data.Info.PlannedPath {
		export.PlannedPath = append(export.PlannedPath, []float64{p.X, p.Y})
	}

	for _, s := range data.Result.Samples {
		row := []any{
			s.T,
			[]float64{s.X, s.Y},
			s.Heading,
			s.Velocity,
			s.AngularVelocity,
		}
		export.Samples = append(export.Samples, row)
	}

	for _, h := range data.Result.Handoffs {
		row := []any{
			h.T,
			[]float64{h.X, h.Y},
			h.FromOrdinal,
			h.ToOrdinal,
		}
		export.Handoffs = append(export.Handoffs, row)
	}

	if n := len(data.Result.Samples); n > 0 {
		export.EndTick = n - 1
	}

	return export
}
