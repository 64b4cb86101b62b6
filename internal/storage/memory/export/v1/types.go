// Package v1 contains the v1 export format for trajectory run data.
// This format is what the bline viewer frontend consumes.
package v1

import "encoding/json"

// Export is the root JSON structure for v1 format
type Export struct {
	EngineVersion     string          `json:"engineVersion"`
	RunID             string          `json:"runId"`
	DocumentName      string          `json:"documentName"`
	StartedAt         string          `json:"startedAt"`
	TimeStep          float64         `json:"time_step_seconds"`
	MaxIterations     int             `json:"max_iterations"`
	RobotLength       float64         `json:"robot_length_meters"`
	RobotWidth        float64         `json:"robot_width_meters"`
	StartPose         []float64       `json:"startPose"`
	Constraints       json.RawMessage `json:"constraints,omitempty"`
	PlannedPath       [][]float64     `json:"plannedPath"`
	Outcome           string          `json:"outcome"`
	Iterations        int             `json:"iterations"`
	DurationSeconds   float64         `json:"duration_seconds"`
	EndTick           int             `json:"endTick"`
	TrailLengthMeters float64         `json:"trail_length_meters"`
	TrailWKT          string          `json:"trail_wkt,omitempty"`
	Samples           [][]any         `json:"samples"`
	Handoffs          [][]any         `json:"handoffs"`
}
