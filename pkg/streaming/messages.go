// Package streaming defines the wire protocol shared by the WebSocket
// storage backend and any server consuming live trajectory runs.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeRunStart = "run_start"
	TypeRunEnd   = "run_end"
	TypeSamples  = "samples"
	TypeHandoff  = "handoff"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// RunStartPayload carries the metadata fixed when a run begins. Constraints
// hold the resolved constraint set in the document wire shape.
type RunStartPayload struct {
	RunID         string          `json:"runId"`
	DocumentName  string          `json:"documentName"`
	EngineVersion string          `json:"engineVersion"`
	StartedAt     time.Time       `json:"startedAt"`
	StartPose     core.Pose       `json:"startPose"`
	TimeStep      float64         `json:"time_step_seconds"`
	MaxIterations int             `json:"max_iterations"`
	RobotLength   float64         `json:"robot_length_meters"`
	RobotWidth    float64         `json:"robot_width_meters"`
	Constraints   json.RawMessage `json:"constraints,omitempty"`
	PlannedPath   []core.Point    `json:"plannedPath,omitempty"`
}

// SamplesPayload carries a batch of trajectory samples. Batching keeps the
// message rate far below the simulation step rate.
type SamplesPayload struct {
	RunID   string        `json:"runId"`
	Samples []core.Sample `json:"samples"`
}

// HandoffPayload carries one anchor handoff event.
type HandoffPayload struct {
	RunID   string            `json:"runId"`
	Handoff core.HandoffEvent `json:"handoff"`
}

// RunEndPayload carries the final state of a completed run. Samples and
// Handoffs were already streamed, so the result summary travels alone.
type RunEndPayload struct {
	RunID           string  `json:"runId"`
	Outcome         string  `json:"outcome"`
	Iterations      int     `json:"iterations"`
	DurationSeconds float64 `json:"duration_seconds"`
	SampleCount     int     `json:"sample_count"`
	HandoffCount    int     `json:"handoff_count"`
}
