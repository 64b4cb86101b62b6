package core

import "fmt"

// Sample is one time-stepped trajectory state.
type Sample struct {
	T               float64 `json:"t_seconds"`
	X               float64 `json:"x_meters"`
	Y               float64 `json:"y_meters"`
	Heading         float64 `json:"heading_radians"`
	Velocity        float64 `json:"velocity_meters_per_sec"`
	AngularVelocity float64 `json:"angular_velocity_radians_per_sec"`
}

// Position returns the sample position as a point.
func (s Sample) Position() Point {
	return Point{X: s.X, Y: s.Y}
}

// Pose returns the sample position and heading.
func (s Sample) Pose() Pose {
	return Pose{Position: s.Position(), Heading: s.Heading}
}

// HandoffEvent records the simulated robot advancing from one translation
// anchor to the next before exact arrival.
type HandoffEvent struct {
	T           float64 `json:"t_seconds"`
	FromOrdinal int     `json:"from_ordinal"`
	ToOrdinal   int     `json:"to_ordinal"`
	X           float64 `json:"x_meters"`
	Y           float64 `json:"y_meters"`
}

// Outcome classifies how a simulation run ended.
type Outcome int

const (
	// Incomplete means the run was observed or abandoned before it finished.
	Incomplete Outcome = iota
	// Converged means both end tolerances were satisfied at the final anchor.
	Converged
	// IterationCapReached means the safety cap expired first; the trajectory
	// up to the cap is still valid and returned.
	IterationCapReached
)

func (o Outcome) String() string {
	switch o {
	case Incomplete:
		return "incomplete"
	case Converged:
		return "converged"
	case IterationCapReached:
		return "iteration_cap_reached"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler so outcomes serialize as
// their names.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "incomplete":
		*o = Incomplete
	case "converged":
		*o = Converged
	case "iteration_cap_reached":
		*o = IterationCapReached
	default:
		return fmt.Errorf("unknown outcome %q", string(text))
	}
	return nil
}

// RunResult is the complete output of one simulation run.
type RunResult struct {
	Outcome    Outcome        `json:"outcome"`
	Iterations int            `json:"iterations"`
	Duration   float64        `json:"duration_seconds"`
	Samples    []Sample       `json:"samples"`
	Handoffs   []HandoffEvent `json:"handoff_events"`
}

// Converged reports whether the run satisfied both end tolerances.
func (r RunResult) Converged() bool {
	return r.Outcome == Converged
}

// Final returns the last sample. ok is false for an empty trajectory.
func (r RunResult) Final() (Sample, bool) {
	if len(r.Samples) == 0 {
		return Sample{}, false
	}
	return r.Samples[len(r.Samples)-1], true
}
