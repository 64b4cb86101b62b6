// Package storage defines the run recorder interface and its backends.
package storage

import (
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
// Implementations receive one run at a time: StartRun, then any number of
// RecordSamples/RecordHandoff calls in simulation order, then EndRun.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(info run.Info) error
	EndRun(result core.RunResult) error

	// Trajectory recording
	RecordSamples(samples []core.Sample) error
	RecordHandoff(h core.HandoffEvent) error
}

// UploadMetadata describes an exported run for the viewer upload endpoint.
// PlannedPolyline is the planned route in the polyline wire form, so the
// viewer can draw a route preview without opening the export.
type UploadMetadata struct {
	DocumentName    string
	RunID           string
	Outcome         string
	DurationSeconds float64
	PlannedPolyline string
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the trajectory viewer.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() UploadMetadata
}
