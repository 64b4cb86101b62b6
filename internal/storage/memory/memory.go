// Package memory implements the storage.Backend interface by collecting the
// run in memory and exporting it to a JSON file when the run ends.
package memory

import (
	"fmt"
	"sync"

	"github.com/edanliahovetsky/bline-engine/internal/config"
	"github.com/edanliahovetsky/bline-engine/internal/geo"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/internal/storage"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Backend stores run data in memory and exports to JSON
type Backend struct {
	cfg config.MemoryConfig

	info   run.Info
	active bool

	samples  []core.Sample
	handoffs []core.HandoffEvent
	result   core.RunResult
	ended    bool

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		samples:  make([]core.Sample, 0),
		handoffs: make([]core.HandoffEvent, 0),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run, resetting any prior collections.
func (b *Backend) StartRun(info run.Info) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.info = info
	b.active = true
	b.ended = false

	b.samples = make([]core.Sample, 0)
	b.handoffs = make([]core.HandoffEvent, 0)
	b.result = core.RunResult{}
	b.lastExportPath = ""

	return nil
}

// EndRun stores the final result and exports the run to disk. The samples
// and handoffs recorded incrementally are authoritative; the result's own
// slices are only used when nothing was streamed.
func (b *Backend) EndRun(result core.RunResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.active {
		return fmt.Errorf("no active run to end")
	}

	if len(b.samples) > 0 {
		result.Samples = b.samples
	}
	if len(b.handoffs) > 0 {
		result.Handoffs = b.handoffs
	}
	b.result = result
	b.ended = true

	return b.exportJSON()
}

// RecordSamples appends a batch of trajectory samples.
func (b *Backend) RecordSamples(samples []core.Sample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, samples...)
	return nil
}

// RecordHandoff appends one anchor handoff event.
func (b *Backend) RecordHandoff(h core.HandoffEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handoffs = append(b.handoffs, h)
	return nil
}

// GetExportedFilePath returns the path of the last exported file, or an
// empty string if nothing was exported yet.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata returns descriptive metadata for the last recorded run.
func (b *Backend) GetExportMetadata() storage.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.active {
		return storage.UploadMetadata{}
	}

	meta := storage.UploadMetadata{
		DocumentName: b.info.DocumentName,
		RunID:        b.info.ID,
	}
	if polyline, err := geo.EncodePolyline(b.info.PlannedPath); err == nil {
		meta.PlannedPolyline = polyline
	}
	if b.ended {
		meta.Outcome = b.result.Outcome.String()
		meta.DurationSeconds = b.result.Duration
	}
	return meta
}
