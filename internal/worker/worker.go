package worker

import (
	"fmt"
	"time"

	"github.com/edanliahovetsky/bline-engine/internal/logging"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/internal/storage"
)

// ErrNoActiveRun is returned when trajectory data arrives before a run has started
var ErrNoActiveRun = fmt.Errorf("no active run")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	RunContext *run.Context
	LogManager *logging.SlogManager
}

// Manager routes dispatched run events into the storage backend
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}

// WriteQueueLengthsProvider is an optional interface that backends can
// implement to expose their pending write-queue depths for monitoring.
type WriteQueueLengthsProvider interface {
	QueueLengths() (samples, handoffs int)
}

// GetWriteQueueLengths returns the backend's pending write-queue depths.
// Returns zeros if the backend doesn't batch writes.
func (m *Manager) GetWriteQueueLengths() (samples, handoffs int) {
	if p, ok := m.backend.(WriteQueueLengthsProvider); ok {
		return p.QueueLengths()
	}
	return 0, 0
}
