package worker

import (
	"fmt"

	"github.com/edanliahovetsky/bline-engine/internal/dispatcher"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Commands accepted by the run pipeline. Producers dispatch these with the
// typed payload each handler expects.
const (
	CommandRunStart   = ":RUN:START:"
	CommandRunSamples = ":RUN:SAMPLES:"
	CommandRunHandoff = ":RUN:HANDOFF:"
	CommandRunEnd     = ":RUN:END:"
)

// RegisterHandlers registers all run pipeline handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Run lifecycle - sync (storage must see the start before buffered
	// samples arrive and the end carries the authoritative result)
	d.Register(CommandRunStart, m.handleRunStart, dispatcher.Logged())
	d.Register(CommandRunEnd, m.handleRunEnd, dispatcher.Logged())

	// High-volume trajectory data - buffered
	d.Register(CommandRunSamples, m.handleRunSamples, dispatcher.Buffered(10000), dispatcher.Logged())
	d.Register(CommandRunHandoff, m.handleRunHandoff, dispatcher.Buffered(1000), dispatcher.Logged())
}

func (m *Manager) handleRunStart(e dispatcher.Event) (any, error) {
	info, ok := e.Payload.(run.Info)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected payload type %T", e.Command, e.Payload)
	}

	// The run is active from the engine's point of view even when storage
	// rejects it, so recording failures don't wedge the next run.
	m.deps.RunContext.Begin(info)

	if err := m.backend.StartRun(info); err != nil {
		return nil, fmt.Errorf("failed to start run recording: %w", err)
	}

	m.deps.LogManager.Logger().Info("Run recording started",
		"runID", info.ID,
		"document", info.DocumentName)

	return nil, nil
}

func (m *Manager) handleRunSamples(e dispatcher.Event) (any, error) {
	batch, ok := e.Payload.([]core.Sample)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected payload type %T", e.Command, e.Payload)
	}
	if len(batch) == 0 {
		return nil, nil
	}

	if _, active := m.deps.RunContext.Active(); !active {
		return nil, ErrNoActiveRun
	}

	if err := m.backend.RecordSamples(batch); err != nil {
		return nil, fmt.Errorf("failed to record sample batch: %w", err)
	}

	return nil, nil
}

func (m *Manager) handleRunHandoff(e dispatcher.Event) (any, error) {
	h, ok := e.Payload.(core.HandoffEvent)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected payload type %T", e.Command, e.Payload)
	}

	if _, active := m.deps.RunContext.Active(); !active {
		return nil, ErrNoActiveRun
	}

	if err := m.backend.RecordHandoff(h); err != nil {
		return nil, fmt.Errorf("failed to record handoff: %w", err)
	}

	return nil, nil
}

func (m *Manager) handleRunEnd(e dispatcher.Event) (any, error) {
	result, ok := e.Payload.(core.RunResult)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected payload type %T", e.Command, e.Payload)
	}

	info, active := m.deps.RunContext.Active()
	if !active {
		return nil, ErrNoActiveRun
	}

	// Clear the context even when the backend fails, otherwise the engine
	// can never start the next run.
	err := m.backend.EndRun(result)
	m.deps.RunContext.End()
	if err != nil {
		return nil, fmt.Errorf("failed to end run recording: %w", err)
	}

	m.deps.LogManager.Logger().Info("Run recording ended",
		"runID", info.ID,
		"outcome", result.Outcome.String(),
		"iterations", result.Iterations,
		"samples", len(result.Samples))

	return nil, nil
}
