package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edanliahovetsky/bline-engine/internal/project"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
	"github.com/edanliahovetsky/bline-engine/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL        string
	Secret     string
	AckTimeout time.Duration // zero means the default
}

// Backend streams run data over WebSocket to the bline viewer server.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config

	mu    sync.Mutex
	runID string

	sampleCount  atomic.Uint64
	handoffCount atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	return &Backend{
		conn: newConnection(slog.Default()),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

func (b *Backend) ackTimeout() time.Duration {
	if b.cfg.AckTimeout > 0 {
		return b.cfg.AckTimeout
	}
	return defaultAckTimeout
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, b.ackTimeout())
}

// StartRun sends the run metadata and waits for server ack.
func (b *Backend) StartRun(info run.Info) error {
	payload := streaming.RunStartPayload{
		RunID:         info.ID,
		DocumentName:  info.DocumentName,
		EngineVersion: info.EngineVersion,
		StartedAt:     info.StartedAt,
		StartPose:     info.StartPose,
		TimeStep:      info.TimeStep,
		MaxIterations: info.MaxIterations,
		RobotLength:   info.RobotLength,
		RobotWidth:    info.RobotWidth,
		PlannedPath:   info.PlannedPath,
	}
	if raw, err := project.EncodeConstraints(info.Constraints); err == nil {
		payload.Constraints = raw
	}

	data, err := marshalEnvelope(streaming.TypeRunStart, payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.runID = info.ID
	b.mu.Unlock()
	b.sampleCount.Store(0)
	b.handoffCount.Store(0)

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedRunStart = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeRunStart, b.ackTimeout())
}

// EndRun sends run_end and waits for server ack. Samples or handoffs the
// caller never streamed incrementally are flushed first so the server sees
// the complete run either way.
func (b *Backend) EndRun(result core.RunResult) error {
	b.mu.Lock()
	runID := b.runID
	b.mu.Unlock()
	if runID == "" {
		return fmt.Errorf("no active run to end")
	}

	if b.sampleCount.Load() == 0 && len(result.Samples) > 0 {
		if err := b.RecordSamples(result.Samples); err != nil {
			return err
		}
	}
	if b.handoffCount.Load() == 0 && len(result.Handoffs) > 0 {
		for _, h := range result.Handoffs {
			if err := b.RecordHandoff(h); err != nil {
				return err
			}
		}
	}

	payload := streaming.RunEndPayload{
		RunID:           runID,
		Outcome:         result.Outcome.String(),
		Iterations:      result.Iterations,
		DurationSeconds: result.Duration,
		SampleCount:     int(b.sampleCount.Load()),
		HandoffCount:    int(b.handoffCount.Load()),
	}
	err := b.sendEnvelopeAndWait(streaming.TypeRunEnd, payload)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedRunStart = nil
	b.conn.mu.Unlock()
	b.mu.Lock()
	b.runID = ""
	b.mu.Unlock()
	b.sampleCount.Store(0)
	b.handoffCount.Store(0)

	return err
}

// RecordSamples streams a batch of trajectory samples (fire-and-forget).
func (b *Backend) RecordSamples(samples []core.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	b.mu.Lock()
	runID := b.runID
	b.mu.Unlock()
	if runID == "" {
		return fmt.Errorf("no active run")
	}

	err := b.sendEnvelope(streaming.TypeSamples, streaming.SamplesPayload{
		RunID:   runID,
		Samples: samples,
	})
	if err == nil {
		b.sampleCount.Add(uint64(len(samples)))
	}
	return err
}

// RecordHandoff streams one anchor handoff event (fire-and-forget).
func (b *Backend) RecordHandoff(h core.HandoffEvent) error {
	b.mu.Lock()
	runID := b.runID
	b.mu.Unlock()
	if runID == "" {
		return fmt.Errorf("no active run")
	}

	err := b.sendEnvelope(streaming.TypeHandoff, streaming.HandoffPayload{
		RunID:   runID,
		Handoff: h,
	})
	if err == nil {
		b.handoffCount.Add(1)
	}
	return err
}
