// Package handlers runs document operations end to end: decode, validate,
// simulate, and stream the produced trajectory into the run pipeline.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/edanliahovetsky/bline-engine/internal/config"
	"github.com/edanliahovetsky/bline-engine/internal/dispatcher"
	"github.com/edanliahovetsky/bline-engine/internal/logging"
	"github.com/edanliahovetsky/bline-engine/internal/project"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/internal/sim"
	"github.com/edanliahovetsky/bline-engine/internal/validate"
	"github.com/edanliahovetsky/bline-engine/internal/worker"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Operation commands accepted over the dispatcher.
const (
	CommandValidate = ":VALIDATE:"
	CommandSimulate = ":SIMULATE:"
	CommandSchema   = ":SCHEMA:"
)

const (
	// steps per streamed sample batch; at the default 20ms interval one
	// batch covers a second of trajectory
	streamBatchSize = 50
	// how long to wait for buffered pipeline queues to empty before the
	// end-of-run event
	drainTimeout = 5 * time.Second
)

// Dependencies holds all dependencies needed by the operation service
type Dependencies struct {
	// Dispatcher routes run events to the recording pipeline. May be nil;
	// runs then compute without being recorded.
	Dispatcher    *dispatcher.Dispatcher
	LogManager    *logging.SlogManager
	Codec         *project.Codec
	Simulation    config.SimulationConfig
	Robot         config.RobotConfig
	EngineVersion string
}

// Options override the configured stepping parameters for one run
type Options struct {
	// TimeStep in seconds; zero uses the configured default
	TimeStep float64
	// MaxIterations caps the run; zero derives a cap from the path and limits
	MaxIterations int
	// StartPose of the robot; nil starts at the first translation anchor
	StartPose *core.Pose
}

// Service provides the document operations
type Service struct {
	deps Dependencies
}

// NewService creates a new operation service
func NewService(deps Dependencies) *Service {
	return &Service{deps: deps}
}

func (s *Service) logger() *slog.Logger {
	if s.deps.LogManager == nil {
		return slog.Default()
	}
	return s.deps.LogManager.Logger()
}

// Validate decodes data and checks every structural rule. The returned error
// aggregates all violations; the decoded document is returned for reuse.
func (s *Service) Validate(data []byte) (core.Document, error) {
	doc, err := s.deps.Codec.Decode(data)
	if err != nil {
		return core.Document{}, fmt.Errorf("document decode failed: %w", err)
	}
	if err := validate.Document(doc); err != nil {
		return core.Document{}, err
	}
	return doc, nil
}

// Schema returns the JSON Schema describing the document format.
func (s *Service) Schema() ([]byte, error) {
	data, err := json.MarshalIndent(project.DocumentSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document schema: %w", err)
	}
	return data, nil
}

// Simulate validates data and steps it to completion, streaming sample
// batches and handoffs into the run pipeline as they are produced. On
// cancellation the partial result is returned with the context's error; the
// run is still ended so the recorder is not left open.
func (s *Service) Simulate(ctx context.Context, name string, data []byte, opts Options) (core.RunResult, error) {
	doc, err := s.Validate(data)
	if err != nil {
		return core.RunResult{}, err
	}

	timeStep := opts.TimeStep
	if timeStep <= 0 {
		timeStep = s.deps.Simulation.TimeStep
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = s.deps.Simulation.MaxIterations
	}

	anchors := doc.Path.TranslationAnchors()
	start := core.Pose{}
	if opts.StartPose != nil {
		start = *opts.StartPose
	} else if len(anchors) > 0 {
		start.Position = anchors[0].Position
	}

	engine, err := sim.New(doc, start, sim.Options{DT: timeStep, MaxIterations: maxIterations})
	if err != nil {
		return core.RunResult{}, fmt.Errorf("failed to prepare simulation: %w", err)
	}

	info := run.Info{
		ID:            run.NewID(),
		DocumentName:  name,
		DocumentJSON:  data,
		StartedAt:     time.Now(),
		StartPose:     start,
		Constraints:   doc.Constraints,
		TimeStep:      timeStep,
		MaxIterations: engine.IterationCap(),
		RobotLength:   s.deps.Robot.LengthMeters,
		RobotWidth:    s.deps.Robot.WidthMeters,
		EngineVersion: s.deps.EngineVersion,
		PlannedPath:   plannedPath(start.Position, anchors),
	}
	s.dispatch(worker.CommandRunStart, info)

	var sentSamples, sentHandoffs int
	running := true
	for running {
		select {
		case <-ctx.Done():
			s.streamSince(engine, &sentSamples, &sentHandoffs)
			result := engine.Result()
			s.finishRun(result)
			return result, ctx.Err()
		default:
		}

		for i := 0; i < streamBatchSize && running; i++ {
			running = engine.Step()
		}
		s.streamSince(engine, &sentSamples, &sentHandoffs)
	}

	result := engine.Result()
	s.finishRun(result)
	return result, nil
}

// RegisterHandlers registers the operation commands with the dispatcher.
// Operations are synchronous; callers need the result or the error.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CommandValidate, s.handleValidate, dispatcher.Logged())
	d.Register(CommandSimulate, s.handleSimulate, dispatcher.Logged())
	d.Register(CommandSchema, s.handleSchema, dispatcher.Logged())
}

// SimulateRequest is the payload for the simulate command.
type SimulateRequest struct {
	Name    string
	Data    []byte
	Options Options
}

func (s *Service) handleValidate(e dispatcher.Event) (any, error) {
	data, ok := e.Payload.([]byte)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected payload type %T", e.Command, e.Payload)
	}
	if _, err := s.Validate(data); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Service) handleSimulate(e dispatcher.Event) (any, error) {
	req, ok := e.Payload.(SimulateRequest)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected payload type %T", e.Command, e.Payload)
	}
	return s.Simulate(context.Background(), req.Name, req.Data, req.Options)
}

func (s *Service) handleSchema(e dispatcher.Event) (any, error) {
	return s.Schema()
}

// streamSince dispatches everything the engine produced since the last call.
// Sample batches and handoffs go to buffered handlers, so a slow recorder
// never stalls the stepping loop.
func (s *Service) streamSince(engine *sim.Sim, sentSamples, sentHandoffs *int) {
	if batch := engine.SamplesSince(*sentSamples); len(batch) > 0 {
		*sentSamples += len(batch)
		s.dispatch(worker.CommandRunSamples, batch)
	}
	for _, h := range engine.HandoffsSince(*sentHandoffs) {
		*sentHandoffs++
		s.dispatch(worker.CommandRunHandoff, h)
	}
}

// finishRun drains the buffered pipeline queues and ends the run with the
// authoritative result snapshot.
func (s *Service) finishRun(result core.RunResult) {
	if s.deps.Dispatcher == nil {
		return
	}
	s.drainPipeline()
	s.dispatch(worker.CommandRunEnd, result)
}

// drainPipeline waits for the buffered sample and handoff queues to empty so
// the end-of-run event observes every streamed batch. Best effort: the end
// event carries the full result anyway, so a stuck backend only costs the
// timeout.
func (s *Service) drainPipeline() {
	deadline := time.After(drainTimeout)
	for {
		if s.deps.Dispatcher.QueueLen(worker.CommandRunSamples) == 0 &&
			s.deps.Dispatcher.QueueLen(worker.CommandRunHandoff) == 0 {
			return
		}
		select {
		case <-deadline:
			s.logger().Warn("Run pipeline drain timed out")
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *Service) dispatch(command string, payload any) {
	if s.deps.Dispatcher == nil {
		return
	}
	if _, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Payload:   payload,
		Timestamp: time.Now(),
	}); err != nil {
		s.logger().Warn("Run pipeline dispatch failed", "command", command, "error", err)
	}
}

// plannedPath is the straight-line route the run will follow: the start
// position, then every translation anchor in ordinal order.
func plannedPath(start core.Point, anchors []core.TranslationAnchor) []core.Point {
	pts := make([]core.Point, 0, len(anchors)+1)
	pts = append(pts, start)
	for _, a := range anchors {
		pts = append(pts, a.Position)
	}
	return pts
}
