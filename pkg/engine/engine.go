// Package engine is the embedding surface for trajectory generation. It wraps
// document decoding, validation and the fixed-step simulation behind a single
// constructor so host programs do not assemble the internal services
// themselves. Runs made through this package compute without being recorded;
// the recording pipeline belongs to the command-line tool.
package engine

import (
	"context"
	"log/slog"

	"github.com/edanliahovetsky/bline-engine/internal/config"
	"github.com/edanliahovetsky/bline-engine/internal/handlers"
	"github.com/edanliahovetsky/bline-engine/internal/project"
	"github.com/edanliahovetsky/bline-engine/internal/sim"
	"github.com/edanliahovetsky/bline-engine/internal/validate"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Stock values applied to zero Config fields. They match the shipped
// configuration defaults of the command-line tool.
const (
	DefaultTimeStep      = 0.02 // seconds
	DefaultHandoffRadius = 0.2  // meters
	DefaultRobotLength   = 0.5  // meters
	DefaultRobotWidth    = 0.5  // meters
)

// DefaultConstraints returns the stock motion limits. Documents override any
// of them through their constraints block.
func DefaultConstraints() core.ConstraintSet {
	return core.ConstraintSet{
		MaxVelocityMPS:           4.5,
		MaxAccelerationMPS2:      7.0,
		MaxRotVelocityDegS:       720.0,
		MaxRotAccelerationDegS2:  1500.0,
		EndTranslationToleranceM: 0.03,
		EndRotationToleranceDeg:  2.0,
	}
}

// Config configures an Engine. The zero value is usable; every field has a
// stock fallback.
type Config struct {
	// Logger receives decode and defaulting diagnostics. Nil logs through
	// slog.Default.
	Logger *slog.Logger
	// Constraints fill document fields the constraints block omits. A zero
	// set uses DefaultConstraints.
	Constraints core.ConstraintSet
	// HandoffRadius is applied, in meters, to path elements that omit one.
	HandoffRadius float64
	// TimeStep between samples in seconds.
	TimeStep float64
	// MaxIterations caps every run. Zero derives a cap per run from the
	// path and its limits.
	MaxIterations int
	// RobotLength and RobotWidth in meters, recorded on run metadata.
	RobotLength float64
	RobotWidth  float64
	// Version tag recorded on run metadata.
	Version string
}

// Engine runs documents and in-memory paths through the simulation.
// It is safe for concurrent use.
type Engine struct {
	cfg   Config
	codec *project.Codec
	svc   *handlers.Service
}

// New creates an Engine, filling zero Config fields with stock values.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if constraintsUnset(cfg.Constraints) {
		cfg.Constraints = DefaultConstraints()
	}
	if cfg.HandoffRadius <= 0 {
		cfg.HandoffRadius = DefaultHandoffRadius
	}
	if cfg.TimeStep <= 0 {
		cfg.TimeStep = DefaultTimeStep
	}
	if cfg.RobotLength <= 0 {
		cfg.RobotLength = DefaultRobotLength
	}
	if cfg.RobotWidth <= 0 {
		cfg.RobotWidth = DefaultRobotWidth
	}

	codec := project.NewCodec(cfg.Logger, cfg.Constraints, cfg.HandoffRadius)
	svc := handlers.NewService(handlers.Dependencies{
		Codec: codec,
		Simulation: config.SimulationConfig{
			TimeStep:      cfg.TimeStep,
			MaxIterations: cfg.MaxIterations,
		},
		Robot: config.RobotConfig{
			LengthMeters: cfg.RobotLength,
			WidthMeters:  cfg.RobotWidth,
		},
		EngineVersion: cfg.Version,
	})
	return &Engine{cfg: cfg, codec: codec, svc: svc}
}

func constraintsUnset(c core.ConstraintSet) bool {
	for _, k := range core.ConstraintKinds {
		if c.Global(k) != 0 {
			return false
		}
	}
	return len(c.Ranged) == 0
}

// Options override the configured stepping parameters for one run.
type Options struct {
	// TimeStep in seconds; zero uses the engine's configured step
	TimeStep float64
	// MaxIterations caps the run; zero derives a cap from the path and limits
	MaxIterations int
	// StartPose of the robot; nil starts at the first translation anchor
	StartPose *core.Pose
}

// Validate decodes data and checks every structural rule. The returned error
// aggregates all violations; the decoded document is returned for reuse.
func (e *Engine) Validate(data []byte) (core.Document, error) {
	return e.svc.Validate(data)
}

// Schema returns the JSON Schema describing the document format.
func (e *Engine) Schema() ([]byte, error) {
	return e.svc.Schema()
}

// Simulate validates an in-memory path under the given constraints and steps
// it to completion. Elements with a zero handoff radius get the engine's
// configured default; a zero constraint set runs under the engine's
// configured defaults.
func (e *Engine) Simulate(path core.Path, constraints core.ConstraintSet, opts Options) (core.RunResult, error) {
	if constraintsUnset(constraints) {
		constraints = e.cfg.Constraints
	}
	doc := core.Document{
		Path:        fillRadii(path, e.cfg.HandoffRadius),
		Constraints: constraints,
	}
	if err := validate.Document(doc); err != nil {
		return core.RunResult{}, err
	}

	timeStep := opts.TimeStep
	if timeStep <= 0 {
		timeStep = e.cfg.TimeStep
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = e.cfg.MaxIterations
	}
	start := core.Pose{}
	if opts.StartPose != nil {
		start = *opts.StartPose
	} else if anchors := doc.Path.TranslationAnchors(); len(anchors) > 0 {
		start.Position = anchors[0].Position
	}
	return sim.Simulate(doc, start, sim.Options{DT: timeStep, MaxIterations: maxIterations})
}

// fillRadii copies the path with zero handoff radii replaced. Caller elements
// are never mutated.
func fillRadii(path core.Path, radius float64) core.Path {
	elements := make([]core.PathElement, len(path.Elements))
	for i, el := range path.Elements {
		switch e := el.(type) {
		case core.Waypoint:
			if e.HandoffRadius == 0 {
				e.HandoffRadius = radius
			}
			elements[i] = e
		case core.TranslationTarget:
			if e.HandoffRadius == 0 {
				e.HandoffRadius = radius
			}
			elements[i] = e
		default:
			elements[i] = el
		}
	}
	return core.Path{Elements: elements}
}

// SimulateDocument decodes, validates and steps a serialized document. On
// cancellation the partial result is returned with the context's error. The
// name labels the run in diagnostics only.
func (e *Engine) SimulateDocument(ctx context.Context, name string, data []byte, opts Options) (core.RunResult, error) {
	return e.svc.Simulate(ctx, name, data, handlers.Options{
		TimeStep:      opts.TimeStep,
		MaxIterations: opts.MaxIterations,
		StartPose:     opts.StartPose,
	})
}

// RunJSON steps a serialized document and renders the trajectory export,
// string in and string out, for hosts that cannot exchange Go values.
func (e *Engine) RunJSON(input string) (string, error) {
	result, err := e.SimulateDocument(context.Background(), "inline", []byte(input), Options{})
	if err != nil {
		return "", err
	}
	out, err := project.EncodeResult(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
