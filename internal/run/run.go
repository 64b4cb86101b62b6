// Package run tracks the trajectory run currently being recorded.
package run

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// NewID returns a fresh run identifier.
func NewID() string {
	return uuid.New().String()
}

// Info is the metadata fixed when a run starts. It is treated as immutable
// once handed to Context.Begin.
type Info struct {
	ID            string
	DocumentName  string
	DocumentJSON  []byte
	StartedAt     time.Time
	StartPose     core.Pose
	Constraints   core.ConstraintSet
	TimeStep      float64
	MaxIterations int
	RobotLength   float64
	RobotWidth    float64
	EngineVersion string
	PlannedPath   []core.Point
}

// Context holds the active run state
type Context struct {
	mu     sync.RWMutex
	info   Info
	active bool
}

// NewContext creates a new Context with no active run
func NewContext() *Context {
	return &Context{}
}

// Begin marks info as the active run
func (rc *Context) Begin(info Info) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.info = info
	rc.active = true
}

// End clears the active run
func (rc *Context) End() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.info = Info{}
	rc.active = false
}

// Active returns the active run metadata, if any
func (rc *Context) Active() (Info, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.info, rc.active
}

// LogAttrs returns the active run's identifying attributes for log
// enrichment. Nil when no run is active.
func (rc *Context) LogAttrs() []slog.Attr {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if !rc.active {
		return nil
	}
	attrs := []slog.Attr{slog.String("runID", rc.info.ID)}
	if rc.info.DocumentName != "" {
		attrs = append(attrs, slog.String("document", rc.info.DocumentName))
	}
	return attrs
}
