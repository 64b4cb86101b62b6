package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&EngineInfo{},
	&Document{},
	&Run{},
	&TrajectorySample{},
	&HandoffEvent{},
	&EnginePerformance{},
}

var DatabaseModelsSQLite = []interface{}{
	&EngineInfo{},
	&Document{},
	&Run{},
	&TrajectorySample{},
	&HandoffEvent{},
	&EnginePerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// EngineInfo contains identity information about the engine instance
type EngineInfo struct {
	gorm.Model
	ToolName string `json:"toolName" gorm:"size:127"` // primary key
	Version  string `json:"version" gorm:"size:64"`
}

func (*EngineInfo) TableName() string {
	return "engine_infos"
}

// EnginePerformance is the model for engine performance metrics
type EnginePerformance struct {
	Time                time.Time         `json:"time" gorm:"type:timestamptz;index:idx_time"`
	RunID               string            `json:"runId" gorm:"size:36;index:idx_engineperformance_run_id"`
	BufferLengths       BufferLengths     `json:"bufferLengths" gorm:"embedded;embeddedPrefix:buffer_"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*EnginePerformance) TableName() string {
	return "engine_performances"
}

// BufferLengths is the model for the in-memory batch buffer lengths
type BufferLengths struct {
	Samples  uint16 `json:"samples"`
	Handoffs uint16 `json:"handoffs"`
}

// WriteQueueLengths is the model for the storage write queue lengths
type WriteQueueLengths struct {
	Samples  uint16 `json:"samples"`
	Handoffs uint16 `json:"handoffs"`
	Runs     uint16 `json:"runs"`
}

////////////////////////
// RUN MODELS
////////////////////////

// Document is a deduplicated path document. Content is the document JSON as
// accepted, before constraint defaults are filled in.
type Document struct {
	gorm.Model
	Name    string         `json:"name" gorm:"size:200"`
	Hash    string         `json:"hash" gorm:"size:64;uniqueIndex"` // sha256 of Content
	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`
	Runs    []Run
}

func (*Document) TableName() string {
	return "documents"
}

// GetOrInsert looks the document up by content hash, inserting it when absent.
func (d *Document) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existingDocument Document
	err = db.Where("hash = ?", d.Hash).First(&existingDocument).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// insert
			err = db.Create(d).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*d = existingDocument
	return false, nil
}

// Run is the main model for one trajectory generation run
type Run struct {
	RunID      string         `json:"runId" gorm:"primaryKey;size:36"` // UUID assigned at run start
	DocumentID uint           `json:"documentId"`
	Document   Document       `gorm:"foreignkey:DocumentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `json:"deletedAt" gorm:"index"`
	StartTime  time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_run_start"`

	EngineVersion string  `json:"engineVersion" gorm:"size:64"`
	TimeStep      float64 `json:"timeStepSeconds"`
	MaxIterations uint    `json:"maxIterations"`
	RobotLength   float64 `json:"robotLengthMeters"`
	RobotWidth    float64 `json:"robotWidthMeters"`

	StartPosition geom.Point `json:"startPosition"`
	StartHeading  float64    `json:"startHeadingRadians"`

	// Constraints is the resolved constraint snapshot, defaults filled in and
	// ranged declarations included.
	Constraints datatypes.JSON `json:"constraints" gorm:"type:jsonb;default:'{}'"`

	Outcome         string  `json:"outcome" gorm:"size:32;default:incomplete"`
	Iterations      uint    `json:"iterations"`
	DurationSeconds float64 `json:"durationSeconds"`

	PlannedPath geom.LineString `json:"plannedPath"` // straight segments through the anchors
	Trail       geom.LineString `json:"trail"`       // simulated positions

	Samples  []TrajectorySample
	Handoffs []HandoffEvent
}

func (*Run) TableName() string {
	return "runs"
}

// TrajectorySample is one fixed-step sample of the simulated chassis state.
// Uses composite primary key (RunID, Tick) - Tick is the 0-based sample index.
type TrajectorySample struct {
	RunID string `json:"runId" gorm:"primaryKey;size:36;autoIncrement:false"`
	Tick  uint   `json:"tick" gorm:"primaryKey;autoIncrement:false"`
	Run   Run    `gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	T               float64    `json:"tSeconds"`
	Position        geom.Point `json:"position"`
	Heading         float64    `json:"headingRadians"`
	Velocity        float64    `json:"velocityMetersPerSec"`
	AngularVelocity float64    `json:"angularVelocityRadiansPerSec"`
}

func (*TrajectorySample) TableName() string {
	return "trajectory_samples"
}

// HandoffEvent records the moment steering switched from one translation
// ordinal to the next.
type HandoffEvent struct {
	gorm.Model
	RunID string `json:"runId" gorm:"size:36;index:idx_handoff_run_id"`
	Run   Run    `gorm:"foreignkey:RunID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	T           float64    `json:"tSeconds"`
	FromOrdinal uint       `json:"fromOrdinal"`
	ToOrdinal   uint       `json:"toOrdinal"`
	Position    geom.Point `json:"position"`
}

func (*HandoffEvent) TableName() string {
	return "handoff_events"
}
