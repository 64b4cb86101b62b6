// Package gormstorage implements the storage.Backend interface on a GORM
// database with internal queues and a background DB writer goroutine.
// Postgres is preferred; the database manager falls back to in-memory SQLite
// with periodic disk dumps when Postgres is unreachable.
package gormstorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/edanliahovetsky/bline-engine/internal/cache"
	"github.com/edanliahovetsky/bline-engine/internal/config"
	"github.com/edanliahovetsky/bline-engine/internal/database"
	"github.com/edanliahovetsky/bline-engine/internal/model"
	"github.com/edanliahovetsky/bline-engine/internal/model/convert"
	"github.com/edanliahovetsky/bline-engine/internal/queue"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// Manager is the database connection to use. When nil, Init creates one
	// from the viper db.* settings; when no connection can be opened the
	// backend runs in queue-only mode and EndRun discards the recorded rows.
	Manager *database.Manager

	// Version is recorded in the engine info seed row when Init creates its
	// own connection.
	Version string

	Log zerolog.Logger
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Samples  *queue.Queue[model.TrajectorySample]
	Handoffs *queue.Queue[model.HandoffEvent]
}

func newQueues() *queues {
	return &queues{
		Samples:  queue.New[model.TrajectorySample](),
		Handoffs: queue.New[model.HandoffEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	cfg      config.GormConfig
	queues   *queues
	docCache *cache.DocumentCache
	stopChan chan struct{}
	dbReady  bool

	mu     sync.Mutex
	runID  string
	tick   uint
	runRow model.Run

	lastDBWriteDuration time.Duration
}

// New creates a new GORM storage backend.
func New(cfg config.GormConfig, deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
		cfg:  cfg,
	}
}

// Init creates internal queues, connects and migrates the database, and
// starts the DB writer goroutine. A failed connection is not fatal; the
// backend then accepts records without persisting them.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.docCache = cache.NewDocumentCache()
	b.stopChan = make(chan struct{})

	if b.deps.Manager == nil {
		m := database.NewManager(b.deps.Version, b.deps.Log)
		m.SqliteFilePath = b.cfg.LocalPath
		if err := m.Connect(); err != nil {
			b.deps.Log.Error().Err(err).Msg("No database available, running queue-only")
			b.startDBWriter()
			return nil
		}
		b.deps.Manager = m
	}

	if b.deps.Manager.DB != nil {
		if err := b.deps.Manager.Setup(); err != nil {
			return fmt.Errorf("failed to setup DB: %w", err)
		}
		b.dbReady = b.deps.Manager.IsValid
	}

	b.startDBWriter()
	if b.dbReady && b.deps.Manager.ShouldSaveLocal && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}
	return nil
}

// Close stops the DB writer goroutine.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
	}
	return nil
}

// StartRun inserts the document (get-or-insert by content hash) and the run
// row, then arms the queues for sample recording.
func (b *Backend) StartRun(info run.Info) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.runID = info.ID
	b.tick = 0
	b.runRow = convert.CoreToRun(info)
	b.queues.Samples.Clear()
	b.queues.Handoffs.Clear()

	if !b.dbReady {
		return nil
	}
	db := b.deps.Manager.DB

	doc := convert.CoreToDocument(info.DocumentName, info.DocumentJSON)
	if cached, ok := b.docCache.Get(doc.Hash); ok {
		doc = cached
	} else {
		if _, err := doc.GetOrInsert(db); err != nil {
			return fmt.Errorf("failed to get or insert document: %w", err)
		}
		b.docCache.Add(doc)
	}

	b.runRow.DocumentID = doc.ID
	if err := db.Create(&b.runRow).Error; err != nil {
		return fmt.Errorf("failed to insert new run: %w", err)
	}

	return nil
}

// EndRun drains the queues, applies the final result to the run row, and
// dumps the in-memory SQLite DB to disk when running on the fallback.
func (b *Backend) EndRun(result core.RunResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.runID == "" {
		return fmt.Errorf("no active run to end")
	}

	if !b.dbReady {
		b.queues.Samples.Clear()
		b.queues.Handoffs.Clear()
		b.runID = ""
		return nil
	}

	b.writeQueues()

	convert.ApplyResult(&b.runRow, result)
	db := b.deps.Manager.DB
	if err := db.Save(&b.runRow).Error; err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}

	if b.deps.Manager.ShouldSaveLocal {
		if err := b.deps.Manager.DumpMemoryToDisk(); err != nil {
			b.deps.Log.Error().Err(err).Msg("Failed to dump memory DB to disk")
		}
	}

	b.runID = ""
	return nil
}

// RecordSamples converts a batch of samples to rows and pushes them to the
// write queue. Ticks are assigned in arrival order.
func (b *Backend) RecordSamples(samples []core.Sample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.runID == "" {
		return fmt.Errorf("no active run")
	}
	for _, s := range samples {
		b.queues.Samples.Push(convert.CoreToSample(b.runID, b.tick, s))
		b.tick++
	}
	return nil
}

// RecordHandoff converts and queues one handoff event.
func (b *Backend) RecordHandoff(h core.HandoffEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.runID == "" {
		return fmt.Errorf("no active run")
	}
	b.queues.Handoffs.Push(convert.CoreToHandoff(b.runID, h))
	return nil
}

// GetLastDBWriteDuration returns how long the most recent flush took.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastDBWriteDuration
}

// QueueLengths reports the current write queue depths.
func (b *Backend) QueueLengths() (samples, handoffs int) {
	return b.queues.Samples.Len(), b.queues.Handoffs.Len()
}

// writeQueue writes all items from a queue to the database in a transaction.
// Items go back on the queue when the write fails.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, batchSize int, log zerolog.Logger) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if err := tx.CreateInBatches(&items, batchSize).Error; err != nil {
		log.Error().Err(err).Str("queue", name).Msg("Error writing queue")
		tx.Rollback()
		q.Push(items...)
		return
	}

	tx.Commit()
}

// writeQueues drains every queue once. Callers must hold b.mu.
func (b *Backend) writeQueues() {
	start := time.Now()
	db := b.deps.Manager.DB
	writeQueue(db, b.queues.Samples, "trajectory samples", b.cfg.BatchSize, b.deps.Log)
	writeQueue(db, b.queues.Handoffs, "handoff events", b.cfg.BatchSize, b.deps.Log)
	b.lastDBWriteDuration = time.Since(start)
}

// dumpLoop periodically snapshots the in-memory SQLite database to disk.
// VACUUM INTO is a point-in-time snapshot, so writes keep flowing during it.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.deps.Manager.DumpMemoryToDisk(); err != nil {
				b.deps.Log.Error().Err(err).Msg("Periodic DB dump failed")
			}
		}
	}
}

// startDBWriter starts the background goroutine that periodically drains
// queues into the DB.
func (b *Backend) startDBWriter() {
	interval := b.cfg.FlushInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
			}

			if !b.dbReady {
				continue
			}

			b.mu.Lock()
			b.writeQueues()
			b.mu.Unlock()
		}
	}()
}
