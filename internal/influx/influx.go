package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/edanliahovetsky/bline-engine/internal/model"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// Bucket names, one per measurement class.
const (
	BucketTrajectorySamples = "trajectory_samples"
	BucketRunSummaries      = "run_summaries"
	BucketEnginePerformance = "engine_performance"
)

// DefaultBucketNames are the InfluxDB buckets the engine writes to.
var DefaultBucketNames = []string{
	BucketTrajectorySamples,
	BucketRunSummaries,
	BucketEnginePerformance,
}

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	backupFile   *os.File
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		IsValid:     false,
		BucketNames: DefaultBucketNames,
		Logger:      log,
		BackupPath:  backupPath,
	}
}

// Connect establishes a connection to InfluxDB. When the server is
// unreachable the manager falls back to a gzip line-protocol backup file so
// points survive until the server is back.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(context.Background())

	if err != nil || !running {
		m.IsValid = false
		// create backup writer
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %v", err)
			}
			m.backupFile = file
			m.BackupWriter = gzip.NewWriter(file)
		}
	} else {
		m.IsValid = true
	}

	if m.IsValid {
		err = m.setupOrganizationAndBuckets()
		if err != nil {
			return err
		}
		m.CreateWriters()
		m.Logger.Info().Msg("InfluxDB client initialized")
	} else {
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
	}

	return nil
}

func (m *Manager) setupOrganizationAndBuckets() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	// ensure org exists
	_, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		_, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// get influxOrg
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Error().Err(err).Str("org", orgName).Msg("Error getting organization")
		return err
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		_, err = m.Client.BucketsAPI().FindBucketByName(ctx, bucket)
		if err != nil {
			m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

			rule := domain.RetentionRuleTypeExpire
			_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
				Type:         &rule,
				EverySeconds: 60 * 60 * 24 * 90, // 90 days
			})
			if err != nil {
				m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
				return err
			}
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	orgName := viper.GetString("influx.org")
	for _, bucket := range m.BucketNames {
		m.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
		m.Writers[bucket] = m.Client.WriteAPI(orgName, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)

		m.Logger.Trace().Str("bucket", bucket).Msg("InfluxDB writer created")
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(ctx context.Context, bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		if _, ok := m.Writers[bucket]; !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		m.Writers[bucket].WritePoint(point)
	} else {
		if m.BackupWriter == nil {
			return fmt.Errorf("influxDB client not initialized and backup writer not available")
		}

		lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Duration(1*time.Nanosecond))
		_, err := m.BackupWriter.Write([]byte(lineProtocol + "\n"))
		if err != nil {
			return fmt.Errorf("error writing to InfluxDB backup file: %s", err)
		}
	}

	return nil
}

// Close flushes pending writes and releases the client or backup file. The
// gzip stream is unreadable unless it is closed, so this must run before
// process exit.
func (m *Manager) Close() {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		if err := m.BackupWriter.Close(); err != nil {
			m.Logger.Error().Err(err).Msg("Error closing InfluxDB backup writer")
		}
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		if err := m.backupFile.Close(); err != nil {
			m.Logger.Error().Err(err).Msg("Error closing InfluxDB backup file")
		}
		m.backupFile = nil
	}
}

// SamplePoint builds the point for one trajectory sample. The point time is
// the run start shifted by the sample's simulated offset, so a run replays on
// the time axis it simulated.
func SamplePoint(runID string, start time.Time, s core.Sample) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"trajectory_sample",
		map[string]string{
			"runId": runID,
		},
		map[string]interface{}{
			"t_seconds":        s.T,
			"x_meters":         s.X,
			"y_meters":         s.Y,
			"heading_radians":  s.Heading,
			"velocity_mps":     s.Velocity,
			"angular_vel_rads": s.AngularVelocity,
		},
		start.Add(time.Duration(s.T*float64(time.Second))),
	)
}

// HandoffPoint builds the point for one handoff event.
func HandoffPoint(runID string, start time.Time, h core.HandoffEvent) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"handoff_event",
		map[string]string{
			"runId": runID,
		},
		map[string]interface{}{
			"t_seconds":    h.T,
			"from_ordinal": h.FromOrdinal,
			"to_ordinal":   h.ToOrdinal,
			"x_meters":     h.X,
			"y_meters":     h.Y,
		},
		start.Add(time.Duration(h.T*float64(time.Second))),
	)
}

// RunPoint builds the summary point for a completed run.
func RunPoint(info run.Info, result core.RunResult) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"run_summary",
		map[string]string{
			"runId":    info.ID,
			"document": info.DocumentName,
			"outcome":  result.Outcome.String(),
		},
		map[string]interface{}{
			"iterations":       result.Iterations,
			"duration_seconds": result.Duration,
			"samples":          len(result.Samples),
			"handoffs":         len(result.Handoffs),
			"time_step":        info.TimeStep,
			"engine_version":   info.EngineVersion,
		},
		info.StartedAt,
	)
}

// PerformancePoint builds the point for one monitor performance snapshot.
func PerformancePoint(perf model.EnginePerformance) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		"engine_performance",
		map[string]string{
			"runId": perf.RunID,
		},
		map[string]interface{}{
			"buffer_samples":      int(perf.BufferLengths.Samples),
			"buffer_handoffs":     int(perf.BufferLengths.Handoffs),
			"writequeue_samples":  int(perf.WriteQueueLengths.Samples),
			"writequeue_handoffs": int(perf.WriteQueueLengths.Handoffs),
			"writequeue_runs":     int(perf.WriteQueueLengths.Runs),
			"last_write_ms":       float64(perf.LastWriteDurationMs),
		},
		perf.Time,
	)
}
