package main

import (
	"context"
	"strings"
	"sync"

	"github.com/edanliahovetsky/bline-engine/internal/config"
	"github.com/edanliahovetsky/bline-engine/internal/database"
	"github.com/edanliahovetsky/bline-engine/internal/influx"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/internal/storage"
	gormstorage "github.com/edanliahovetsky/bline-engine/internal/storage/gorm"
	"github.com/edanliahovetsky/bline-engine/internal/storage/memory"
	wsstorage "github.com/edanliahovetsky/bline-engine/internal/storage/websocket"
	"github.com/edanliahovetsky/bline-engine/pkg/core"
	"github.com/spf13/viper"
)

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "gorm":
		zl := zerologLogger()
		databaseManager = database.NewManager(CurrentEngineVersion, zl)
		databaseManager.SqliteFilePath = storageCfg.Gorm.LocalPath
		if err := databaseManager.Connect(); err != nil {
			Logger.Error("No database available, runs will not be persisted", "error", err)
		}
		Logger.Info("Database storage backend initialized")
		return gormstorage.New(storageCfg.Gorm, gormstorage.Dependencies{
			Manager: databaseManager,
			Version: CurrentEngineVersion,
			Log:     zl,
		}), nil

	case "websocket":
		wsURL := httpToWS(viper.GetString("api.serverUrl")) + "/api"
		secret := viper.GetString("api.apiKey")
		Logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:        wsURL,
			Secret:     secret,
			AckTimeout: storageCfg.Websocket.AckTimeout,
		}), nil

	default:
		Logger.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}

// influxTee mirrors run data into InfluxDB next to the primary backend. The
// primary backend's errors decide the pipeline outcome; influx write errors
// are only logged.
type influxTee struct {
	primary storage.Backend
	manager *influx.Manager

	mu   sync.Mutex
	info run.Info
}

func newInfluxTee(primary storage.Backend, manager *influx.Manager) *influxTee {
	return &influxTee{primary: primary, manager: manager}
}

func (t *influxTee) Init() error  { return t.primary.Init() }
func (t *influxTee) Close() error { return t.primary.Close() }

func (t *influxTee) StartRun(info run.Info) error {
	t.mu.Lock()
	t.info = info
	t.mu.Unlock()
	return t.primary.StartRun(info)
}

func (t *influxTee) EndRun(result core.RunResult) error {
	t.mu.Lock()
	info := t.info
	t.mu.Unlock()

	point := influx.RunPoint(info, result)
	if err := t.manager.WritePoint(context.Background(), influx.BucketRunSummaries, point); err != nil {
		Logger.Warn("Failed to write run summary to InfluxDB", "error", err)
	}
	return t.primary.EndRun(result)
}

func (t *influxTee) RecordSamples(samples []core.Sample) error {
	t.mu.Lock()
	info := t.info
	t.mu.Unlock()

	for _, s := range samples {
		point := influx.SamplePoint(info.ID, info.StartedAt, s)
		if err := t.manager.WritePoint(context.Background(), influx.BucketTrajectorySamples, point); err != nil {
			Logger.Debug("Failed to write sample to InfluxDB", "error", err)
			break
		}
	}
	return t.primary.RecordSamples(samples)
}

func (t *influxTee) RecordHandoff(h core.HandoffEvent) error {
	t.mu.Lock()
	info := t.info
	t.mu.Unlock()

	point := influx.HandoffPoint(info.ID, info.StartedAt, h)
	if err := t.manager.WritePoint(context.Background(), influx.BucketTrajectorySamples, point); err != nil {
		Logger.Debug("Failed to write handoff to InfluxDB", "error", err)
	}
	return t.primary.RecordHandoff(h)
}

var _ storage.Backend = (*influxTee)(nil)
