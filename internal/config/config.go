package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/edanliahovetsky/bline-engine/pkg/core"
)

// SimulationConfig holds the engine's stepping parameters.
type SimulationConfig struct {
	TimeStep      float64
	MaxIterations int
}

// RobotConfig holds the physical footprint recorded with each run.
type RobotConfig struct {
	LengthMeters float64
	WidthMeters  float64
}

// MemoryConfig holds in-memory/JSON storage backend settings.
type MemoryConfig struct {
	OutputDir      string
	CompressOutput bool
}

// GormConfig holds the database-archive backend settings. DumpInterval
// only applies when the backend runs on the in-memory SQLite fallback.
type GormConfig struct {
	FlushInterval time.Duration
	BatchSize     int
	LocalPath     string
	DumpInterval  time.Duration
}

// WebsocketConfig holds the live-streaming backend settings. The endpoint
// itself derives from api.serverUrl.
type WebsocketConfig struct {
	AckTimeout time.Duration
}

// StorageConfig selects and parameterizes the run recorder backend.
type StorageConfig struct {
	Type      string
	Memory    MemoryConfig
	Gorm      GormConfig
	Websocket WebsocketConfig
}

// DatabaseConfig holds the Postgres connection settings for the gorm backend.
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// OTelConfig holds the OpenTelemetry provider settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds the time-series sink settings.
type InfluxConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Protocol  string
	Token     string
	Org       string
	Bucket    string
	BackupDir string
}

// APIConfig holds the viewer upload settings.
type APIConfig struct {
	ServerURL string
	APIKey    string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file is
// not an error; every key has a default.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./blinelogs")

	viper.SetDefault("defaults.max_velocity_meters_per_sec", 4.5)
	viper.SetDefault("defaults.max_acceleration_meters_per_sec2", 7.0)
	viper.SetDefault("defaults.max_velocity_deg_per_sec", 720.0)
	viper.SetDefault("defaults.max_acceleration_deg_per_sec2", 1500.0)
	viper.SetDefault("defaults.end_translation_tolerance_meters", 0.03)
	viper.SetDefault("defaults.end_rotation_tolerance_deg", 2.0)
	viper.SetDefault("defaults.intermediate_handoff_radius_meters", 0.2)

	viper.SetDefault("robot.length_meters", 0.5)
	viper.SetDefault("robot.width_meters", 0.5)

	viper.SetDefault("simulation.time_step_seconds", 0.02)
	viper.SetDefault("simulation.max_iterations", 0)

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "bline")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "bline-metrics")
	viper.SetDefault("influx.bucket", "trajectories")
	viper.SetDefault("influx.backupDir", "./influx_backup")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "bline-engine")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./trajectories")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.gorm.flushInterval", "2s")
	viper.SetDefault("storage.gorm.batchSize", 500)
	viper.SetDefault("storage.gorm.localPath", "./bline.db")
	viper.SetDefault("storage.gorm.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.ackTimeout", "5s")

	viper.SetConfigName("bline-engine.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %v", err)
		}
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetConstraintDefaults returns the configured global limits and the default
// handoff radius applied to elements that omit one.
func GetConstraintDefaults() (core.ConstraintSet, float64) {
	set := core.ConstraintSet{
		MaxVelocityMPS:           viper.GetFloat64("defaults.max_velocity_meters_per_sec"),
		MaxAccelerationMPS2:      viper.GetFloat64("defaults.max_acceleration_meters_per_sec2"),
		MaxRotVelocityDegS:       viper.GetFloat64("defaults.max_velocity_deg_per_sec"),
		MaxRotAccelerationDegS2:  viper.GetFloat64("defaults.max_acceleration_deg_per_sec2"),
		EndTranslationToleranceM: viper.GetFloat64("defaults.end_translation_tolerance_meters"),
		EndRotationToleranceDeg:  viper.GetFloat64("defaults.end_rotation_tolerance_deg"),
	}
	return set, viper.GetFloat64("defaults.intermediate_handoff_radius_meters")
}

// GetSimulationConfig returns the engine stepping parameters.
func GetSimulationConfig() SimulationConfig {
	return SimulationConfig{
		TimeStep:      viper.GetFloat64("simulation.time_step_seconds"),
		MaxIterations: viper.GetInt("simulation.max_iterations"),
	}
}

// GetRobotConfig returns the robot footprint.
func GetRobotConfig() RobotConfig {
	return RobotConfig{
		LengthMeters: viper.GetFloat64("robot.length_meters"),
		WidthMeters:  viper.GetFloat64("robot.width_meters"),
	}
}

// GetStorageConfig returns the storage backend selection and settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		Gorm: GormConfig{
			FlushInterval: viper.GetDuration("storage.gorm.flushInterval"),
			BatchSize:     viper.GetInt("storage.gorm.batchSize"),
			LocalPath:     viper.GetString("storage.gorm.localPath"),
			DumpInterval:  viper.GetDuration("storage.gorm.dumpInterval"),
		},
		Websocket: WebsocketConfig{
			AckTimeout: viper.GetDuration("storage.websocket.ackTimeout"),
		},
	}
}

// GetDatabaseConfig returns the Postgres connection settings.
func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetOTelConfig returns the telemetry provider settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the time-series sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

// GetAPIConfig returns the viewer upload settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}
