package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/edanliahovetsky/bline-engine/internal/api"
	"github.com/edanliahovetsky/bline-engine/internal/config"
	"github.com/edanliahovetsky/bline-engine/internal/database"
	"github.com/edanliahovetsky/bline-engine/internal/dispatcher"
	"github.com/edanliahovetsky/bline-engine/internal/geo"
	"github.com/edanliahovetsky/bline-engine/internal/handlers"
	"github.com/edanliahovetsky/bline-engine/internal/influx"
	"github.com/edanliahovetsky/bline-engine/internal/logging"
	"github.com/edanliahovetsky/bline-engine/internal/monitor"
	intOtel "github.com/edanliahovetsky/bline-engine/internal/otel"
	"github.com/edanliahovetsky/bline-engine/internal/project"
	"github.com/edanliahovetsky/bline-engine/internal/run"
	"github.com/edanliahovetsky/bline-engine/internal/storage"
	"github.com/edanliahovetsky/bline-engine/internal/worker"
	"github.com/edanliahovetsky/bline-engine/pkg/core"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentEngineVersion string = "0.1.0"
	BuildDate            string = "unknown"

	ToolName string = "bline-engine"
)

// file paths
var (
	// ConfigDir is where the config file is looked up.
	ConfigDir string = "."

	EngineLogFilePath string
	EngineLogFile     *os.File
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	// Services
	handlerService  *handlers.Service
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	eventDispatcher *dispatcher.Dispatcher
	runContext      *run.Context

	databaseManager *database.Manager
	influxManager   *influx.Manager

	// Storage backend (optional)
	storageBackend storage.Backend
)

func main() {
	setup()

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		shutdown()
		os.Exit(2)
	}

	var err error
	command := strings.ToLower(args[0])
	switch command {
	case "validate":
		err = runValidate(args[1:])
	case "simulate":
		err = runSimulate(args[1:])
	case "schema":
		err = runSchema()
	case "version":
		fmt.Printf("%s %s (built %s)\n", ToolName, CurrentEngineVersion, BuildDate)
	default:
		usage()
		shutdown()
		os.Exit(2)
	}

	if err != nil {
		Logger.Error("Command failed", "command", command, "error", err)
		fmt.Fprintln(os.Stderr, err)
		shutdown()
		os.Exit(1)
	}
	shutdown()
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [arguments]

Commands:
  validate [file]           check a path document (stdin when no file)
  simulate [file] [flags]   run a document and emit the trajectory JSON
  schema                    print the document JSON Schema
  version                   print version information

Simulate flags:
  -o <file>  write the trajectory to a file instead of stdout
  -s <pose>  start pose "x,y" or "x,y,heading" (meters, radians)
  -p <line>  route through "[[x,y],[x,y],...]" instead of a document
`, ToolName)
}

// setup loads the config and brings up logging and OTel. It must run before
// any command.
func setup() {
	var err error

	// Bootstrap logging to stderr until the log file exists; stdout stays
	// free for trajectory output
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, viper.GetString("logLevel"), nil, nil)
	Logger = SlogManager.Logger()

	if err = config.Load(ConfigDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	EngineLogFilePath = logging.LogFilePath(logsDir, ToolName, SessionStartTime)
	if _, err := os.Stat(EngineLogFilePath); err == nil {
		os.Rename(EngineLogFilePath, EngineLogFilePath+".old")
	}
	EngineLogFile, err = os.OpenFile(EngineLogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", EngineLogFilePath)
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    EngineLogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "file", EngineLogFilePath, "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", EngineLogFilePath)
		}
	}

	// Re-setup logging with file output, optional OTel, and active run
	// enrichment on every record
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	runContext = run.NewContext()
	SlogManager.Setup(EngineLogFile, viper.GetString("logLevel"), otelLogProvider, runContext.LogAttrs)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", EngineLogFilePath)

	numCPUs := runtime.NumCPU()
	Logger.Debug("Number of CPUs", "numCPUs", numCPUs)
	runtime.GOMAXPROCS(int(math.Max(float64(numCPUs-2), 1)))
}

// zerologLogger builds the logger handed to the components that log through
// zerolog. It writes to the engine log file next to the slog output.
func zerologLogger() zerolog.Logger {
	w := io.Writer(os.Stderr)
	if EngineLogFile != nil {
		w = EngineLogFile
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// newCodec builds the document codec from the configured constraint defaults.
func newCodec() *project.Codec {
	defaults, radius := config.GetConstraintDefaults()
	return project.NewCodec(Logger, defaults, radius)
}

// computeService builds a handler service with no recording pipeline, for
// commands that never start a run.
func computeService() *handlers.Service {
	return handlers.NewService(handlers.Dependencies{
		LogManager:    SlogManager,
		Codec:         newCodec(),
		Simulation:    config.GetSimulationConfig(),
		Robot:         config.GetRobotConfig(),
		EngineVersion: CurrentEngineVersion,
	})
}

// startServices wires the full recording pipeline: dispatcher, handler
// service, storage backend, worker manager and monitor.
func startServices() error {
	d, err := dispatcher.New(logging.NewDispatcherLogger(zerologLogger()))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	eventDispatcher = d

	handlerService = handlers.NewService(handlers.Dependencies{
		Dispatcher:    eventDispatcher,
		LogManager:    SlogManager,
		Codec:         newCodec(),
		Simulation:    config.GetSimulationConfig(),
		Robot:         config.GetRobotConfig(),
		EngineVersion: CurrentEngineVersion,
	})
	handlerService.RegisterHandlers(eventDispatcher)

	storageCfg := config.GetStorageConfig()
	storageBackend, err = createStorageBackend(storageCfg)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := storageBackend.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	// Optional time-series sink; the recorder tees into it when available
	recordingBackend := storageBackend
	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		if _, err := os.Stat(influxCfg.BackupDir); os.IsNotExist(err) {
			os.Mkdir(influxCfg.BackupDir, 0755)
		}
		backupPath := filepath.Join(
			influxCfg.BackupDir,
			fmt.Sprintf("%s.%s.lp.gz", ToolName, SessionStartTime.Format("20060102_150405")),
		)
		influxManager = influx.NewManager(zerologLogger(), backupPath)
		if err := influxManager.Connect(); err != nil {
			Logger.Warn("InfluxDB sink unavailable", "error", err)
			influxManager = nil
		} else {
			recordingBackend = newInfluxTee(storageBackend, influxManager)
		}
	}

	Logger.Debug("Registering worker handlers with dispatcher")
	workerManager = worker.NewManager(worker.Dependencies{
		RunContext: runContext,
		LogManager: SlogManager,
	}, recordingBackend)
	workerManager.RegisterHandlers(eventDispatcher)
	Logger.Info("Worker handlers registered with dispatcher")

	monitorService = monitor.NewService(monitor.Dependencies{
		DB:              monitorDB(),
		LogManager:      SlogManager,
		RunContext:      runContext,
		WorkerManager:   workerManager,
		Dispatcher:      eventDispatcher,
		Influx:          influxManager,
		StatusDir:       viper.GetString("logsDir"),
		IsDatabaseValid: func() bool { return databaseManager != nil && databaseManager.IsValid },
	})
	if !monitorService.IsRunning() {
		Logger.Debug("Status process not running, starting it")
		monitorService.Start()
	}

	// Hypertable setup only applies to a live Postgres connection
	if databaseManager != nil && databaseManager.IsValid && !databaseManager.ShouldSaveLocal {
		err := monitorService.ValidateHypertables(map[string][]string{
			"trajectory_samples":  {"run_id"},
			"engine_performances": {"run_id"},
		})
		if err != nil {
			Logger.Warn("Failed to validate hypertables", "error", err)
		}
	}

	return nil
}

func monitorDB() *gorm.DB {
	if databaseManager == nil {
		return nil
	}
	return databaseManager.DB
}

// checkServerStatus logs whether the trajectory viewer frontend is reachable.
func checkServerStatus() {
	apiCfg := config.GetAPIConfig()
	if err := api.New(apiCfg.ServerURL, apiCfg.APIKey).Healthcheck(); err != nil {
		Logger.Info("Trajectory viewer is offline")
	} else {
		Logger.Info("Trajectory viewer is online")
	}
}

// shutdown stops services and flushes every sink. It is safe to call with
// only setup() done.
func shutdown() {
	if monitorService != nil {
		monitorService.Stop()
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}
	if influxManager != nil {
		influxManager.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if OTelProvider != nil {
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush OTel data", "error", err)
		}
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	SlogManager.Flush(ctx)
	if EngineLogFile != nil {
		EngineLogFile.Close()
	}
}

// readDocument loads a path document from the given file, or from stdin when
// path is empty or "-".
func readDocument(path string) (data []byte, name string, err error) {
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read document from stdin: %w", err)
		}
		return data, "stdin", nil
	}
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read document: %w", err)
	}
	return data, filepath.Base(path), nil
}

func runValidate(args []string) error {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	data, name, err := readDocument(path)
	if err != nil {
		return err
	}

	if _, err := computeService().Validate(data); err != nil {
		return err
	}
	fmt.Printf("%s: OK\n", name)
	return nil
}

func runSchema() error {
	data, err := computeService().Schema()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// simulateArgs holds the parsed simulate command line.
type simulateArgs struct {
	docPath  string
	outPath  string
	pose     string
	polyline string
}

func parseSimulateArgs(args []string) (simulateArgs, error) {
	var sa simulateArgs
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-o":
			if i+1 >= len(args) {
				return simulateArgs{}, fmt.Errorf("-o requires a file path")
			}
			i++
			sa.outPath = args[i]
		case args[i] == "-s":
			if i+1 >= len(args) {
				return simulateArgs{}, fmt.Errorf("-s requires a start pose")
			}
			i++
			sa.pose = args[i]
		case args[i] == "-p":
			if i+1 >= len(args) {
				return simulateArgs{}, fmt.Errorf("-p requires a polyline")
			}
			i++
			sa.polyline = args[i]
		case strings.HasPrefix(args[i], "-") && args[i] != "-":
			return simulateArgs{}, fmt.Errorf("unknown flag %q", args[i])
		case sa.docPath == "":
			sa.docPath = args[i]
		default:
			return simulateArgs{}, fmt.Errorf("unexpected argument %q", args[i])
		}
	}
	if sa.polyline != "" && sa.docPath != "" {
		return simulateArgs{}, fmt.Errorf("-p replaces the document argument")
	}
	return sa, nil
}

// polylineDocument builds a document running straight through the given
// points: every point becomes a translation target with the default handoff
// radius, under the default constraints.
func polylineDocument(points []core.Point, defaults core.ConstraintSet, radius float64) core.Document {
	els := make([]core.PathElement, len(points))
	for i, p := range points {
		els[i] = core.TranslationTarget{Position: p, HandoffRadius: radius}
	}
	return core.Document{
		Path:        core.Path{Elements: els},
		Constraints: defaults,
	}
}

func runSimulate(args []string) error {
	sa, err := parseSimulateArgs(args)
	if err != nil {
		return err
	}

	var data []byte
	var name string
	if sa.polyline != "" {
		points, err := geo.ParsePolylinePoints(sa.polyline)
		if err != nil {
			return fmt.Errorf("invalid polyline: %w", err)
		}
		defaults, radius := config.GetConstraintDefaults()
		data, err = newCodec().Encode(polylineDocument(points, defaults, radius))
		if err != nil {
			return fmt.Errorf("failed to encode polyline document: %w", err)
		}
		name = "polyline"
	} else {
		data, name, err = readDocument(sa.docPath)
		if err != nil {
			return err
		}
	}

	opts := handlers.Options{}
	if sa.pose != "" {
		pose, err := geo.PoseFromString(sa.pose)
		if err != nil {
			return fmt.Errorf("invalid start pose %q: %w", sa.pose, err)
		}
		opts.StartPose = &pose
	}

	if err := startServices(); err != nil {
		return err
	}
	checkServerStatus()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := handlerService.Simulate(ctx, name, data, opts)
	if err != nil {
		return err
	}
	Logger.Info("Run finished",
		"document", name,
		"outcome", result.Outcome.String(),
		"iterations", result.Iterations,
		"duration", result.Duration,
	)

	output, err := project.EncodeResult(result)
	if err != nil {
		return fmt.Errorf("failed to encode trajectory: %w", err)
	}
	if sa.outPath != "" {
		if err := os.WriteFile(sa.outPath, output, 0644); err != nil {
			return fmt.Errorf("failed to write trajectory: %w", err)
		}
		Logger.Info("Trajectory written", "path", sa.outPath)
	} else {
		fmt.Println(string(output))
	}

	uploadExport()
	return nil
}

// uploadExport pushes the recorded export to the trajectory viewer. Only the
// memory backend produces an uploadable file, and only a configured API key
// authorizes the upload.
func uploadExport() {
	up, ok := storageBackend.(storage.Uploadable)
	if !ok {
		return
	}
	exportPath := up.GetExportedFilePath()
	if exportPath == "" {
		return
	}
	apiCfg := config.GetAPIConfig()
	if apiCfg.APIKey == "" {
		Logger.Debug("No API key configured, skipping export upload")
		return
	}

	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	if err := client.Upload(exportPath, up.GetExportMetadata()); err != nil {
		Logger.Warn("Failed to upload run export", "error", err)
		return
	}
	Logger.Info("Run export uploaded", "path", exportPath)
}
