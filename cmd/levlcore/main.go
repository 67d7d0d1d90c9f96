// Levl Core - local automation daemon
//
// This is the main entry point for the Levl Core daemon. Levl Core
// glues a creative tool stack together:
//   - Unreal Engine (file-drop bridge to an editor watcher)
//   - ComfyUI (HTTP/WebSocket client, optionally a managed process)
//   - Blender (headless scene builds)
//   - Hunyuan-GameCraft (torchrun world generation)
//   - ffmpeg/ffprobe (video frame analysis)
//
// Jobs are tracked in SQLite, state changes fan out over MQTT and the
// WebSocket hub, and timings land in InfluxDB when enabled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/levlstudio/levl-core/migrations"

	"github.com/levlstudio/levl-core/internal/api"
	"github.com/levlstudio/levl-core/internal/bridge"
	"github.com/levlstudio/levl-core/internal/comfy"
	"github.com/levlstudio/levl-core/internal/comfyd"
	"github.com/levlstudio/levl-core/internal/events"
	"github.com/levlstudio/levl-core/internal/infrastructure/config"
	"github.com/levlstudio/levl-core/internal/infrastructure/database"
	"github.com/levlstudio/levl-core/internal/infrastructure/influxdb"
	"github.com/levlstudio/levl-core/internal/infrastructure/logging"
	"github.com/levlstudio/levl-core/internal/infrastructure/mqtt"
	"github.com/levlstudio/levl-core/internal/job"
	"github.com/levlstudio/levl-core/internal/orchestrator"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Load .env before anything reads the environment; a missing file
	// is not an error.
	godotenv.Load() //nolint:errcheck

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Levl Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise job tracker
	jobRepo := job.NewSQLiteRepository(db.DB)
	tracker := job.NewTracker(jobRepo)
	tracker.SetLogger(log)
	if refreshErr := tracker.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading job cache: %w", refreshErr)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Event emitter fans job state out to MQTT and InfluxDB.
	// Typed-nil sinks must not reach the interface fields.
	var brokerSink events.Broker
	if mqttClient != nil {
		brokerSink = mqttClient
	}
	var metricsSink events.MetricsWriter
	if influxClient != nil {
		metricsSink = influxClient
	}
	emitter := events.NewEmitter(brokerSink, metricsSink)
	emitter.SetLogger(log)

	// Open the Unreal bridge queue
	queue, err := bridge.NewQueue(cfg.Bridge.Root, cfg.Bridge.PollInterval)
	if err != nil {
		return fmt.Errorf("opening bridge queue: %w", err)
	}
	log.Info("bridge queue ready", "root", queue.Root())

	// Serve local tool actions on the bridge (optional)
	if cfg.Bridge.ServeLocal {
		dispatcher, dispErr := buildLocalDispatcher(cfg, queue, log)
		if dispErr != nil {
			return fmt.Errorf("building local dispatcher: %w", dispErr)
		}
		go func() {
			if runErr := dispatcher.Run(ctx); runErr != nil && ctx.Err() == nil {
				log.Error("local dispatcher stopped", "error", runErr)
			}
		}()
		log.Info("local dispatcher serving", "actions", dispatcher.Actions())
	}

	// ComfyUI client, optionally with a managed server process
	comfyClient := comfy.NewClient(cfg.ComfyBaseURL())
	comfyClient.SetLogger(log)

	var comfyManager *comfyd.Manager
	if cfg.Comfy.Server.Managed {
		comfyManager, err = startComfyd(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("starting ComfyUI: %w", err)
		}
		defer func() {
			log.Info("stopping ComfyUI")
			if stopErr := comfyManager.Stop(); stopErr != nil {
				log.Error("error stopping ComfyUI", "error", stopErr)
			}
		}()
		comfyClient = comfyManager.Client()
	}

	// Orchestrator runs the one-click flow
	orch := orchestrator.New(queue, comfyClient, tracker, orchestrator.Config{
		WorkflowPath:    cfg.Comfy.DefaultWorkflow,
		OutputDir:       cfg.Comfy.OutputDir,
		ResultTimeout:   cfg.Bridge.ResultTimeout,
		MonitorProgress: true,
	})
	orch.SetLogger(log)

	// API server
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Orch:    orch,
		Tracker: tracker,
		Comfyd:  comfyManagerOrNil(comfyManager),
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Fan job and pipeline events out to MQTT, InfluxDB, and WebSocket
	orch.SetEvents(&eventFanout{emitter: emitter, server: apiServer})
	tracker.SetListener(func(j *job.Job) {
		emitter.JobChanged(j)
		apiServer.BroadcastJob(j)
	})

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Drain in-flight orchestrator flows before tearing down clients
	drained := make(chan struct{})
	go func() {
		orch.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(30 * time.Second):
		log.Warn("shutdown proceeding with flows still in flight")
	}

	log.Info("Levl Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LEVLCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LEVLCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// comfyManagerOrNil avoids storing a typed nil in the API's interface field.
func comfyManagerOrNil(m *comfyd.Manager) api.ComfyManager {
	if m == nil {
		return nil
	}
	return m
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// startComfyd initialises and starts the managed ComfyUI server.
//
// Parameters:
//   - ctx: Context for startup/cancellation
//   - cfg: Application configuration
//   - log: Logger instance
//
// Returns:
//   - *comfyd.Manager: Running ComfyUI manager
//   - error: If ComfyUI fails to start or become ready
func startComfyd(ctx context.Context, cfg *config.Config, log *logging.Logger) (*comfyd.Manager, error) {
	manager, err := comfyd.NewManager(comfyd.Config{
		Managed:             cfg.Comfy.Server.Managed,
		Python:              cfg.Comfy.Server.Python,
		Dir:                 cfg.Comfy.Server.Dir,
		Host:                cfg.Comfy.Host,
		Port:                cfg.Comfy.Port,
		OutputDir:           cfg.Comfy.OutputDir,
		StartupTimeout:      cfg.Comfy.Server.StartupTimeout,
		RestartOnFailure:    cfg.Comfy.Server.RestartOnFailure,
		RestartDelay:        time.Duration(cfg.Comfy.Server.RestartDelaySeconds) * time.Second,
		MaxRestartAttempts:  cfg.Comfy.Server.MaxRestartAttempts,
		HealthCheckInterval: cfg.Comfy.Server.HealthCheckInterval,
	})
	if err != nil {
		return nil, err
	}
	manager.SetLogger(log)

	if err := manager.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("ComfyUI managed server ready", "url", manager.Client().BaseURL())
	return manager, nil
}

// eventFanout forwards orchestrator events to the MQTT/InfluxDB emitter
// and the WebSocket hub.
type eventFanout struct {
	emitter *events.Emitter
	server  *api.Server
}

func (f *eventFanout) PipelineStage(pipelineID, stage, status string) {
	f.emitter.PipelineStage(pipelineID, stage, status)
	if hub := f.server.Hub(); hub != nil {
		hub.Broadcast(api.ChannelPipelineStage, map[string]interface{}{
			"pipeline": pipelineID,
			"stage":    stage,
			"status":   status,
		})
	}
}

func (f *eventFanout) ComfyProgress(promptID string, value, max int) {
	f.emitter.ComfyProgress(promptID, value, max)
	if hub := f.server.Hub(); hub != nil {
		hub.Broadcast(api.ChannelComfyProgress, map[string]interface{}{
			"prompt_id": promptID,
			"value":     value,
			"max":       max,
		})
	}
}

func (f *eventFanout) QueueDepth(inbox, outbox int) {
	f.emitter.QueueDepth(inbox, outbox)
}
