package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/kritchai/factorysim/internal/api/handler"
	"github.com/kritchai/factorysim/internal/api/router"
	"github.com/kritchai/factorysim/internal/config"
	"github.com/kritchai/factorysim/internal/control"
	"github.com/kritchai/factorysim/internal/events"
	"github.com/kritchai/factorysim/internal/sim"
	"github.com/kritchai/factorysim/internal/store"
	"github.com/kritchai/factorysim/shared/amqp"
	"github.com/kritchai/factorysim/shared/logger"
	"github.com/kritchai/factorysim/shared/sqlite"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("SIM_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/sim-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	presetName := flag.String("preset", "", "Named parameter preset (high-volume, precision, cost-optimized, flexible)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *presetName != "" {
		preset, ok := config.PresetByName(*presetName)
		if !ok {
			return fmt.Errorf("unknown preset %q", *presetName)
		}
		cfg.ApplyPreset(preset)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting simulation service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize the run archive if enabled
	var runStore *store.Store
	var dbClient *sqlite.Client
	if cfg.Store.Enabled {
		dbClient, err = sqlite.NewClient(&sqlite.Config{
			Path: cfg.Store.Path,
		}, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to open run archive: %w", err)
		}

		runStore = store.NewStore(dbClient)
		if err := runStore.Migrate(context.Background()); err != nil {
			return fmt.Errorf("failed to migrate run archive: %w", err)
		}

		appLogger.Info("Run archive ready", slog.String("path", cfg.Store.Path))
	}

	// Initialize the event publisher if enabled
	var emitter *events.Emitter
	var publisher *amqp.Publisher
	if cfg.Events.Enabled {
		publisher, err = initPublisher(&cfg.Events, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize event publisher: %w", err)
		}

		emitter = events.NewEmitter(publisher, appLogger.Logger)
		appLogger.Info("Event publisher connected",
			slog.String("exchange", cfg.Events.Exchange.Name),
		)
	}

	// Build the simulation core
	factory := sim.NewFactory(buildParams(cfg), rand.New(rand.NewSource(time.Now().UnixNano())))
	manager := sim.NewManager(factory, cfg.Simulation.HistorySize, cfg.Simulation.SampleInterval)
	manager.SetSpeed(cfg.Simulation.SpeedFactor)

	controller := control.NewController(&control.Config{
		Logger:   appLogger.Logger,
		Factory:  factory,
		Manager:  manager,
		Emitter:  emitter,
		Store:    runStore,
		TickRate: cfg.Simulation.TickRate,
		MaxStep:  cfg.Simulation.MaxStep.Std(),
	})

	if err := seedFactory(controller, &cfg.Factory); err != nil {
		return fmt.Errorf("failed to seed factory: %w", err)
	}

	// Drive the stepping loop until shutdown
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go func() {
		if err := controller.Run(loopCtx); err != nil {
			appLogger.Error("Simulation loop stopped",
				slog.Any("error", err),
			)
		}
	}()

	// Initialize router
	r := initRouter(cfg.App.Environment, appLogger.Logger, controller, runStore)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout.Std()),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout.Std()),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Simulation service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())

	// Cleanup function to close all resources
	cleanup := func() {
		cancel()
		stopLoop()
		controller.Stop(context.Background())
		if dbClient != nil {
			dbClient.Close()
		}
		if publisher != nil {
			publisher.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPublisher initializes the AMQP event publisher
func initPublisher(cfg *config.EventsConfig, logger *slog.Logger) (*amqp.Publisher, error) {
	publisherConfig := &amqp.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval.Std(),
		Heartbeat:          cfg.Connection.Heartbeat.Std(),
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout.Std(),
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval.Std(),
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return amqp.NewPublisher(publisherConfig, logger)
}

// buildParams maps the configuration sections onto the simulation
// parameter set
func buildParams(cfg *config.Config) sim.Params {
	params := sim.DefaultParams()
	params.Quality = sim.QualityParams{
		DefectRate:          cfg.Quality.DefectRate,
		ReworkRate:          cfg.Quality.ReworkRate,
		DowntimeRate:        cfg.Quality.DowntimeRate,
		MeanDowntimeMinutes: cfg.Quality.MeanDowntimeMinutes,
	}
	params.Costs = sim.CostParams{
		MaterialPerPiece: cfg.Costs.MaterialPerPiece,
		DefectPerPiece:   cfg.Costs.DefectPerPiece,
		MachinePerHour:   cfg.Costs.MachinePerHour,
		LaborPerHour:     cfg.Costs.LaborPerHour,
		OverheadPerHour:  cfg.Costs.OverheadPerHour,
	}
	if cfg.Simulation.TargetThroughput > 0 {
		params.TargetThroughput = cfg.Simulation.TargetThroughput
	}
	if cfg.Simulation.BufferCapacity > 0 {
		params.BufferCapacity = cfg.Simulation.BufferCapacity
	}
	return params
}

// seedFactory populates the floor from the configured machines, lines
// and initial jobs
func seedFactory(controller *control.Controller, cfg *config.FactoryConfig) error {
	for _, seed := range cfg.Machines {
		err := controller.AddMachine(sim.MachineSpec{
			Name:      seed.Name,
			Type:      seed.Type,
			BaseTime:  seed.BaseTime,
			SetupTime: seed.SetupTime,
			Capacity:  seed.Capacity,
		})
		if err != nil {
			return fmt.Errorf("machine %q: %w", seed.Name, err)
		}
	}

	for _, seed := range cfg.Lines {
		if _, err := controller.AddProductionLine(seed.Name, seed.Machines); err != nil {
			return fmt.Errorf("line %q: %w", seed.Name, err)
		}
	}

	for i, seed := range cfg.Jobs {
		priority, err := control.ParsePriority(seed.Priority)
		if err != nil {
			return fmt.Errorf("job %d: %w", i, err)
		}
		if _, err := controller.CreateJob(seed.BatchSize, seed.Machines, priority); err != nil {
			return fmt.Errorf("job %d: %w", i, err)
		}
	}

	return nil
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, logger *slog.Logger, controller *control.Controller, runStore *store.Store) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize handler dependencies
	handlerDeps := &handler.Dependencies{
		Logger:     logger,
		Controller: controller,
		Store:      runStore,
	}

	// Setup router
	return router.SetupRouter(handlerDeps)
}
