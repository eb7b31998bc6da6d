// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "dive-service/docs"
	"dive-service/internal/catalog"
	"dive-service/internal/config"
	"dive-service/internal/database"
	"dive-service/internal/discovery"
	"dive-service/internal/discovery/bluez"
	serialscan "dive-service/internal/discovery/serial"
	usbscan "dive-service/internal/discovery/usb"
	"dive-service/internal/driver"
	"dive-service/internal/handler"
	"dive-service/internal/protocol"
	"dive-service/internal/repository"
	"dive-service/internal/routes"
	"dive-service/internal/service"
	"dive-service/internal/session"
	"dive-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	catalog        *catalog.Catalog
	scanners       *discovery.ScannerManager
	adapter        service.AdapterChecker
	driverRegistry *driver.Registry
	manager        *session.Manager
	eventBus       *handler.EventBus

	diveRepo      repository.DiveRepository
	watermarkRepo repository.WatermarkRepository

	diveService *service.DiveComputerService
}

// @title Dive Computer Service API
// @version 1.0.0
// @description Local bridge that discovers dive computers, opens sessions and downloads dive logs

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8085
// @BasePath /api/v1
func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "dive-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()
	app.initializeDiscovery()
	app.initializeSessions()
	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeDatabase sets up database connection and runs migrations
func (app *Application) initializeDatabase() error {
	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	if app.config.Database.AutoMigrate {
		if err := database.NewMigrator(&app.config.Database, app.logger).Up(); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

func (app *Application) initializeRepositories() {
	app.diveRepo = repository.NewDiveRepository(app.database, app.logger)
	app.watermarkRepo = repository.NewWatermarkRepository(app.database, app.logger)

	app.logger.Info("Repositories initialized successfully")
}

// initializeDiscovery registers the configured enumeration sources
func (app *Application) initializeDiscovery() {
	app.scanners = discovery.NewScannerManager(app.logger)

	for _, source := range app.config.Discovery.Sources {
		switch source {
		case "bluetooth":
			scanner := bluez.NewScanner(app.config.Bluetooth.Adapter, app.logger)
			app.adapter = scanner
			app.scanners.RegisterScanner(scanner)
		case "serial":
			app.scanners.RegisterScanner(serialscan.NewScanner(app.logger))
		case "usb":
			app.scanners.RegisterScanner(usbscan.NewScanner(app.logger))
		}
	}

	app.logger.Info("Discovery initialized",
		zap.Strings("sources", app.scanners.GetScannerTypes()),
	)
}

// initializeSessions wires the catalog, transports and drivers into the session manager
func (app *Application) initializeSessions() {
	app.catalog = catalog.New(app.logger)

	app.driverRegistry = driver.NewRegistry(app.logger)
	driver.RegisterDefaultDrivers(app.driverRegistry, app.logger)

	factory := protocol.NewFactory(app.config.Transport, app.config.Bluetooth, app.logger)
	app.manager = session.NewManager(app.scanners, app.catalog, factory, app.driverRegistry, app.logger)

	app.logger.Info("Session manager initialized",
		zap.Int("families", len(app.catalog.Families())),
		zap.Int("registered_drivers", len(app.driverRegistry.ListDrivers())),
	)
}

func (app *Application) initializeServices() {
	app.eventBus = handler.NewEventBus(app.logger)

	app.diveService = service.NewDiveComputerService(app.manager, service.Dependencies{
		Dives:      app.diveRepo,
		Watermarks: app.watermarkRepo,
		Adapter:    app.adapter,
		Families:   app.catalog,
		Publisher:  app.eventBus,
	}, app.config, app.logger)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	router := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.diveService,
		app.eventBus,
	).SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown stops the server, releases the instrument session and closes the database
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "dive-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	if err := app.diveService.Close(); err != nil {
		app.logger.Error("Session release error", zap.Error(err))
	} else {
		app.logger.Info("Instrument session released")
	}

	app.eventBus.Close()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	go app.eventBus.Start()

	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.waitForShutdown()
	return nil
}
