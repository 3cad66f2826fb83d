package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stockpulse/stockpulse/internal/alerter"
	"github.com/stockpulse/stockpulse/internal/api"
	"github.com/stockpulse/stockpulse/internal/command"
	"github.com/stockpulse/stockpulse/internal/config"
	"github.com/stockpulse/stockpulse/internal/hub"
	"github.com/stockpulse/stockpulse/internal/inventory"
	"github.com/stockpulse/stockpulse/internal/monitor"
	"github.com/stockpulse/stockpulse/internal/notifier"
	"github.com/stockpulse/stockpulse/internal/store"
	"github.com/stockpulse/stockpulse/internal/version"
)

func main() {
	configPath := flag.String("config", "/config/stockpulse.yaml", "Path to configuration file")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	// Capture recent log lines for the /api/logs endpoint.
	logBuffer := api.NewLogBuffer(1000)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	logger := zerolog.New(multiWriter).With().
		Timestamp().
		Str("version", version.GetVersion()).
		Logger()

	logger.Info().Msg("Starting StockPulse")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("config_path", *configPath).Msg("Failed to load configuration")
	}

	logger.Info().
		Int("channel_count", len(cfg.Channels)).
		Dur("default_interval", cfg.Monitoring.DefaultInterval).
		Msg("Configuration loaded")

	// Inventory and alert log share one database. An empty DSN runs the
	// alert cache in memory only and disables the monitoring loops'
	// stock source, but never prevents the service from starting.
	var (
		alertLog store.AlertLog
		stock    *inventory.GormStore
	)
	if cfg.Store.DSN != "" {
		db, err := gorm.Open(sqlite.Open(cfg.Store.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			logger.Error().Err(err).Str("dsn", cfg.Store.DSN).
				Msg("Failed to open database, degrading to in-memory operation")
		} else {
			gl, err := store.NewGormLog(db)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to prepare alert log, degrading to in-memory operation")
			} else {
				alertLog = gl
			}
			gs, err := inventory.NewGormStore(db)
			if err != nil {
				logger.Error().Err(err).Msg("Failed to prepare inventory reader")
			} else {
				stock = gs
			}
		}
	} else {
		logger.Warn().Msg("No store DSN configured, alerts are in-memory only")
	}

	var forecaster inventory.Forecaster = inventory.NoForecaster{}
	if cfg.Forecast.URL != "" {
		forecaster = inventory.NewHTTPForecaster(cfg.Forecast.URL, cfg.Forecast.Timeout)
	}

	alertStore := store.NewAlertStore(alertLog, logger)
	broadcastHub := hub.New(logger)
	router := notifier.NewRouter(cfg.Channels, logger)
	engine := alerter.NewEngine(alertStore, broadcastHub, router,
		cfg.Alerts.EscalationTimeout, cfg.Alerts.RetentionWindow, logger)
	sweeper := alerter.NewSweeper(engine,
		cfg.Alerts.EscalationSweepInterval, cfg.Alerts.RetentionSweepInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go alertStore.Run(ctx)
	go sweeper.Run(ctx)

	var scheduler *monitor.Scheduler
	if stock != nil {
		scheduler = monitor.NewScheduler(engine, stock, forecaster, cfg.Monitoring, cfg.Forecast.DaysAhead, logger)
		detector := monitor.NewAnomalyDetector(engine, stock, stock, forecaster,
			cfg.Anomaly, cfg.Monitoring.CallTimeout, logger)
		go detector.Run(ctx)
	} else {
		// Monitoring needs a stock source; keep the alert surface alive
		// regardless so API-raised alerts still flow.
		scheduler = monitor.NewScheduler(engine, unavailableReader{}, forecaster, cfg.Monitoring, cfg.Forecast.DaysAhead, logger)
		logger.Warn().Msg("No inventory source available, monitoring ticks will be skipped")
	}

	registry := command.NewRegistry(scheduler, engine)
	server := api.NewServer(registry, scheduler, engine, broadcastHub, logBuffer, cfg.Server.Port, logger)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	cancel()
	scheduler.StopAll()
	logger.Info().Msg("Shutdown complete")
}

// unavailableReader stands in when no inventory database is configured.
type unavailableReader struct{}

func (unavailableReader) Get(context.Context, string) (inventory.ItemLevel, error) {
	return inventory.ItemLevel{}, inventory.ErrNotFound
}
