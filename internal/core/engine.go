package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Engine orchestrates the event bus and the registered analytic modules.
// All state lives inside the engine instance; there are no package-level
// singletons, so tests can construct and tear down engines freely.
type Engine struct {
	Config   *Config
	Bus      *EventBus
	Registry *ModuleRegistry
	Logger   zerolog.Logger

	ingest func(entry *LogEntry)
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLogger builds a zerolog.Logger from the logging config.
func NewLogger(cfg *Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Logging.Format == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}

	switch cfg.LogLevel() {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "warn":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}

// NewEngine creates a new CyberGuard engine.
func NewEngine(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := NewLogger(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		Config:   cfg,
		Registry: NewModuleRegistry(logger),
		Logger:   logger.With().Str("component", "engine").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// SetIngestHandler sets the function that receives log entries arriving on
// the bus. Wired to the detection engine's AnalyzeLogEntry by the caller.
func (e *Engine) SetIngestHandler(fn func(entry *LogEntry)) {
	e.ingest = fn
}

// Start initializes the event bus, starts all modules, and begins
// consuming ingested log entries.
func (e *Engine) Start() error {
	e.Logger.Info().Msg("starting cyberguard engine")

	bus, err := NewEventBus(&e.Config.Bus, e.Logger)
	if err != nil {
		return fmt.Errorf("starting event bus: %w", err)
	}
	e.Bus = bus

	if err := e.Registry.StartAll(e.ctx, e.Bus, e.Config); err != nil {
		return fmt.Errorf("starting modules: %w", err)
	}

	if e.ingest != nil {
		if err := e.Bus.SubscribeToLogEntries(e.ingest); err != nil {
			return fmt.Errorf("subscribing to log entries: %w", err)
		}
	}

	e.Logger.Info().
		Int("modules", e.Registry.Count()).
		Msg("cyberguard engine started")

	return nil
}

// Run starts the engine and blocks until a shutdown signal is received.
func (e *Engine) Run() error {
	if err := e.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		e.Logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-e.ctx.Done():
		e.Logger.Info().Msg("context cancelled")
	}

	return e.Shutdown()
}

// Shutdown gracefully stops the engine.
func (e *Engine) Shutdown() error {
	e.Logger.Info().Msg("shutting down cyberguard engine")
	e.cancel()

	e.Registry.StopAll()

	if e.Bus != nil {
		if err := e.Bus.Close(); err != nil {
			e.Logger.Error().Err(err).Msg("error closing event bus")
		}
	}

	e.Logger.Info().Msg("cyberguard engine stopped")
	return nil
}

// Context returns the engine's context.
func (e *Engine) Context() context.Context {
	return e.ctx
}
