package startup

import (
	"fmt"
	"io"

	"github.com/hurricanerix/signchat/internal/config"
	"github.com/hurricanerix/signchat/internal/conversation"
	"github.com/hurricanerix/signchat/internal/generation"
	"github.com/hurricanerix/signchat/internal/image"
	"github.com/hurricanerix/signchat/internal/logging"
	"github.com/hurricanerix/signchat/internal/metrics"
	"github.com/hurricanerix/signchat/internal/submission"
	"github.com/hurricanerix/signchat/internal/web"
)

// Components holds all initialized application components
type Components struct {
	Generator    generation.Generator
	ImageStorage *image.Storage
	Metrics      *metrics.Collector
	WebServer    *web.Server
	Logger       *logging.Logger
}

// CreateLogger creates a logger with the configured log level.
// If output is nil, os.Stderr is used.
func CreateLogger(cfg *config.Config, output io.Writer) *logging.Logger {
	return logging.NewFromString(cfg.LogLevel, output)
}

// CreateGenerator returns the in-process mock when cfg.Mock is set and an
// HTTP client for the hosted function otherwise.
// It does NOT validate the connection - use ValidateGenerationService() separately.
func CreateGenerator(cfg *config.Config) generation.Generator {
	if cfg.Mock {
		return generation.NewMock(cfg.MockDelay)
	}
	return generation.NewClientWithConfig(cfg.GenerationURL, cfg.Function, cfg.APIKey, cfg.Timeout)
}

// CreateController creates a controller over a fresh conversation. Used by
// the terminal front ends, which hold a single conversation.
func CreateController(cfg *config.Config, gen generation.Generator, logger *logging.Logger) *submission.Controller {
	return submission.New(conversation.NewStore(), gen, submission.Options{
		MaxChars:      cfg.MaxChars,
		WarnThreshold: cfg.WarnThreshold,
		Logger:        logger,
	})
}

// CreateWebServer creates the HTTP server with all dependencies wired
func CreateWebServer(cfg *config.Config, gen generation.Generator, images *image.Storage, collector *metrics.Collector, logger *logging.Logger) (*web.Server, error) {
	server, err := web.NewServer(web.Options{
		Addr:           cfg.Addr(),
		Generator:      gen,
		Images:         images,
		Metrics:        collector,
		Logger:         logger,
		MaxChars:       cfg.MaxChars,
		WarnThreshold:  cfg.WarnThreshold,
		SessionTimeout: cfg.SessionTimeout,
		MaxSessions:    cfg.MaxSessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create web server: %w", err)
	}

	return server, nil
}

// InitializeAll creates and initializes all components the web front end
// needs. It does NOT validate dependencies - validation should be done separately.
func InitializeAll(cfg *config.Config, logger *logging.Logger) (*Components, error) {
	logger.Debug("Initializing components")

	gen := CreateGenerator(cfg)
	if cfg.Mock {
		logger.Debug("Created mock generator: delay=%s", cfg.MockDelay)
	} else {
		logger.Debug("Created generation client: url=%s, function=%s", cfg.GenerationURL, cfg.Function)
	}

	images := image.NewStorage()
	collector := metrics.New()

	webServer, err := CreateWebServer(cfg, gen, images, collector, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("Created web server on %s", cfg.Addr())

	return &Components{
		Generator:    gen,
		ImageStorage: images,
		Metrics:      collector,
		WebServer:    webServer,
		Logger:       logger,
	}, nil
}
