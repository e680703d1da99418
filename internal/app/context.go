package app

import (
	"fmt"
	"io"

	"github.com/RyanBlaney/eeg-capture/configs"
	"github.com/RyanBlaney/eeg-capture/pkg/device"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
	"github.com/RyanBlaney/eeg-capture/pkg/storage"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	ConfigFile   string
	OutputFile   string
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Stdout receives formatted results when OutputFile is empty
	Stdout io.Writer

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
}

// App handles the application lifecycle shared by every command
type App struct {
	ctx     *Context
	config  *configs.Config
	logger  logging.Logger
	store   *storage.FolderStore
	devices *device.Factory
}

// NewApp creates a new application. A Context with a preset Config skips
// loading configuration from viper.
func NewApp(ctx *Context) (*App, error) {
	config := ctx.Config
	if config == nil {
		var err error
		config, err = loadAndMergeConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		ctx.Config = config
	}

	logger := ctx.Logger
	if logger == nil {
		var err error
		logger, err = setupLogging(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to set up logging: %w", err)
		}
		ctx.Logger = logger
	}

	logger.Debug("Application initialized", logging.Fields{
		"config_file":   ctx.ConfigFile,
		"output_format": ctx.OutputFormat,
		"output_dir":    config.Recording.OutputDir,
	})

	return &App{
		ctx:     ctx,
		config:  config,
		logger:  logger,
		store:   storage.NewFolderStore(logger.WithFields(logging.Fields{"component": "folder_store"})),
		devices: device.NewFactory(),
	}, nil
}

// Config returns the merged configuration.
func (app *App) Config() *configs.Config {
	return app.config
}

// Devices returns the device factory so callers can register transports.
func (app *App) Devices() *device.Factory {
	return app.devices
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context, config *configs.Config) (logging.Logger, error) {
	level := config.LogLevel
	switch {
	case ctx.Quiet:
		level = "error"
	case ctx.Verbose || config.Verbose:
		level = "debug"
	}

	logger, err := logging.New(logging.Options{Level: level, Format: config.LogFormat})
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return logger, nil
}

// loadAndMergeConfig loads configuration and applies CLI overrides
func loadAndMergeConfig(ctx *Context) (*configs.Config, error) {
	config, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load base configuration: %w", err)
	}

	if ctx.OutputFormat != "" {
		config.OutputFormat = ctx.OutputFormat
	}
	if ctx.Verbose {
		config.Verbose = true
	}

	if err := configs.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
