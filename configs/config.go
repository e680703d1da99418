package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/eeg-capture/pkg/device"
	"github.com/RyanBlaney/eeg-capture/pkg/filter"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
	OutputFormat string `mapstructure:"output_format"`

	// Recording session configuration
	Recording RecordingConfig `mapstructure:"recording"`

	// Device selection
	Device DeviceConfig `mapstructure:"device"`

	// Generated signal used when no device descriptor is given
	Synthetic device.SyntheticConfig `mapstructure:"synthetic"`

	// Window extraction
	Windowing WindowingConfig `mapstructure:"windowing"`

	// Spectral analysis
	Spectral SpectralConfig `mapstructure:"spectral"`

	// Window filtering
	Filter FilterConfig `mapstructure:"filter"`
}

// RecordingConfig contains capture session settings
type RecordingConfig struct {
	OutputDir    string        `mapstructure:"output_dir"`
	Duration     time.Duration `mapstructure:"duration"`
	Tick         time.Duration `mapstructure:"tick"`
	DropChannels []string      `mapstructure:"drop_channels"`
	ExportEDF    bool          `mapstructure:"export_edf"`
}

// DeviceConfig selects the device to record from
type DeviceConfig struct {
	File string `mapstructure:"file"`
	Kind string `mapstructure:"kind"`
}

// WindowingConfig contains window extraction settings
type WindowingConfig struct {
	WindowLength int `mapstructure:"window_length"`
	TileCount    int `mapstructure:"tile_count"`
}

// SpectralConfig contains FFT and classification settings
type SpectralConfig struct {
	SampleRate           float64   `mapstructure:"sample_rate"`
	CandidateFrequencies []float64 `mapstructure:"candidate_frequencies"`
	Workers              int       `mapstructure:"workers"`
}

// FilterConfig contains bandpass and notch settings
type FilterConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	LowCut  float64 `mapstructure:"low_cut"`
	HighCut float64 `mapstructure:"high_cut"`
	Notch   float64 `mapstructure:"notch"`
	Q       float64 `mapstructure:"q"`
}

// Spec converts the filter settings to a filter spec at the given rate.
func (f FilterConfig) Spec(sampleRate float64) filter.Spec {
	return filter.Spec{
		SampleRate: sampleRate,
		LowCut:     f.LowCut,
		HighCut:    f.HighCut,
		Notch:      f.Notch,
		NotchQ:     f.Q,
	}
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Recording.Duration <= 0 {
		return fmt.Errorf("recording duration must be positive")
	}

	if config.Recording.Tick <= 0 {
		return fmt.Errorf("recording tick must be positive")
	}

	if config.Windowing.WindowLength <= 0 {
		return fmt.Errorf("window length must be positive")
	}

	if config.Windowing.TileCount <= 0 {
		return fmt.Errorf("tile count must be positive")
	}

	if config.Spectral.SampleRate <= 0 {
		return fmt.Errorf("spectral sample rate must be positive")
	}

	if config.Spectral.Workers <= 0 {
		return fmt.Errorf("spectral workers must be positive")
	}

	if config.Synthetic.SampleRate < 0 {
		return fmt.Errorf("synthetic sample rate cannot be negative")
	}

	switch config.OutputFormat {
	case "", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format: %s", config.OutputFormat)
	}

	if config.Filter.Enabled {
		if err := config.Filter.Spec(config.Spectral.SampleRate).Validate(); err != nil {
			return fmt.Errorf("invalid filter settings: %w", err)
		}
	}

	return nil
}
