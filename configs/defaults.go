package configs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/eeg-capture/pkg/device"
	"github.com/RyanBlaney/eeg-capture/pkg/filter"
	"github.com/RyanBlaney/eeg-capture/pkg/window"
)

// ApplyDefaults fills every unset key of v with its default value.
func ApplyDefaults(v *viper.Viper) {
	setDefaults(v)
}

// setDefaults sets default configuration values for all components
func setDefaults(v *viper.Viper) {
	if !v.IsSet("log_level") {
		v.SetDefault("log_level", "info")
	}
	if !v.IsSet("log_format") {
		v.SetDefault("log_format", "console")
	}
	if !v.IsSet("output_format") {
		v.SetDefault("output_format", "json")
	}

	// Recording defaults
	if !v.IsSet("recording.output_dir") {
		v.SetDefault("recording.output_dir", defaultOutputDir())
	}
	if !v.IsSet("recording.duration") {
		v.SetDefault("recording.duration", "60s")
	}
	if !v.IsSet("recording.tick") {
		v.SetDefault("recording.tick", "1s")
	}
	if !v.IsSet("recording.export_edf") {
		v.SetDefault("recording.export_edf", false)
	}

	// Synthetic device defaults
	if !v.IsSet("synthetic.sample_rate") {
		v.SetDefault("synthetic.sample_rate", 256.0)
	}
	if !v.IsSet("synthetic.channels") {
		v.SetDefault("synthetic.channels", device.MuseChannels)
	}
	if !v.IsSet("synthetic.non_data_channels") {
		v.SetDefault("synthetic.non_data_channels", []string{"Right AUX"})
	}
	if !v.IsSet("synthetic.frequencies") {
		v.SetDefault("synthetic.frequencies", []float64{10})
	}
	if !v.IsSet("synthetic.amplitude") {
		v.SetDefault("synthetic.amplitude", 50.0)
	}
	if !v.IsSet("synthetic.batch_size") {
		v.SetDefault("synthetic.batch_size", 12)
	}
	if !v.IsSet("synthetic.noise") {
		v.SetDefault("synthetic.noise", 5.0)
	}

	// Windowing defaults
	if !v.IsSet("windowing.window_length") {
		v.SetDefault("windowing.window_length", window.DefaultLength)
	}
	if !v.IsSet("windowing.tile_count") {
		v.SetDefault("windowing.tile_count", window.DefaultTiles)
	}

	// Spectral defaults
	if !v.IsSet("spectral.sample_rate") {
		v.SetDefault("spectral.sample_rate", 256.0)
	}
	if !v.IsSet("spectral.candidate_frequencies") {
		v.SetDefault("spectral.candidate_frequencies", []float64{8.57, 10, 12, 15})
	}
	if !v.IsSet("spectral.workers") {
		v.SetDefault("spectral.workers", 4)
	}

	// Filter defaults
	spec := filter.DefaultSpec()
	if !v.IsSet("filter.enabled") {
		v.SetDefault("filter.enabled", false)
	}
	if !v.IsSet("filter.low_cut") {
		v.SetDefault("filter.low_cut", spec.LowCut)
	}
	if !v.IsSet("filter.high_cut") {
		v.SetDefault("filter.high_cut", spec.HighCut)
	}
	if !v.IsSet("filter.notch") {
		v.SetDefault("filter.notch", spec.Notch)
	}
	if !v.IsSet("filter.q") {
		v.SetDefault("filter.q", spec.NotchQ)
	}
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "recordings"
	}
	return filepath.Join(home, ".local", "share", "eeg-capture", "recordings")
}

// GetDefaultConfig returns a Config struct with all default values set
func GetDefaultConfig() *Config {
	spec := filter.DefaultSpec()

	return &Config{
		LogLevel:     "info",
		LogFormat:    "console",
		OutputFormat: "json",

		Recording: RecordingConfig{
			OutputDir: defaultOutputDir(),
			Duration:  60 * time.Second,
			Tick:      time.Second,
		},

		Synthetic: device.SyntheticConfig{
			SampleRate:      256,
			Channels:        append([]string(nil), device.MuseChannels...),
			NonDataChannels: []string{"Right AUX"},
			Frequencies:     []float64{10},
			Amplitude:       50,
			BatchSize:       12,
			Noise:           5,
		},

		Windowing: WindowingConfig{
			WindowLength: window.DefaultLength,
			TileCount:    window.DefaultTiles,
		},

		Spectral: SpectralConfig{
			SampleRate:           256,
			CandidateFrequencies: []float64{8.57, 10, 12, 15},
			Workers:              4,
		},

		Filter: FilterConfig{
			LowCut:  spec.LowCut,
			HighCut: spec.HighCut,
			Notch:   spec.Notch,
			Q:       spec.NotchQ,
		},
	}
}
