package configs

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsDecode(t *testing.T) {
	v := viper.New()
	v.Set("windowing.window_length", 256)
	ApplyDefaults(v)

	config := &Config{}
	require.NoError(t, v.Unmarshal(config))

	assert.Equal(t, 60*time.Second, config.Recording.Duration)
	assert.Equal(t, time.Second, config.Recording.Tick)
	assert.Equal(t, 256, config.Windowing.WindowLength, "explicit value kept")
	assert.Equal(t, 5, config.Windowing.TileCount)
	assert.Equal(t, []float64{8.57, 10, 12, 15}, config.Spectral.CandidateFrequencies)
	assert.Equal(t, []string{"TP9", "AF7", "AF8", "TP10", "Right AUX"}, config.Synthetic.Channels)
	assert.Equal(t, 12, config.Synthetic.BatchSize)
	assert.Equal(t, 30.0, config.Filter.HighCut)
	assert.Nil(t, config.Recording.DropChannels)

	require.NoError(t, ValidateConfig(config))
}

func TestGetDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, ValidateConfig(GetDefaultConfig()))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero duration", func(c *Config) { c.Recording.Duration = 0 }},
		{"negative tick", func(c *Config) { c.Recording.Tick = -time.Second }},
		{"zero window", func(c *Config) { c.Windowing.WindowLength = 0 }},
		{"zero tiles", func(c *Config) { c.Windowing.TileCount = 0 }},
		{"zero sample rate", func(c *Config) { c.Spectral.SampleRate = 0 }},
		{"zero workers", func(c *Config) { c.Spectral.Workers = 0 }},
		{"bad output", func(c *Config) { c.OutputFormat = "table" }},
		{"bad filter", func(c *Config) {
			c.Filter.Enabled = true
			c.Filter.HighCut = 500
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := GetDefaultConfig()
			tt.mutate(config)
			assert.Error(t, ValidateConfig(config))
		})
	}
}
