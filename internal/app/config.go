package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/eeg-capture/configs"
)

// GenerateExampleConfig writes a configuration file holding every default
func GenerateExampleConfig(outputFile string) error {
	v := viper.New()
	configs.ApplyDefaults(v)

	data, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	dir := filepath.Dir(outputFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadConfigFile reads a configuration file on top of the defaults,
// independent of the global viper instance
func LoadConfigFile(configFile string) (*configs.Config, error) {
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file does not exist: %s", configFile)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	configs.ApplyDefaults(v)

	config := &configs.Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	return config, nil
}

// ValidateConfigFile loads and validates a configuration file
func ValidateConfigFile(configFile string) (*configs.Config, error) {
	config, err := LoadConfigFile(configFile)
	if err != nil {
		return nil, err
	}
	if err := configs.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}
