package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/eeg-capture/configs"
	"github.com/RyanBlaney/eeg-capture/internal/app"
)

const envPrefix = "EEG_CAPTURE"

var (
	configFile   string
	verbose      bool
	quiet        bool
	logLevel     string
	logFormat    string
	outputFormat string
	outputFile   string
)

// configKeys maps command flags onto configuration keys so a flag, an
// environment variable and the config file all set the same value.
var configKeys = map[string]string{
	"device":        "device.file",
	"output-dir":    "recording.output_dir",
	"duration":      "recording.duration",
	"tick":          "recording.tick",
	"export-edf":    "recording.export_edf",
	"window-length": "windowing.window_length",
	"tiles":         "windowing.tile_count",
	"workers":       "spectral.workers",
	"filter":        "filter.enabled",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "eeg-capture",
	Short: "EEG acquisition, recording and epoching toolkit",
	Long: `Record multi-channel EEG from a headset and cut the recording into
labeled, fixed-length epochs for downstream classification.

Key features:
- Bounded, cancellable recording sessions with per-tick progress
- Synthetic and websocket-bridged devices described by YAML descriptors
- Marker-driven epoching with optional band-pass and notch filtering
- FFT spectra, band powers and an SSVEP spectral-peak classifier
- EDF export of recordings`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/eeg-capture/eeg-capture.yaml)")

	// Output and logging flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"only log errors")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"log format (console, json)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "",
		"result format (json, yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "",
		"write results to this file instead of stdout")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("output_format", rootCmd.PersistentFlags().Lookup("format"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "eeg-capture"))
		viper.AddConfigPath("/etc/eeg-capture")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("eeg-capture")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configs.ApplyDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	} else if configFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", configFile, err)
		os.Exit(1)
	}
}

// initializeConfig initializes configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	return bindFlags(cmd, viper.GetViper())
}

// bindFlags binds each command flag that has a configuration key to viper
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := configKeys[f.Name]
		if !ok {
			return
		}

		// Show the effective value in the flag when it was not given
		if !f.Changed && v.IsSet(key) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(key))); err != nil {
				lastErr = err
			}
		}

		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}

		envVar := envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
		if err := v.BindEnv(key, envVar); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// newApp builds the application for a command from the global flags
func newApp() (*app.App, error) {
	return app.NewApp(&app.Context{
		ConfigFile:   viper.ConfigFileUsed(),
		OutputFile:   outputFile,
		OutputFormat: outputFormat,
		Verbose:      verbose,
		Quiet:        quiet,
	})
}
