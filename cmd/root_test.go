package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/eeg-capture/configs"
)

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "probe"}
	cmd.Flags().Duration("duration", 0, "")
	cmd.Flags().Int("window-length", 0, "")
	cmd.Flags().String("notes", "", "")
	return cmd
}

func TestBindFlagsUsesConfigKeys(t *testing.T) {
	v := viper.New()
	configs.ApplyDefaults(v)

	cmd := testCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--duration", "90s"}))
	require.NoError(t, bindFlags(cmd, v))

	assert.Equal(t, 90*time.Second, v.GetDuration("recording.duration"))

	// Unset flags show the configured value.
	length, err := cmd.Flags().GetInt("window-length")
	require.NoError(t, err)
	assert.Equal(t, 128, length)
	assert.False(t, v.IsSet("notes"))
}

func TestBindFlagsReadsEnvironment(t *testing.T) {
	t.Setenv("EEG_CAPTURE_WINDOWING_WINDOW_LENGTH", "512")

	v := viper.New()
	cmd := testCommand()
	require.NoError(t, cmd.Flags().Parse(nil))
	require.NoError(t, bindFlags(cmd, v))

	assert.Equal(t, 512, v.GetInt("windowing.window_length"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"record", "device", "epoch", "classify", "spectrum", "export", "config-test"} {
		assert.True(t, names[want], want)
	}
}
