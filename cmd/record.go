package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/eeg-capture/internal/app"
	"github.com/RyanBlaney/eeg-capture/pkg/recording"
)

var (
	recordDevice    string
	recordOutputDir string
	recordDuration  time.Duration
	recordTick      time.Duration
	recordNotes     string
	recordExportEDF bool
)

// recordCmd represents the record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a session from an EEG device",
	Long: `Connect to a device, stream samples for a fixed duration and persist them
into a new recording folder named <YYYY_MM_DD_HH_MM_SS>_<device>.

Ctrl-C (SIGINT) or SIGTERM ends the session early; everything captured up
to that point is still saved.

Examples:
  # Record 60 seconds from the built-in synthetic device
  eeg-capture record

  # Record from a saved device descriptor
  eeg-capture record --device ~/devices/lab_bridge.yaml --duration 5m --notes "SSVEP block 1"

  # Record and also export the data as EDF
  eeg-capture record --export-edf --output-dir ./recordings`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVarP(&recordDevice, "device", "d", "",
		"device descriptor file (default is the synthetic device)")
	recordCmd.Flags().StringVar(&recordOutputDir, "output-dir", "",
		"directory that receives the recording folder")
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "t", 0,
		"recording duration")
	recordCmd.Flags().DurationVar(&recordTick, "tick", 0,
		"progress reporting interval")
	recordCmd.Flags().StringVarP(&recordNotes, "notes", "n", "",
		"free-form notes stored with the recording")
	recordCmd.Flags().BoolVar(&recordExportEDF, "export-edf", false,
		"also write the recording as EDF")
}

func runRecord(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token := recording.NewCancelToken()
	go func() {
		<-ctx.Done()
		token.Cancel()
	}()

	_, err = application.Record(ctx, app.RecordOptions{
		DeviceFile: recordDevice,
		OutputDir:  recordOutputDir,
		Duration:   recordDuration,
		Notes:      recordNotes,
		ExportEDF:  recordExportEDF,
	}, token)
	return err
}
