package cmd

import (
	"math"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/eeg-capture/internal/app"
)

var (
	epochMarkers      string
	epochWindowLength int
	epochFilter       bool
	epochFrom         float64
	epochTo           float64
	epochIncludeData  bool
)

// epochCmd represents the epoch command
var epochCmd = &cobra.Command{
	Use:   "epoch FOLDER",
	Short: "Cut a recording into labeled epochs",
	Long: `Extract one fixed-length window per marker, starting at the first sample
strictly after the marker time. Markers without enough trailing data keep
a zero-filled slot and are listed as failed.

Markers come from a CSV file with 'timestamp' and 'label' columns; they are
stored with the recording so later runs can omit --markers.

Examples:
  eeg-capture epoch ./recordings/2024_05_01_12_00_00_muse_s --markers markers.csv
  eeg-capture epoch FOLDER --window-length 256 --filter --data -o epochs.json
  eeg-capture epoch FOLDER --from 10 --to 70`,
	Args: cobra.ExactArgs(1),
	RunE: runEpoch,
}

func init() {
	rootCmd.AddCommand(epochCmd)
	addEpochFlags(epochCmd)

	epochCmd.Flags().BoolVar(&epochIncludeData, "data", false,
		"include epoch samples in the result")
}

// addEpochFlags registers the flags shared by commands that build epochs
func addEpochFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&epochMarkers, "markers", "m", "",
		"marker CSV file (default is the markers stored with the recording)")
	cmd.Flags().IntVarP(&epochWindowLength, "window-length", "w", 0,
		"samples per epoch")
	cmd.Flags().BoolVar(&epochFilter, "filter", false,
		"band-pass and notch filter each epoch")
	cmd.Flags().Float64Var(&epochFrom, "from", 0,
		"only use markers at or after this time")
	cmd.Flags().Float64Var(&epochTo, "to", 0,
		"only use markers before this time")
}

func epochOptions(cmd *cobra.Command) app.EpochOptions {
	return app.EpochOptions{
		MarkersFile:  epochMarkers,
		WindowLength: epochWindowLength,
		Filter:       epochFilter,
		Range:        cmd.Flags().Changed("from") || cmd.Flags().Changed("to"),
		From:         epochFrom,
		To:           rangeEnd(cmd),
		IncludeData:  epochIncludeData,
	}
}

func rangeEnd(cmd *cobra.Command) float64 {
	if cmd.Flags().Changed("to") {
		return epochTo
	}
	return math.Inf(1)
}

func runEpoch(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	_, err = application.Epoch(args[0], epochOptions(cmd))
	return err
}
