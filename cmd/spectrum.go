package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/eeg-capture/internal/app"
)

var (
	spectrumAt           float64
	spectrumAbsolute     bool
	spectrumChannel      string
	spectrumWindowLength int
	spectrumFilter       bool
)

// spectrumCmd represents the spectrum command
var spectrumCmd = &cobra.Command{
	Use:   "spectrum FOLDER",
	Short: "Print the spectrum of one window",
	Long: `Transform the window that starts at the first sample after --at and print
its single-sided amplitude spectrum, peak, centroid and EEG band powers.

--at is seconds from the start of the recording unless --absolute is set.

Examples:
  eeg-capture spectrum FOLDER --at 12.5
  eeg-capture spectrum FOLDER --at 1714564800.25 --absolute --channel TP9 --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSpectrum,
}

func init() {
	rootCmd.AddCommand(spectrumCmd)

	spectrumCmd.Flags().Float64Var(&spectrumAt, "at", 0,
		"reference time in seconds")
	spectrumCmd.Flags().BoolVar(&spectrumAbsolute, "absolute", false,
		"treat --at as an absolute timestamp")
	spectrumCmd.Flags().StringVarP(&spectrumChannel, "channel", "c", "",
		"channel to transform (default is the first channel)")
	spectrumCmd.Flags().IntVarP(&spectrumWindowLength, "window-length", "w", 0,
		"samples in the window")
	spectrumCmd.Flags().BoolVar(&spectrumFilter, "filter", false,
		"band-pass and notch filter the window first")
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	_, err = application.Spectrum(args[0], app.SpectrumOptions{
		At:           spectrumAt,
		Relative:     !spectrumAbsolute,
		Channel:      spectrumChannel,
		WindowLength: spectrumWindowLength,
		Filter:       spectrumFilter,
	})
	return err
}
