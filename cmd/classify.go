package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/eeg-capture/internal/app"
)

var (
	classifyChannel    string
	classifyCandidates []float64
	classifyWorkers    int
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify FOLDER",
	Short: "Predict the stimulus frequency of each epoch",
	Long: `Classify every epoch by its spectral peak: the candidate frequency whose
nearest FFT bin has the largest amplitude wins. Labels that parse as numbers
are compared with the predictions to report accuracy.

Examples:
  eeg-capture classify FOLDER --markers markers.csv
  eeg-capture classify FOLDER --channel AF7 --candidates 8.57,10,12,15 --window-length 256`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	addEpochFlags(classifyCmd)

	classifyCmd.Flags().StringVarP(&classifyChannel, "channel", "c", "",
		"channel to classify (default is the first channel)")
	classifyCmd.Flags().Float64SliceVar(&classifyCandidates, "candidates", nil,
		"candidate stimulus frequencies in Hz (default from config)")
	classifyCmd.Flags().IntVar(&classifyWorkers, "workers", 0,
		"concurrent classification workers")
}

func runClassify(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	_, err = application.Classify(cmd.Context(), args[0], app.ClassifyOptions{
		EpochOptions: epochOptions(cmd),
		Channel:      classifyChannel,
		Candidates:   classifyCandidates,
	})
	return err
}
