package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportOut string

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export FOLDER",
	Short: "Export a recording as EDF",
	Long: `Write the samples of a recording folder to an EDF file with one-second data
records. The sample rate must be a whole number of Hz.

Examples:
  eeg-capture export FOLDER
  eeg-capture export FOLDER --out /tmp/session.edf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp()
		if err != nil {
			return err
		}
		path, err := application.Export(args[0], exportOut)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportOut, "out", "",
		"EDF file to write (default is data.edf in the folder)")
}
