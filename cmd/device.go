package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/eeg-capture/internal/app"
)

var (
	deviceKind string
	deviceName string
	deviceMAC  string
	deviceURL  string
	deviceOut  string
)

// deviceCmd groups descriptor management
var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Save and inspect device descriptors",
}

var deviceSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write a device descriptor file",
	Long: `Write a versioned YAML descriptor for a device. The file is named after the
simplified device name and can be passed to 'record --device'.

Kinds:
  synthetic   generated signal, parameters taken from the synthetic config section
  websocket   headset streamed by a websocket bridge (requires --url)
  muse        Muse headset by MAC address (descriptor only, no transport)

Examples:
  eeg-capture device save --kind websocket --name "Lab Bridge" --url ws://127.0.0.1:8765/eeg --out ./devices
  eeg-capture device save --kind muse --name "Muse S" --mac 00:55:DA:B0:00:01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp()
		if err != nil {
			return err
		}
		_, err = application.SaveDevice(app.DeviceOptions{
			Kind: deviceKind,
			Name: deviceName,
			MAC:  deviceMAC,
			URL:  deviceURL,
			Dir:  deviceOut,
		})
		return err
	},
}

var deviceShowCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Print a device descriptor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp()
		if err != nil {
			return err
		}
		_, err = application.ShowDevice(args[0])
		return err
	},
}

func init() {
	rootCmd.AddCommand(deviceCmd)
	deviceCmd.AddCommand(deviceSaveCmd, deviceShowCmd)

	deviceSaveCmd.Flags().StringVarP(&deviceKind, "kind", "k", "synthetic",
		"device kind (synthetic, websocket, muse)")
	deviceSaveCmd.Flags().StringVar(&deviceName, "name", "",
		"device name")
	deviceSaveCmd.Flags().StringVar(&deviceMAC, "mac", "",
		"MAC address (muse)")
	deviceSaveCmd.Flags().StringVar(&deviceURL, "url", "",
		"bridge URL (websocket)")
	deviceSaveCmd.Flags().StringVar(&deviceOut, "out", ".",
		"directory to write the descriptor into")
	deviceSaveCmd.MarkFlagRequired("name")
}
