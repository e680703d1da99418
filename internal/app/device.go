package app

import (
	"fmt"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
	"github.com/RyanBlaney/eeg-capture/pkg/device"
	"github.com/RyanBlaney/eeg-capture/pkg/logging"
)

// DeviceOptions describe a descriptor to save.
type DeviceOptions struct {
	Kind string
	Name string
	MAC  string
	URL  string
	Dir  string
}

// DeviceSummary is the printable form of a descriptor.
type DeviceSummary struct {
	File         string      `json:"file,omitempty" yaml:"file,omitempty"`
	Info         device.Info `json:"info" yaml:"info"`
	Capabilities []string    `json:"capabilities" yaml:"capabilities"`
	Supported    bool        `json:"supported" yaml:"supported"`
}

// SaveDevice writes a descriptor built from opts and returns its path.
func (app *App) SaveDevice(opts DeviceOptions) (*DeviceSummary, error) {
	var d device.Descriptor
	switch device.Kind(opts.Kind) {
	case device.KindSynthetic:
		d = device.SyntheticDescriptor(opts.Name, app.config.Synthetic)
	case device.KindWebSocket:
		d = device.WebSocketDescriptor(opts.Name, opts.URL)
	case device.KindMuse:
		d = device.MuseDescriptor(opts.Name, opts.MAC)
	default:
		return nil, common.NewError("device", common.ErrCodeKindMismatch,
			fmt.Sprintf("unknown device kind %q", opts.Kind), nil)
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	path, err := device.SaveDescriptor(dir, d)
	if err != nil {
		return nil, err
	}
	app.logger.Info("Device saved", logging.Fields{"file": path, "kind": d.Kind})

	summary := app.describe(path, d)
	if err := app.outputResults(summary); err != nil {
		return nil, fmt.Errorf("failed to output results: %w", err)
	}
	return summary, nil
}

// ShowDevice loads and prints a descriptor.
func (app *App) ShowDevice(path string) (*DeviceSummary, error) {
	d, err := device.LoadDescriptor(path)
	if err != nil {
		return nil, err
	}

	summary := app.describe(path, d)
	if err := app.outputResults(summary); err != nil {
		return nil, fmt.Errorf("failed to output results: %w", err)
	}
	return summary, nil
}

func (app *App) describe(path string, d device.Descriptor) *DeviceSummary {
	caps, err := device.ParseCapabilities(d.Capabilities)
	if err != nil {
		caps = 0
	}

	supported := false
	for _, k := range app.devices.SupportedKinds() {
		supported = supported || k == d.Kind
	}

	return &DeviceSummary{
		File:         path,
		Info:         d.Info(),
		Capabilities: caps.Names(),
		Supported:    supported,
	}
}
